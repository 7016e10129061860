// Package kinematics defines the MotionModel interface for shuttle traction and
// braking physics, along with the built-in constant-magnitude implementation.
//
// A car asks its model how far it needs to brake and how its speed moves toward
// a target over one tick; the car itself integrates position.
package kinematics

// MotionModel is the physics contract every kinematics implementation must satisfy.
// Distances are in track length units, speeds in units per time unit.
type MotionModel interface {
	// VMax returns the vehicle's maximum permissible speed.
	VMax() float64

	// BrakingDistance returns the distance needed to stop from speed v.
	BrakingDistance(v float64) float64

	// BrakingDistanceTo returns the distance needed to slow from v to targetV.
	// Returns 0 if v ≤ targetV.
	BrakingDistanceTo(v, targetV float64) float64

	// Approach moves v toward targetV over dt without overshooting it and
	// returns the new speed and the signed acceleration applied (0, +a or -a).
	Approach(v, targetV, dt float64) (newV, accel float64)

	// Decelerate brakes from v toward floor over dt, regardless of any target.
	Decelerate(v, floor, dt float64) (newV, accel float64)
}
