package kinematics

import "math"

// ConstantModelName is the discriminator string for the Constant model.
const ConstantModelName = "constant"

// ConstantAcceleration implements MotionModel using fixed acceleration and
// deceleration magnitudes. There is no jerk limiting and no load dependence.
type ConstantAcceleration struct {
	AAcc    float64 `json:"a_acc" yaml:"a_acc"` // traction acceleration
	ADcc    float64 `json:"a_dcc" yaml:"a_dcc"` // braking deceleration (positive)
	VMaxVal float64 `json:"v_max" yaml:"v_max"` // maximum speed
}

func (c ConstantAcceleration) VMax() float64 { return c.VMaxVal }

func (c ConstantAcceleration) BrakingDistance(v float64) float64 {
	return c.BrakingDistanceTo(v, 0)
}

func (c ConstantAcceleration) BrakingDistanceTo(v, targetV float64) float64 {
	if v <= targetV {
		return 0
	}
	if c.ADcc <= 0 {
		return math.Inf(1)
	}
	return (v*v - targetV*targetV) / (2 * c.ADcc)
}

func (c ConstantAcceleration) Approach(v, targetV, dt float64) (float64, float64) {
	switch {
	case v < targetV:
		if c.AAcc <= 0 {
			return v, 0
		}
		return math.Min(v+c.AAcc*dt, targetV), c.AAcc
	case v > targetV:
		return c.Decelerate(v, targetV, dt)
	default:
		return v, 0
	}
}

func (c ConstantAcceleration) Decelerate(v, floor, dt float64) (float64, float64) {
	floor = math.Max(0, floor)
	if v <= floor || c.ADcc <= 0 {
		return v, 0
	}
	return math.Max(v-c.ADcc*dt, floor), -c.ADcc
}
