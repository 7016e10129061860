// Package car implements a shuttle vehicle: continuous position and speed on
// the loop under an acceleration-limited controller, and the task-execution
// state machine that drives it between pickup and dropoff stations.
//
// A car is advanced only by Update; loading and unloading durations are
// countdowns decremented by the tick, never wall-clock timers.
package car

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/kinematics"
	"github.com/cxd309/rgv-engine/internal/task"
	"github.com/cxd309/rgv-engine/internal/track"
)

// Status is the current state of a car.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCruising  Status = "cruising"
	StatusMoving    Status = "moving"
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusUnloading Status = "unloading"
	StatusWaiting   Status = "waiting"
)

// Params are the static parameters shared by every car of a fleet.
type Params struct {
	Model            kinematics.MotionModel // straight-line VMax, accel, decel
	MaxCurveSpeed    float64
	ArrivalTolerance float64
	LoadingTime      float64
	UnloadingTime    float64
}

// DefaultParams are the production shuttle parameters.
func DefaultParams() Params {
	return Params{
		Model:            kinematics.ConstantAcceleration{AAcc: 0.5, ADcc: 0.5, VMaxVal: 2.67},
		MaxCurveSpeed:    0.67,
		ArrivalTolerance: 0.05,
		LoadingTime:      7.5,
		UnloadingTime:    7.5,
	}
}

// Car is one shuttle vehicle.
type Car struct {
	ID int

	position     float64
	speed        float64
	acceleration float64
	targetSpeed  float64
	status       Status

	task        *task.Task
	stops       []float64 // pickup, dropoff; empty when no task
	currentStop int
	cruiseLeft  float64 // loop distance left on a patrol lap
	timer       float64
	hasMaterial bool
	braking     bool    // collision governor holds the target speed
	hold        float64 // free track ahead before the car in front

	track   track.Track
	params  Params
	devices DeviceLookup
	sink    task.TaskSink
	log     logrus.FieldLogger
}

// New places an idle car at position on t.
func New(id int, position float64, t track.Track, params Params, devices DeviceLookup, sink task.TaskSink, log logrus.FieldLogger) *Car {
	if sink == nil {
		sink = task.NopSink{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if devices == nil {
		devices = func(task.DeviceID) (Device, bool) { return nil, false }
	}
	return &Car{
		ID:       id,
		position: t.Wrap(position),
		status:   StatusIdle,
		hold:     math.Inf(1),
		track:    t,
		params:   params,
		devices:  devices,
		sink:     sink,
		log:      log.WithField("car", id),
	}
}

// AssignTask starts executing t: drive to fromPos, load, drive to toPos, unload.
func (c *Car) AssignTask(t task.Task, fromPos, toPos float64) {
	c.task = &t
	c.stops = []float64{c.track.Wrap(fromPos), c.track.Wrap(toPos)}
	c.currentStop = 0
	c.cruiseLeft = 0
	c.targetSpeed = c.MaxStraightSpeed()
	c.status = StatusMoving
	c.log.WithFields(logrus.Fields{
		"task": t.TaskID, "from": t.FromDevice, "to": t.ToDevice,
	}).Info("task assigned")
}

// Update advances the car by dt.
func (c *Car) Update(dt float64) {
	if c.status == StatusIdle && c.task == nil {
		c.startCruise()
	}

	switch c.status {
	case StatusLoading:
		c.timer -= dt
		if c.timer <= 0 {
			c.finishLoading()
		}
		return
	case StatusUnloading:
		c.timer -= dt
		if c.timer <= 0 {
			c.finishUnloading()
		}
		return
	case StatusWaiting:
		c.serveStop()
	case StatusMoving, StatusCruising:
		if c.reachedStop() {
			c.arrive()
		}
	}

	switch c.status {
	case StatusMoving, StatusCruising, StatusWaiting:
		c.updateMotion(dt)
	}
}

// startCruise sends a car without work on a patrol lap one full loop long.
func (c *Car) startCruise() {
	c.status = StatusCruising
	c.targetSpeed = c.MaxStraightSpeed()
	c.stops = []float64{c.position}
	c.currentStop = 0
	c.cruiseLeft = c.track.Length
}

func (c *Car) arrive() {
	c.acceleration = 0
	if c.status == StatusCruising {
		c.status = StatusIdle
		c.targetSpeed = 0
		c.stops = nil
		c.cruiseLeft = 0
		return
	}
	c.status = StatusWaiting
	c.serveStop()
}

// serveStop tries to start loading or unloading at the current stop. The car
// stays Waiting until the device is ready.
func (c *Car) serveStop() {
	if c.task == nil {
		return
	}
	id := c.task.FromDevice
	if c.currentStop == 1 {
		id = c.task.ToDevice
	}
	dev, ok := c.devices(id)
	if !ok {
		c.log.WithFields(logrus.Fields{"task": c.task.TaskID, "device": id}).Error("stop device not found")
		return
	}

	if c.currentStop == 0 {
		if !dev.CanSupply(c.task.MaterialID) {
			return
		}
		c.status = StatusLoading
		c.timer = c.params.LoadingTime
		if err := dev.OnMaterialTaken(); err != nil {
			c.log.WithError(err).Warn("pickup rejected by port")
		}
		return
	}

	if !dev.CanReceive() {
		return
	}
	if err := dev.Reserve(c.task.MaterialID); err != nil {
		c.log.WithError(err).Debug("dropoff port not ready")
		return
	}
	c.status = StatusUnloading
	c.timer = c.params.UnloadingTime
}

func (c *Car) finishLoading() {
	c.timer = 0
	c.status = StatusLoaded
	c.hasMaterial = true
	c.currentStop = 1
	c.targetSpeed = c.MaxStraightSpeed()
	c.status = StatusMoving
	c.sink.PickUpCargo(c.task.TaskID)
}

func (c *Car) finishUnloading() {
	done := *c.task
	c.timer = 0
	c.task = nil
	c.stops = nil
	c.currentStop = 0
	c.hasMaterial = false
	c.targetSpeed = 0
	c.status = StatusIdle

	c.sink.DropOffCargo(done.TaskID)
	dev, ok := c.devices(done.ToDevice)
	if !ok {
		c.log.WithFields(logrus.Fields{"task": done.TaskID, "device": done.ToDevice}).Error("dropoff device not found")
		return
	}
	if err := dev.OnMaterialPlaced(done.MaterialID); err != nil {
		c.log.WithError(err).Warn("dropoff rejected by port")
	}
}

// distanceToStop is the forward distance left to the current stop point.
func (c *Car) distanceToStop() (float64, bool) {
	if c.status == StatusCruising {
		return c.cruiseLeft, true
	}
	if c.currentStop >= len(c.stops) {
		return 0, false
	}
	return c.track.DistanceForward(c.position, c.stops[c.currentStop]), true
}

func (c *Car) reachedStop() bool {
	if c.speed != 0 {
		return false
	}
	if c.status == StatusCruising {
		return c.cruiseLeft < c.params.ArrivalTolerance
	}
	if c.currentStop >= len(c.stops) {
		return false
	}
	return c.track.CircularDistance(c.position, c.stops[c.currentStop]) < c.params.ArrivalTolerance
}

// updateMotion applies the speed controller and integrates position.
//
// Priority (highest first):
//  1. Stop braking: never pass the current stop point.
//  2. Hold braking: always able to stand still before the car in front.
//  3. Curve anticipation: reach the next curve at or below the curve limit.
//  4. The current section limit and the car's target speed.
func (c *Car) updateMotion(dt float64) {
	m := c.params.Model
	vCurve := c.params.MaxCurveSpeed
	inCurve := c.track.InCurve(c.position)

	limit := m.VMax()
	if inCurve {
		limit = math.Min(limit, vCurve)
	}

	target := c.targetSpeed
	if c.status == StatusWaiting {
		target = 0
	}

	distToStop, hasStop := c.distanceToStop()
	if hasStop && distToStop < m.BrakingDistance(c.speed) {
		target = 0
	}
	if c.hold < m.BrakingDistance(c.speed) {
		target = 0
	}

	curveDist, curveAhead := 0.0, false
	if !inCurve {
		curveDist, curveAhead = c.track.NextCurveDistance(c.position)
		if curveAhead && curveDist < m.BrakingDistanceTo(c.speed, vCurve) {
			limit = math.Min(limit, vCurve)
		}
	}

	newV, accel := m.Approach(c.speed, math.Min(target, limit), dt)

	// Reject a candidate speed that would leave too little room to brake
	// after this tick's travel.
	if curveAhead && newV > vCurve && curveDist-newV*dt < m.BrakingDistanceTo(newV, vCurve) {
		if v, a := m.Decelerate(c.speed, vCurve, dt); v < newV {
			newV, accel = v, a
		}
	}
	if hasStop && distToStop-newV*dt < m.BrakingDistance(newV) {
		if v, a := m.Decelerate(c.speed, 0, dt); v < newV {
			newV, accel = v, a
		}
		if newV == 0 && c.speed == 0 && distToStop > 0 && distToStop <= c.hold {
			// Too close to creep forward one tick: settle on the stop point.
			c.moveBy(distToStop)
			c.acceleration = 0
			return
		}
	}
	if c.hold-newV*dt < m.BrakingDistance(newV) {
		if v, a := m.Decelerate(c.speed, 0, dt); v < newV {
			newV, accel = v, a
		}
	}
	if newV*dt > c.hold {
		c.log.WithFields(logrus.Fields{"speed": newV, "hold": c.hold}).Warn("cannot brake before the car ahead, stopping short")
		c.speed = 0
		c.acceleration = 0
		c.moveBy(c.hold)
		return
	}

	c.speed = newV
	c.acceleration = accel
	c.moveBy(newV * dt)
}

func (c *Car) moveBy(d float64) {
	c.position = c.track.Wrap(c.position + d)
	if c.status == StatusCruising {
		c.cruiseLeft = math.Max(0, c.cruiseLeft-d)
	}
}

// SetTargetSpeed sets the cruise target, clamped to [0, max straight speed].
func (c *Car) SetTargetSpeed(v float64) {
	c.targetSpeed = math.Max(0, math.Min(v, c.MaxStraightSpeed()))
}

// SetHold limits how far the car may travel before it must be able to stand
// still: the free track between it and the car in front. Use +Inf for none.
func (c *Car) SetHold(d float64) { c.hold = math.Max(0, d) }

// Hold is the free track ahead set by SetHold.
func (c *Car) Hold() float64 { return c.hold }

// SetCollisionBraking marks whether the collision governor is holding this car.
func (c *Car) SetCollisionBraking(on bool) { c.braking = on }

// CollisionBraking reports whether the collision governor is holding this car.
func (c *Car) CollisionBraking() bool { return c.braking }

// IsMoving reports whether the car is under way (Moving or Cruising).
func (c *Car) IsMoving() bool { return c.status == StatusMoving || c.status == StatusCruising }

// IsFree reports whether the car can take a new task.
func (c *Car) IsFree() bool {
	return c.task == nil && (c.status == StatusIdle || c.status == StatusCruising)
}

// BrakingDistance is the distance needed to stop from the current speed.
func (c *Car) BrakingDistance() float64 { return c.params.Model.BrakingDistance(c.speed) }

// DistanceTo is the forward distance from this car to other.
func (c *Car) DistanceTo(other *Car) float64 {
	return c.track.DistanceForward(c.position, other.position)
}

// HeadingToPickup reports whether the car is assigned a task from device id
// and has not started loading there yet.
func (c *Car) HeadingToPickup(id task.DeviceID) bool {
	return c.task != nil && c.currentStop == 0 && c.task.FromDevice == id &&
		(c.status == StatusMoving || c.status == StatusWaiting)
}

func (c *Car) Position() float64         { return c.position }
func (c *Car) Speed() float64            { return c.speed }
func (c *Car) Acceleration() float64     { return c.acceleration }
func (c *Car) TargetSpeed() float64      { return c.targetSpeed }
func (c *Car) Status() Status            { return c.status }
func (c *Car) HasMaterial() bool         { return c.hasMaterial }
func (c *Car) CurrentStopIndex() int     { return c.currentStop }
func (c *Car) MaxStraightSpeed() float64 { return c.params.Model.VMax() }
func (c *Car) StopPoints() []float64     { return append([]float64(nil), c.stops...) }

// Task returns a copy of the current task.
func (c *Car) Task() (task.Task, bool) {
	if c.task == nil {
		return task.Task{}, false
	}
	return *c.task, true
}

// Snapshot is a read-only view of a car.
type Snapshot struct {
	ID               int        `json:"id"`
	Position         float64    `json:"position"`
	Speed            float64    `json:"speed"`
	Acceleration     float64    `json:"acceleration"`
	TargetSpeed      float64    `json:"target_speed"`
	Status           Status     `json:"status"`
	Task             *task.Task `json:"task"`
	HasMaterial      bool       `json:"has_material"`
	CollisionBraking bool       `json:"collision_braking"`
	StopPoints       []float64  `json:"stop_points,omitempty"`
	CurrentStopIndex int        `json:"current_stop_index"`
}

// Snapshot returns a point-in-time view of the car.
func (c *Car) Snapshot() Snapshot {
	s := Snapshot{
		ID:               c.ID,
		Position:         c.position,
		Speed:            c.speed,
		Acceleration:     c.acceleration,
		TargetSpeed:      c.targetSpeed,
		Status:           c.status,
		HasMaterial:      c.hasMaterial,
		CollisionBraking: c.braking,
		StopPoints:       c.StopPoints(),
		CurrentStopIndex: c.currentStop,
	}
	if t, ok := c.Task(); ok {
		s.Task = &t
	}
	return s
}

func (c *Car) String() string {
	return fmt.Sprintf("car %d [%s] @%.2f v=%.2f", c.ID, c.status, c.position, c.speed)
}
