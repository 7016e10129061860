package scheduler

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/car"
)

// preventCollisions is a per-tick governor, not a planner. Each moving car
// looks at the car ahead of it on the loop; if the gap is shorter than a
// vehicle length plus the safety margin plus its own braking distance, it
// stops behind a stationary car or follows a moving one. Cars that were held
// get their top speed back once the gap clears. Only Moving and Cruising cars
// have their target changed.
//
// Independently of the target, every car is given a hold of the free track up
// to the tail of the car in front, measured on pre-advance positions. The car
// in front only moves forward during the tick, so a car that can stop within
// its hold never reaches it.
func (s *Scheduler) preventCollisions() {
	n := len(s.cars)
	if n <= 1 {
		return
	}
	sorted := append([]*car.Car(nil), s.cars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position() < sorted[j].Position() })

	for i, c := range sorted {
		front := sorted[(i+1)%n]
		gap := c.DistanceTo(front)
		c.SetHold(gap - s.opts.CarLength)
		if !c.IsMoving() {
			continue
		}
		safe := s.opts.CarLength + s.opts.SafetyMargin + c.BrakingDistance()

		if gap < safe {
			if !front.IsMoving() {
				if c.TargetSpeed() != 0 || !c.CollisionBraking() {
					s.log.WithFields(logrus.Fields{
						"car": c.ID, "front": front.ID, "front_status": front.Status(), "gap": gap,
					}).Debug("stopping behind stationary car")
				}
				c.SetTargetSpeed(0)
			} else {
				c.SetTargetSpeed(math.Min(c.Speed(), front.Speed()))
			}
			c.SetCollisionBraking(true)
			continue
		}

		if c.CollisionBraking() {
			c.SetTargetSpeed(c.MaxStraightSpeed())
			c.SetCollisionBraking(false)
			s.log.WithField("car", c.ID).Debug("gap clear, speed restored")
		}
	}
}
