package scheduler

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/task"
	"github.com/cxd309/rgv-engine/internal/track"
)

// assignment is a candidate car→port pairing inside one scheduling pass.
type assignment struct {
	car     *car.Car
	port    *port.Port
	from    float64 // car position at planning time
	arrival float64 // travel time from `from` to the port
	finish  float64 // arrival plus the nominal pickup time
}

// conflicts reports whether b's port lies on a's path while b arrives inside
// a's pickup window: the two cars would hold overlapping track at
// overlapping times.
func conflicts(t track.Track, a, b assignment) bool {
	if !t.OnPath(a.from, a.port.Position, b.port.Position) {
		return false
	}
	return b.arrival >= a.arrival && b.arrival <= a.finish
}

// search enumerates injective car→port plans in car-index-major order. Each
// car either takes an unused port or stays free. Partial plans are cut as soon
// as a new pair conflicts with an earlier one, so every complete plan it
// reaches is conflict-free.
type search struct {
	track track.Track
	cars  []*car.Car
	ports []*port.Port
	pick  float64

	used    []bool
	current []assignment

	best      []assignment
	bestTotal float64
}

func (s *search) run(i int) {
	if len(s.current)+len(s.cars)-i < len(s.best) {
		return // cannot reach the size of the best plan
	}
	if i == len(s.cars) {
		s.consider()
		return
	}
	c := s.cars[i]
	for j, p := range s.ports {
		if s.used[j] {
			continue
		}
		a, ok := s.candidate(c, p)
		if !ok || s.conflictsWithCurrent(a) {
			continue
		}
		s.used[j] = true
		s.current = append(s.current, a)
		s.run(i + 1)
		s.current = s.current[:len(s.current)-1]
		s.used[j] = false
	}
	s.run(i + 1)
}

// candidate estimates the trip of car c to port p at the car's top straight
// speed. A car that cannot move has no finite estimate and is not assignable.
func (s *search) candidate(c *car.Car, p *port.Port) (assignment, bool) {
	v := c.MaxStraightSpeed()
	if !(v > 0) {
		return assignment{}, false
	}
	from := c.Position()
	arrival := s.track.DistanceForward(from, p.Position) / v
	if math.IsInf(arrival, 0) || math.IsNaN(arrival) {
		return assignment{}, false
	}
	return assignment{car: c, port: p, from: from, arrival: arrival, finish: arrival + s.pick}, true
}

func (s *search) conflictsWithCurrent(a assignment) bool {
	for _, b := range s.current {
		if conflicts(s.track, a, b) || conflicts(s.track, b, a) {
			return true
		}
	}
	return false
}

// consider keeps the current plan if it pairs more cars than the best so far,
// or as many with a lower total arrival time. Ties keep the earlier plan.
func (s *search) consider() {
	if len(s.current) == 0 {
		return
	}
	total := 0.0
	for _, a := range s.current {
		total += a.arrival
	}
	if len(s.current) > len(s.best) || (len(s.current) == len(s.best) && total < s.bestTotal) {
		s.best = append(s.best[:0:0], s.current...)
		s.bestTotal = total
	}
}

// plan returns the best conflict-free plan for the given cars and ports, or
// nil when no pairing is possible.
func plan(t track.Track, cars []*car.Car, ports []*port.Port, pick float64) []assignment {
	if len(cars) == 0 || len(ports) == 0 {
		return nil
	}
	s := &search{
		track:     t,
		cars:      cars,
		ports:     ports,
		pick:      pick,
		used:      make([]bool, len(ports)),
		bestTotal: math.Inf(1),
	}
	s.run(0)
	return s.best
}

// freeCars are the cars that can take a task, in fleet order.
func (s *Scheduler) freeCars() []*car.Car {
	var out []*car.Car
	for _, c := range s.cars {
		if c.IsFree() {
			out = append(out, c)
			if len(out) == s.opts.MaxSearchCars {
				break
			}
		}
	}
	return out
}

// readyPorts are the supply ports with material staged for a pending task and
// no car already on its way to collect it, in id order.
func (s *Scheduler) readyPorts() []*port.Port {
	var out []*port.Port
	for _, p := range s.ports {
		if !p.Kind.Supplies() || p.Status() != port.StatusFull {
			continue
		}
		if s.pendingIndex(p.ID) < 0 || s.claimed(p.ID) {
			continue
		}
		out = append(out, p)
		if len(out) == s.opts.MaxSearchPorts {
			break
		}
	}
	return out
}

func (s *Scheduler) claimed(id task.DeviceID) bool {
	for _, c := range s.cars {
		if c.HeadingToPickup(id) {
			return true
		}
	}
	return false
}

func (s *Scheduler) pendingIndex(from task.DeviceID) int {
	for i, t := range s.pending {
		if t.FromDevice == from {
			return i
		}
	}
	return -1
}

// assignTasks matches free cars to ready ports and starts the winning plan.
// Nothing happens when no conflict-free pairing exists; the next tick retries.
func (s *Scheduler) assignTasks() {
	best := plan(s.track, s.freeCars(), s.readyPorts(), s.opts.PickupEstimate)
	for _, a := range best {
		i := s.pendingIndex(a.port.ID)
		if i < 0 {
			continue
		}
		t := s.pending[i]
		to, err := s.registry.Position(t.ToDevice)
		if err != nil {
			s.log.WithError(err).WithField("task", t.TaskID).Error("destination missing from registry")
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)

		a.car.AssignTask(t, a.port.Position, to)
		carID := a.car.ID
		s.assigned[t.TaskID] = &task.Record{
			Task:          t,
			Status:        task.StatusInProgress,
			AssignedCarID: &carID,
			StartTime:     task.Stamp(s.clock),
		}
		s.log.WithFields(logrus.Fields{
			"task": t.TaskID, "car": carID, "from": t.FromDevice, "to": t.ToDevice, "eta": a.arrival,
		}).Info("task dispatched")
	}
}
