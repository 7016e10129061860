package scheduler

import (
	"math"

	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/task"
)

// TaskSnapshot is a task's lifecycle record with its transport progress.
type TaskSnapshot struct {
	task.Record
	Progress float64 `json:"progress"`
}

// State is a read-only view of the whole simulation at one clock value.
type State struct {
	Clock     float64         `json:"clock"`
	Cars      []car.Snapshot  `json:"cars"`
	Ports     []port.Snapshot `json:"ports"`
	Pending   []TaskSnapshot  `json:"pending"`
	Assigned  []TaskSnapshot  `json:"assigned"`
	Completed []TaskSnapshot  `json:"completed"`
	Done      bool            `json:"done"`

	// Events pushed out of the bounded feeds so far.
	DroppedSpeedEvents  int `json:"dropped_speed_events"`
	DroppedDeviceEvents int `json:"dropped_device_events"`
}

// Clock is the virtual clock.
func (s *Scheduler) Clock() float64 { return s.clock }

// Cars returns a snapshot of every car in fleet order.
func (s *Scheduler) Cars() []car.Snapshot {
	out := make([]car.Snapshot, 0, len(s.cars))
	for _, c := range s.cars {
		out = append(out, c.Snapshot())
	}
	return out
}

// Ports returns a snapshot of every port in id order.
func (s *Scheduler) Ports() []port.Snapshot {
	out := make([]port.Snapshot, 0, len(s.ports))
	for _, p := range s.ports {
		out = append(out, p.Snapshot())
	}
	return out
}

// PendingTasks returns the queued tasks in intake order.
func (s *Scheduler) PendingTasks() []TaskSnapshot {
	out := make([]TaskSnapshot, 0, len(s.pending))
	for _, t := range s.pending {
		out = append(out, TaskSnapshot{Record: task.Record{Task: t, Status: task.StatusPending}})
	}
	return out
}

// AssignedTasks returns the in-progress tasks in id order.
func (s *Scheduler) AssignedTasks() []TaskSnapshot {
	out := make([]TaskSnapshot, 0, len(s.assigned))
	for _, id := range sortedIDs(s.assigned) {
		rec := s.assigned[id]
		out = append(out, TaskSnapshot{Record: rec.Clone(), Progress: s.progress(rec)})
	}
	return out
}

// CompletedTasks returns the finished tasks in id order.
func (s *Scheduler) CompletedTasks() []TaskSnapshot {
	out := make([]TaskSnapshot, 0, len(s.completed))
	for _, id := range sortedIDs(s.completed) {
		out = append(out, TaskSnapshot{Record: s.completed[id].Clone(), Progress: 1})
	}
	return out
}

// SpeedEvents returns the retained acceleration-change events, oldest first.
func (s *Scheduler) SpeedEvents() []SpeedEvent { return s.speedFeed.list() }

// DeviceEvents returns the retained cargo-transition events, oldest first.
func (s *Scheduler) DeviceEvents() []DeviceEvent { return s.deviceFeed.list() }

// Snapshot aggregates every projection.
func (s *Scheduler) Snapshot() State {
	return State{
		Clock:     s.clock,
		Cars:      s.Cars(),
		Ports:     s.Ports(),
		Pending:   s.PendingTasks(),
		Assigned:  s.AssignedTasks(),
		Completed: s.CompletedTasks(),
		Done:      s.AllTasksDone(),

		DroppedSpeedEvents:  s.speedFeed.dropped,
		DroppedDeviceEvents: s.deviceFeed.dropped,
	}
}

// progress is 0 until pickup, then the share of the pickup-to-dropoff leg the
// carrying car has covered. Once the material is placed it is 1.
func (s *Scheduler) progress(rec *task.Record) float64 {
	switch {
	case rec.Status == task.StatusDone || rec.DropOffTime != nil:
		return 1
	case rec.PickUpTime == nil || rec.AssignedCarID == nil:
		return 0
	}
	id := *rec.AssignedCarID
	if id < 1 || id > len(s.cars) {
		return 0
	}
	c := s.cars[id-1]
	stops := c.StopPoints()
	if len(stops) < 2 {
		return 0
	}
	leg := s.track.DistanceForward(stops[0], stops[1])
	if leg == 0 {
		return 1
	}
	covered := s.track.DistanceForward(stops[0], c.Position())
	if covered > leg {
		// stopped just short of the pickup point, inside the arrival tolerance
		return 0
	}
	return math.Max(0, math.Min(1, covered/leg))
}
