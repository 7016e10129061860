// Package scheduler owns the shuttle fleet and the station registry and runs
// the simulation one tick at a time.
//
// Each tick runs four passes in a fixed order:
//
//  1. Assignment - pending tasks are matched to free cars by a conflict-aware
//     search over car/port pairings.
//  2. Collision governor - every moving car is checked against the car in
//     front of it on the loop, using pre-advance positions.
//  3. Car pass - every car advances its state machine and position.
//  4. Port pass - every port advances its operation timer, seeing the
//     material transfers the cars made in pass 3.
//
// The Scheduler is single-threaded: it must only be used from one goroutine
// at a time. Cars and ports report lifecycle events back through the
// task.TaskSink methods implemented here.
package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/task"
	"github.com/cxd309/rgv-engine/internal/track"
)

// Scheduler is the dispatch-and-simulation engine.
type Scheduler struct {
	opts     Options
	track    track.Track
	registry *track.Registry

	cars     []*car.Car
	ports    []*port.Port // ascending id
	portByID map[task.DeviceID]*port.Port

	pending   []task.Task
	assigned  map[task.TaskID]*task.Record
	completed map[task.TaskID]*task.Record

	clock float64

	speedFeed  *feed[SpeedEvent]
	deviceFeed *feed[DeviceEvent]
	lastAccel  map[int]float64
	lastCargo  map[task.DeviceID]bool

	log logrus.FieldLogger
}

var _ task.TaskSink = (*Scheduler)(nil)

// New builds the fleet and the station registry from opts.
func New(opts Options) (*Scheduler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	positions := make([]track.Station, 0, len(opts.Stations))
	for _, st := range opts.Stations {
		positions = append(positions, track.Station{ID: st.ID, Position: st.Position})
	}
	registry, err := track.NewRegistry(opts.Track, positions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	s := &Scheduler{
		opts:       opts,
		track:      opts.Track,
		registry:   registry,
		portByID:   make(map[task.DeviceID]*port.Port, len(opts.Stations)),
		assigned:   make(map[task.TaskID]*task.Record),
		completed:  make(map[task.TaskID]*task.Record),
		speedFeed:  newFeed[SpeedEvent](opts.FeedCapacity),
		deviceFeed: newFeed[DeviceEvent](opts.FeedCapacity),
		lastAccel:  make(map[int]float64),
		lastCargo:  make(map[task.DeviceID]bool),
		log:        opts.Logger.WithField("component", "scheduler"),
	}

	for _, st := range opts.Stations {
		p := port.New(st.ID, st.Kind, st.Position, opts.PortDurations, s, opts.Logger)
		s.ports = append(s.ports, p)
		s.portByID[st.ID] = p
	}
	sort.Slice(s.ports, func(i, j int) bool { return s.ports[i].ID < s.ports[j].ID })

	for i, pos := range opts.CarPositions {
		s.cars = append(s.cars, car.New(i+1, pos, opts.Track, opts.CarParams, s.device, s, opts.Logger))
	}
	return s, nil
}

func (s *Scheduler) device(id task.DeviceID) (car.Device, bool) {
	p, ok := s.portByID[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// AddTask validates t and enqueues it. The task's material is queued on its
// origin port, where it is staged for pickup.
func (s *Scheduler) AddTask(t task.Task) error {
	if err := s.validateTask(t); err != nil {
		s.log.WithError(err).WithField("task", t.TaskID).Warn("task rejected")
		return err
	}
	s.pending = append(s.pending, t)
	s.portByID[t.FromDevice].AddTask(t.MaterialID)
	s.log.WithFields(logrus.Fields{
		"task": t.TaskID, "material": t.MaterialID, "from": t.FromDevice, "to": t.ToDevice,
	}).Debug("task queued")
	return nil
}

func (s *Scheduler) validateTask(t task.Task) error {
	if t.MaterialID == "" {
		return fmt.Errorf("task %d: empty material id: %w", t.TaskID, ErrInvalidTask)
	}
	if s.knownTask(t.TaskID) {
		return fmt.Errorf("task %d: %w", t.TaskID, ErrDuplicateTask)
	}
	if id, ok := s.openMaterial(t.MaterialID); ok {
		return fmt.Errorf("task %d material %q held by task %d: %w", t.TaskID, t.MaterialID, id, ErrDuplicateMaterial)
	}
	from, ok := s.portByID[t.FromDevice]
	if !ok {
		return fmt.Errorf("task %d from device %d: %w", t.TaskID, t.FromDevice, ErrUnknownDevice)
	}
	to, ok := s.portByID[t.ToDevice]
	if !ok {
		return fmt.Errorf("task %d to device %d: %w", t.TaskID, t.ToDevice, ErrUnknownDevice)
	}
	if !from.Kind.Supplies() || !to.Kind.Consumes() {
		return fmt.Errorf("task %d %s(%d) -> %s(%d): %w", t.TaskID, from.Kind, from.ID, to.Kind, to.ID, ErrInvalidRoute)
	}
	return nil
}

func (s *Scheduler) knownTask(id task.TaskID) bool {
	if _, ok := s.assigned[id]; ok {
		return true
	}
	if _, ok := s.completed[id]; ok {
		return true
	}
	for _, t := range s.pending {
		if t.TaskID == id {
			return true
		}
	}
	return false
}

// openMaterial finds a pending or in-progress task moving material m. Ports
// report completion by material, so m must stay unique until it is consumed.
func (s *Scheduler) openMaterial(m task.MaterialID) (task.TaskID, bool) {
	for _, t := range s.pending {
		if t.MaterialID == m {
			return t.TaskID, true
		}
	}
	for _, id := range sortedIDs(s.assigned) {
		if s.assigned[id].Task.MaterialID == m {
			return id, true
		}
	}
	return 0, false
}

// Step advances the simulation by dt scaled by the acceleration factor. When
// MaxTimeStep is set the scaled step is split into equal sub-ticks no longer
// than it, so fast-forwarding does not coarsen the kinematics.
func (s *Scheduler) Step(dt float64) {
	h := dt * s.opts.AccelerationFactor
	if !(h > 0) {
		return
	}
	n := 1
	if s.opts.MaxTimeStep > 0 {
		n = int(math.Ceil(h/s.opts.MaxTimeStep - 1e-9))
		if n < 1 {
			n = 1
		}
	}
	sub := h / float64(n)
	for i := 0; i < n; i++ {
		s.tick(sub)
	}
}

func (s *Scheduler) tick(h float64) {
	s.clock += h
	s.assignTasks()
	s.preventCollisions()
	for _, c := range s.cars {
		c.Update(h)
	}
	for _, p := range s.ports {
		p.Update(h)
	}
	s.recordFeeds()
}

// PickUpCargo stamps the pickup time of an assigned task.
func (s *Scheduler) PickUpCargo(id task.TaskID) {
	rec, ok := s.assigned[id]
	if !ok {
		s.log.WithField("task", id).Warn("pickup for task that is not in progress")
		return
	}
	rec.PickUpTime = task.Stamp(s.clock)
}

// DropOffCargo stamps the drop-off time of an assigned task.
func (s *Scheduler) DropOffCargo(id task.TaskID) {
	rec, ok := s.assigned[id]
	if !ok {
		s.log.WithField("task", id).Warn("drop-off for task that is not in progress")
		return
	}
	rec.DropOffTime = task.Stamp(s.clock)
}

// CompleteTask moves an assigned task to the completed set.
func (s *Scheduler) CompleteTask(id task.TaskID) {
	rec, ok := s.assigned[id]
	if !ok {
		s.log.WithField("task", id).Warn("completion for task that is not in progress")
		return
	}
	delete(s.assigned, id)
	rec.Status = task.StatusDone
	rec.TakenTime = task.Stamp(s.clock)
	s.completed[id] = rec
	s.log.WithFields(logrus.Fields{"task": id, "material": rec.Task.MaterialID}).Info("task completed")
}

// CompleteMaterial completes the in-progress task moving material m.
func (s *Scheduler) CompleteMaterial(m task.MaterialID) {
	for _, id := range sortedIDs(s.assigned) {
		if s.assigned[id].Task.MaterialID == m {
			s.CompleteTask(id)
			return
		}
	}
	s.log.WithField("material", m).Warn("completion for material with no task in progress")
}

// CurrentTime is the virtual clock.
func (s *Scheduler) CurrentTime() float64 { return s.clock }

// AllTasksDone reports whether there is no outstanding work anywhere: no
// pending or assigned task, every car free and every port at rest.
func (s *Scheduler) AllTasksDone() bool {
	if len(s.pending) > 0 || len(s.assigned) > 0 {
		return false
	}
	for _, c := range s.cars {
		if !c.IsFree() {
			return false
		}
	}
	for _, p := range s.ports {
		if p.IsBusy() || p.QueueLen() > 0 || p.HasCargo() || p.MaterialID() != "" {
			return false
		}
		if p.Status() != port.StatusIdle && p.Status() != port.StatusEmpty {
			return false
		}
	}
	return true
}

func sortedIDs(m map[task.TaskID]*task.Record) []task.TaskID {
	ids := make([]task.TaskID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
