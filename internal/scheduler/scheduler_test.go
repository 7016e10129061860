package scheduler

import (
	"io"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/kinematics"
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/task"
	"github.com/cxd309/rgv-engine/internal/track"
)

const dt = 0.1

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testOptions(cars ...float64) Options {
	opts := DefaultOptions()
	opts.CarPositions = cars
	opts.Logger = quietLogger()
	return opts
}

func newScheduler(t *testing.T, opts Options) *Scheduler {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func transport(id task.TaskID, m task.MaterialID, from, to task.DeviceID) task.Task {
	return task.Task{TaskID: id, MaterialID: m, Type: task.TypeInbound, FromDevice: from, ToDevice: to}
}

// stepUntil advances in dt steps until cond holds, failing after limit steps.
func stepUntil(t *testing.T, s *Scheduler, limit int, cond func() bool) {
	t.Helper()
	for i := 0; i < limit; i++ {
		s.Step(dt)
		if cond() {
			return
		}
	}
	t.Fatalf("condition not met after %d steps (clock %.1f)", limit, s.Clock())
}

func record(t *testing.T, views []TaskSnapshot, id task.TaskID) TaskSnapshot {
	t.Helper()
	for _, v := range views {
		if v.Task.TaskID == id {
			return v
		}
	}
	t.Fatalf("task %d not found", id)
	return TaskSnapshot{}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	cases := map[string]func(*Options){
		"acceleration factor": func(o *Options) { o.AccelerationFactor = 0 },
		"motion model":        func(o *Options) { o.CarParams.Model = nil },
		"track":               func(o *Options) { o.Track = track.Track{} },
		"search bounds":       func(o *Options) { o.MaxSearchPorts = 0 },
		"station kind":        func(o *Options) { o.Stations[0].Kind = "dock" },
		"duplicate station":   func(o *Options) { o.Stations[1].ID = o.Stations[0].ID },
		"overlapping cars":    func(o *Options) { o.CarPositions = []float64{99, 0.5} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := testOptions(0)
			mutate(&opts)
			_, err := New(opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestAddTaskValidation(t *testing.T) {
	s := newScheduler(t, testOptions(0))
	require.NoError(t, s.AddTask(transport(1, "X", 16, 13)))

	cases := []struct {
		name string
		task task.Task
		err  error
	}{
		{"unknown origin", transport(2, "Y", 99, 13), ErrUnknownDevice},
		{"unknown destination", transport(3, "Y", 16, 42), ErrUnknownDevice},
		{"origin is a sink", transport(4, "Y", 13, 14), ErrInvalidRoute},
		{"destination is a supply", transport(5, "Y", 16, 2), ErrInvalidRoute},
		{"duplicate id", transport(1, "Y", 17, 14), ErrDuplicateTask},
		{"no material", transport(6, "", 17, 14), ErrInvalidTask},
		{"material in use", transport(7, "X", 17, 1), ErrDuplicateMaterial},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, s.AddTask(c.task), c.err)
		})
	}

	pending := s.PendingTasks()
	require.Len(t, pending, 1)
	assert.Equal(t, task.StatusPending, pending[0].Status)
	assert.Equal(t, port.StatusFull, s.portByID[16].Status(), "material staged on the origin port")
	assert.Equal(t, "X", s.portByID[16].MaterialID())
}

// A single car carries X from inlet 16 to outlet 13: the outlet holds X once
// the car has unloaded, and the task is done once the outlet has consumed it.
func TestSingleTaskRoundTrip(t *testing.T) {
	s := newScheduler(t, testOptions(80))
	require.NoError(t, s.AddTask(transport(1, "X", 16, 13)))
	assert.False(t, s.AllTasksDone())

	s.Step(dt)
	rec := record(t, s.AssignedTasks(), 1)
	assert.Equal(t, task.StatusInProgress, rec.Status)
	require.NotNil(t, rec.AssignedCarID)
	assert.Equal(t, 1, *rec.AssignedCarID)
	require.NotNil(t, rec.StartTime)
	assert.InDelta(t, dt, *rec.StartTime, 1e-9)
	assert.Nil(t, rec.PickUpTime)
	assert.Equal(t, 0.0, rec.Progress)
	assert.Empty(t, s.PendingTasks())

	stepUntil(t, s, 1000, func() bool { return record(t, s.AssignedTasks(), 1).PickUpTime != nil })
	stepUntil(t, s, 1000, func() bool {
		p := record(t, s.AssignedTasks(), 1).Progress
		return p > 0.5 && p < 1
	})

	stepUntil(t, s, 1000, func() bool { return record(t, s.AssignedTasks(), 1).DropOffTime != nil })
	c := s.Cars()[0]
	assert.Equal(t, car.StatusIdle, c.Status)
	assert.Nil(t, c.Task)
	assert.False(t, c.HasMaterial)
	sink := s.portByID[13]
	assert.True(t, sink.HasCargo())
	assert.Equal(t, "X", sink.MaterialID())
	assert.Equal(t, 1.0, record(t, s.AssignedTasks(), 1).Progress)

	stepUntil(t, s, 1000, func() bool { return len(s.CompletedTasks()) == 1 })
	done := s.CompletedTasks()[0]
	assert.Equal(t, task.StatusDone, done.Status)
	require.NotNil(t, done.TakenTime)
	assert.GreaterOrEqual(t, *done.TakenTime, *done.DropOffTime)
	assert.GreaterOrEqual(t, *done.DropOffTime, *done.PickUpTime)
	assert.Equal(t, 1.0, done.Progress)
	assert.Empty(t, s.AssignedTasks())
	assert.True(t, s.AllTasksDone())
	assert.Equal(t, 0, sink.Violations()+s.portByID[16].Violations())

	require.NoError(t, s.AddTask(transport(2, "X", 16, 13)), "consumed material can be moved again")
}

func TestFleetInvariantsHoldEveryTick(t *testing.T) {
	s := newScheduler(t, testOptions(0, 25, 50, 75))
	tasks := DefaultTasks()
	for _, tk := range tasks {
		require.NoError(t, s.AddTask(tk))
	}
	n := len(tasks)
	tr := track.DefaultTrack()
	vCurve := car.DefaultParams().MaxCurveSpeed

	for step := 0; !s.AllTasksDone(); step++ {
		require.Less(t, step, 40000, "fleet did not finish")
		s.Step(dt)

		seen := make(map[task.TaskID]int)
		for _, v := range s.PendingTasks() {
			seen[v.Task.TaskID]++
		}
		for _, v := range s.AssignedTasks() {
			seen[v.Task.TaskID]++
		}
		for _, v := range s.CompletedTasks() {
			seen[v.Task.TaskID]++
		}
		require.Len(t, seen, n)
		for id, count := range seen {
			require.Equal(t, 1, count, "task %d in %d sets", id, count)
		}

		carrying := make(map[task.TaskID]int)
		for _, c := range s.Cars() {
			require.GreaterOrEqual(t, c.Position, 0.0)
			require.Less(t, c.Position, tr.Length)
			if tr.InCurve(c.Position) {
				require.LessOrEqual(t, c.Speed, vCurve+1e-9, "car %d at %v", c.ID, c.Position)
			}
			if c.Task != nil {
				carrying[c.Task.TaskID]++
				require.Equal(t, 1, carrying[c.Task.TaskID], "task %d on two cars", c.Task.TaskID)
			}
		}

		cars := s.Cars()
		sort.Slice(cars, func(i, j int) bool { return cars[i].Position < cars[j].Position })
		for i, c := range cars {
			front := cars[(i+1)%len(cars)]
			gap := tr.DistanceForward(c.Position, front.Position)
			require.GreaterOrEqual(t, gap, s.opts.CarLength-1e-9, "car %d runs into car %d", c.ID, front.ID)
		}
	}
	assert.Len(t, s.CompletedTasks(), n)
	for _, p := range s.Ports() {
		assert.Equal(t, 0, s.portByID[p.ID].Violations(), "port %d", p.ID)
	}
}

// Two cars converge on two ports at the same spot with overlapping arrival
// windows: only one of them may be dispatched in the same pass.
func TestConflictingPairsAreNotDispatchedTogether(t *testing.T) {
	opts := testOptions(60, 55)
	opts.Stations = []Station{
		{ID: 1, Kind: port.KindInlet, Position: 14.4},
		{ID: 2, Kind: port.KindInlet, Position: 14.4},
		{ID: 3, Kind: port.KindOutlet, Position: 30},
		{ID: 4, Kind: port.KindOutlet, Position: 35},
	}
	s := newScheduler(t, opts)
	require.NoError(t, s.AddTask(transport(10, "A", 1, 3)))
	require.NoError(t, s.AddTask(transport(11, "B", 2, 4)))

	s.Step(dt)
	assigned := s.AssignedTasks()
	require.Len(t, assigned, 1)
	assert.Equal(t, 10, assigned[0].Task.TaskID)
	assert.Equal(t, 1, *assigned[0].AssignedCarID, "the closer car wins")
	require.Len(t, s.PendingTasks(), 1)

	s.Step(dt)
	assert.Len(t, s.AssignedTasks(), 2, "the deferred port is retried on the next tick")
}

func TestNonConflictingPairsAreDispatchedTogether(t *testing.T) {
	opts := testOptions(60, 55)
	opts.Stations = []Station{
		{ID: 1, Kind: port.KindInlet, Position: 14.4},
		{ID: 2, Kind: port.KindInlet, Position: 80},
		{ID: 3, Kind: port.KindOutlet, Position: 30},
		{ID: 4, Kind: port.KindOutlet, Position: 35},
	}
	s := newScheduler(t, opts)
	require.NoError(t, s.AddTask(transport(10, "A", 1, 3)))
	require.NoError(t, s.AddTask(transport(11, "B", 2, 4)))

	s.Step(dt)
	assert.Len(t, s.AssignedTasks(), 2)
	assert.Empty(t, s.PendingTasks())
}

func TestStationaryCarIsNotAssigned(t *testing.T) {
	opts := testOptions(80)
	opts.CarParams.Model = kinematics.ConstantAcceleration{AAcc: 0.5, ADcc: 0.5}
	s := newScheduler(t, opts)
	require.NoError(t, s.AddTask(transport(1, "X", 16, 13)))
	for i := 0; i < 10; i++ {
		s.Step(dt)
	}
	assert.Len(t, s.PendingTasks(), 1)
	assert.Empty(t, s.AssignedTasks())
}

// Car 2 loads at inlet 16 while car 1 cruises up behind it: car 1 is held to
// zero target speed and gets its top speed back once car 2 has pulled away.
func TestCollisionGovernorHoldsAndReleases(t *testing.T) {
	s := newScheduler(t, testOptions(80, 85.47))
	require.NoError(t, s.AddTask(transport(1, "X", 16, 13)))

	stepUntil(t, s, 100, func() bool { return s.Cars()[0].CollisionBraking })
	follower, leader := s.Cars()[0], s.Cars()[1]
	assert.Equal(t, 0.0, follower.TargetSpeed)
	assert.Equal(t, car.StatusLoading, leader.Status)

	stepUntil(t, s, 100, func() bool { return s.Cars()[0].Speed == 0 })
	follower, leader = s.Cars()[0], s.Cars()[1]
	gap := s.track.DistanceForward(follower.Position, leader.Position)
	assert.Greater(t, gap, s.opts.CarLength, "stopped without touching the leader")

	stepUntil(t, s, 200, func() bool { return !s.Cars()[0].CollisionBraking })
	follower = s.Cars()[0]
	assert.Equal(t, follower.TargetSpeed, car.DefaultParams().Model.VMax())
	assert.Equal(t, car.StatusMoving, s.Cars()[1].Status)
}

func TestStepIsIndependentOfAccelerationFactor(t *testing.T) {
	build := func(factor float64) *Scheduler {
		opts := testOptions(0, 25, 50, 75)
		opts.AccelerationFactor = factor
		s := newScheduler(t, opts)
		require.NoError(t, s.AddTask(transport(1, "X", 16, 13)))
		require.NoError(t, s.AddTask(transport(2, "Y", 2, 1)))
		return s
	}
	slow, fast := build(1), build(10)
	for i := 0; i < 1000; i++ {
		slow.Step(dt)
	}
	for i := 0; i < 100; i++ {
		fast.Step(dt)
	}
	assert.InDelta(t, slow.Clock(), fast.Clock(), 1e-9)
	assert.Equal(t, slow.Cars(), fast.Cars())
	assert.Equal(t, slow.Ports(), fast.Ports())
}

func TestStepIgnoresNonPositiveDuration(t *testing.T) {
	s := newScheduler(t, testOptions(0))
	s.Step(0)
	s.Step(-1)
	assert.Equal(t, 0.0, s.Clock())
}

func TestLifecycleCallbacksForUnknownTasksAreIgnored(t *testing.T) {
	s := newScheduler(t, testOptions(0))
	s.PickUpCargo(5)
	s.DropOffCargo(5)
	s.CompleteTask(5)
	s.CompleteMaterial("ghost")
	assert.Empty(t, s.CompletedTasks())
	assert.Equal(t, s.Clock(), s.CurrentTime())
}

func TestSnapshotAggregatesProjections(t *testing.T) {
	s := newScheduler(t, testOptions(0, 50))
	require.NoError(t, s.AddTask(transport(1, "X", 16, 13)))
	s.Step(dt)

	st := s.Snapshot()
	assert.InDelta(t, dt, st.Clock, 1e-9)
	assert.Len(t, st.Cars, 2)
	assert.Len(t, st.Ports, 18)
	assert.Len(t, st.Assigned, 1)
	assert.Empty(t, st.Pending)
	assert.False(t, st.Done)
	assert.Equal(t, 1, st.Ports[0].ID)
}
