// Package engine drives the shuttle scheduler.
//
// Run executes a whole scenario in fixed steps and returns a log; it is the
// entry point shared by the CLI and the WebAssembly build. Session wraps a
// scheduler for live use behind the HTTP API, advancing it either on request
// or from a ticker goroutine.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cxd309/rgv-engine/internal/config"
	"github.com/cxd309/rgv-engine/internal/scheduler"
	"github.com/cxd309/rgv-engine/internal/task"
)

// Runner executes one batch simulation.
type Runner struct {
	meta  SimulationMeta
	sched *scheduler.Scheduler
	tasks []task.Task // not yet released, by create time
	log   logrus.FieldLogger
}

// NewRunner validates input and builds the scheduler. A missing simulation id
// is filled with a random UUID.
func NewRunner(input SimulationInput, log logrus.FieldLogger) (*Runner, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	meta := input.Meta
	if !(meta.TimeStep > 0) {
		return nil, fmt.Errorf("time step %v: %w", meta.TimeStep, ErrInvalidInput)
	}
	if meta.RunTime < 0 || math.IsNaN(meta.RunTime) || math.IsInf(meta.RunTime, 0) {
		return nil, fmt.Errorf("run time %v: %w", meta.RunTime, ErrInvalidInput)
	}
	if meta.LogInterval < 0 {
		return nil, fmt.Errorf("log interval %d: %w", meta.LogInterval, ErrInvalidInput)
	}
	if meta.SimulationID == "" {
		meta.SimulationID = uuid.NewString()
	}

	cfg := config.Default()
	if input.Config != nil {
		cfg = *input.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithField("simulation", meta.SimulationID)
	s, err := scheduler.New(cfg.Options(log))
	if err != nil {
		return nil, fmt.Errorf("building scheduler: %w", err)
	}

	tasks := append([]task.Task(nil), input.Tasks...)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreateTime < tasks[j].CreateTime })

	return &Runner{meta: meta, sched: s, tasks: tasks, log: log}, nil
}

// Run executes the simulation and returns the log. Tasks are handed to the
// scheduler once the clock reaches their create time; an invalid task aborts
// the run.
func (r *Runner) Run() (SimulationLog, error) {
	out := SimulationLog{Meta: r.meta}
	steps := int(math.Ceil(r.meta.RunTime/r.meta.TimeStep - 1e-9))
	every := max(r.meta.LogInterval, 1)

	r.log.WithFields(logrus.Fields{"steps": steps, "tasks": len(r.tasks)}).Info("simulation started")
	for i := 1; i <= steps; i++ {
		if err := r.release(); err != nil {
			return SimulationLog{}, err
		}
		r.sched.Step(r.meta.TimeStep)

		done := len(r.tasks) == 0 && r.sched.AllTasksDone()
		if i%every == 0 || i == steps || (done && r.meta.StopWhenDone) {
			out.Output = append(out.Output, SimulationLogRow{
				Timestamp: r.sched.Clock(),
				Cars:      r.sched.Cars(),
				Ports:     r.sched.Ports(),
			})
		}
		if done && r.meta.StopWhenDone {
			break
		}
	}
	if err := r.release(); err != nil {
		return SimulationLog{}, err
	}

	out.Completed = r.sched.CompletedTasks()
	out.Unfinished = append(r.sched.PendingTasks(), r.sched.AssignedTasks()...)
	for _, t := range r.tasks {
		out.Unfinished = append(out.Unfinished, scheduler.TaskSnapshot{Record: task.Record{Task: t, Status: task.StatusPending}})
	}
	out.SpeedEvents = r.sched.SpeedEvents()
	out.DeviceEvents = r.sched.DeviceEvents()
	out.AllDone = len(r.tasks) == 0 && r.sched.AllTasksDone()

	r.log.WithFields(logrus.Fields{
		"clock": r.sched.Clock(), "completed": len(out.Completed), "unfinished": len(out.Unfinished),
	}).Info("simulation finished")
	return out, nil
}

// release hands over every task whose create time has been reached.
func (r *Runner) release() error {
	now := r.sched.Clock()
	for len(r.tasks) > 0 && r.tasks[0].CreateTime <= now {
		t := r.tasks[0]
		if err := r.sched.AddTask(t); err != nil {
			return fmt.Errorf("task %d: %w", t.TaskID, err)
		}
		r.tasks = r.tasks[1:]
	}
	return nil
}

// Run builds a Runner for input and executes it.
func Run(input SimulationInput, log logrus.FieldLogger) (SimulationLog, error) {
	r, err := NewRunner(input, log)
	if err != nil {
		return SimulationLog{}, err
	}
	return r.Run()
}

// DecodeInput parses a SimulationInput in the given format ("json", "yaml" or
// "yml"). A config section is decoded over the default installation, so it
// only needs to name what differs.
func DecodeInput(data []byte, format string) (SimulationInput, error) {
	def := config.Default()
	input := SimulationInput{Config: &def}
	switch format {
	case "json":
		if err := json.Unmarshal(data, &input); err != nil {
			return SimulationInput{}, fmt.Errorf("invalid input JSON: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &input); err != nil {
			return SimulationInput{}, fmt.Errorf("invalid input YAML: %w", err)
		}
	default:
		return SimulationInput{}, fmt.Errorf("input format %q: %w", format, config.ErrUnknownFormat)
	}
	return input, nil
}

// RunJSON is the entry point for the CLI and WASM targets. It accepts a
// JSON-encoded SimulationInput, runs the simulation, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	input, err := DecodeInput([]byte(jsonInput), "json")
	if err != nil {
		return "", err
	}

	simLog, err := Run(input, nil)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
