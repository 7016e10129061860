package engine

import (
	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/config"
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/scheduler"
	"github.com/cxd309/rgv-engine/internal/task"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id" yaml:"simulation_id"`
	RunTime      float64 `json:"run_time" yaml:"run_time"`   // virtual time units
	TimeStep     float64 `json:"time_step" yaml:"time_step"` // virtual time units per step
	StopWhenDone bool    `json:"stop_when_done" yaml:"stop_when_done"`
	LogInterval  int     `json:"log_interval,omitempty" yaml:"log_interval,omitempty"` // steps between log rows; 0 logs every step
}

// SimulationInput is the serialisable input to the engine. A nil Config runs
// the default installation.
type SimulationInput struct {
	Meta   SimulationMeta `json:"simulation_meta" yaml:"simulation_meta"`
	Config *config.Config `json:"config,omitempty" yaml:"config,omitempty"`
	Tasks  []task.Task    `json:"tasks" yaml:"tasks"`
}

// SimulationLogRow is the state of the fleet and the ports at one step.
type SimulationLogRow struct {
	Timestamp float64         `json:"timestamp"`
	Cars      []car.Snapshot  `json:"cars"`
	Ports     []port.Snapshot `json:"ports"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta         SimulationMeta           `json:"simulation_meta"`
	Output       []SimulationLogRow       `json:"output"`
	Completed    []scheduler.TaskSnapshot `json:"completed"`
	Unfinished   []scheduler.TaskSnapshot `json:"unfinished"`
	SpeedEvents  []scheduler.SpeedEvent   `json:"speed_events"`
	DeviceEvents []scheduler.DeviceEvent  `json:"device_events"`
	AllDone      bool                     `json:"all_done"`
}

// DemoInput is the reference workload: every task of scheduler.DefaultTasks on
// the default installation, run until all of them are done.
func DemoInput() SimulationInput {
	return SimulationInput{
		Meta: SimulationMeta{
			SimulationID: "demo",
			RunTime:      3600,
			TimeStep:     0.1,
			StopWhenDone: true,
			LogInterval:  100,
		},
		Tasks: scheduler.DefaultTasks(),
	}
}
