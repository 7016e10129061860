package engine

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/rgv-engine/internal/config"
	"github.com/cxd309/rgv-engine/internal/scheduler"
	"github.com/cxd309/rgv-engine/internal/task"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func inboundTask(id task.TaskID, created float64) task.Task {
	return task.Task{TaskID: id, MaterialID: "X", Type: task.TypeInbound, FromDevice: 16, ToDevice: 13, CreateTime: created}
}

func TestRunCompletesScenario(t *testing.T) {
	input := SimulationInput{
		Meta:  SimulationMeta{SimulationID: "run-1", RunTime: 300, TimeStep: 0.1, StopWhenDone: true, LogInterval: 10},
		Tasks: []task.Task{inboundTask(1, 0)},
	}
	out, err := Run(input, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "run-1", out.Meta.SimulationID)
	assert.True(t, out.AllDone)
	require.Len(t, out.Completed, 1)
	assert.Equal(t, task.StatusDone, out.Completed[0].Status)
	assert.Empty(t, out.Unfinished)
	assert.NotEmpty(t, out.SpeedEvents)
	assert.NotEmpty(t, out.DeviceEvents)

	require.NotEmpty(t, out.Output)
	last := out.Output[len(out.Output)-1]
	assert.Less(t, last.Timestamp, 300.0, "stopped once all work was done")
	assert.InDelta(t, *out.Completed[0].TakenTime, last.Timestamp, 1e-9)
	assert.Len(t, last.Cars, 4)
	assert.Len(t, last.Ports, 18)
	assert.InDelta(t, 1.0, out.Output[0].Timestamp, 1e-9, "one row every ten steps")
}

func TestRunReleasesTasksAtCreateTime(t *testing.T) {
	input := SimulationInput{
		Meta:  SimulationMeta{RunTime: 20, TimeStep: 0.5},
		Tasks: []task.Task{inboundTask(1, 5), {TaskID: 2, MaterialID: "Y", FromDevice: 17, ToDevice: 14, CreateTime: 100}},
	}
	out, err := Run(input, quietLogger())
	require.NoError(t, err)

	_, err = uuid.Parse(out.Meta.SimulationID)
	assert.NoError(t, err, "missing id is generated")
	assert.False(t, out.AllDone)
	assert.Len(t, out.Output, 40)

	require.Len(t, out.Unfinished, 2)
	started := out.Unfinished[0]
	assert.Equal(t, 1, started.Task.TaskID)
	require.NotNil(t, started.StartTime)
	assert.GreaterOrEqual(t, *started.StartTime, 5.0)
	assert.Equal(t, 2, out.Unfinished[1].Task.TaskID)
	assert.Equal(t, task.StatusPending, out.Unfinished[1].Status)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := Run(SimulationInput{Meta: SimulationMeta{RunTime: 10}}, quietLogger())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Run(SimulationInput{Meta: SimulationMeta{RunTime: -1, TimeStep: 1}}, quietLogger())
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := SimulationInput{
		Meta:  SimulationMeta{RunTime: 10, TimeStep: 1},
		Tasks: []task.Task{{TaskID: 1, MaterialID: "X", FromDevice: 16, ToDevice: 99}},
	}
	_, err = Run(bad, quietLogger())
	assert.ErrorIs(t, err, scheduler.ErrUnknownDevice)

	cfg := config.Default()
	cfg.Motion.MaxCurveSpeed = 10
	_, err = Run(SimulationInput{Meta: SimulationMeta{RunTime: 10, TimeStep: 1}, Config: &cfg}, quietLogger())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestDecodeInputOverlaysDefaults(t *testing.T) {
	yamlInput := `
simulation_meta:
  run_time: 10
  time_step: 0.1
config:
  fleet:
    positions: [5]
tasks:
  - task_id: 3
    material_id: M3
    type: outbound
    from_device: 2
    to_device: 13
`
	input, err := DecodeInput([]byte(yamlInput), "yaml")
	require.NoError(t, err)
	require.NotNil(t, input.Config)
	assert.Equal(t, []float64{5}, input.Config.Fleet.Positions)
	assert.Equal(t, 2.67, input.Config.Motion.MaxStraightSpeed)
	require.Len(t, input.Tasks, 1)
	assert.Equal(t, task.TypeOutbound, input.Tasks[0].Type)

	input, err = DecodeInput([]byte(`{"simulation_meta": {"run_time": 1, "time_step": 1}}`), "json")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *input.Config)

	input, err = DecodeInput([]byte(`{
		"simulation_meta": {"run_time": 1, "time_step": 1},
		"config": {"stations": [{"id": 1, "position": 5}]}
	}`), "json")
	require.NoError(t, err)
	require.Len(t, input.Config.Stations, 1)
	assert.Empty(t, input.Config.Stations[0].Kind, "station entries do not inherit default kinds")
	_, err = Run(input, quietLogger())
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = DecodeInput([]byte("x"), "toml")
	assert.ErrorIs(t, err, config.ErrUnknownFormat)
}

func TestRunJSON(t *testing.T) {
	in := `{
		"simulation_meta": {"simulation_id": "json-1", "run_time": 2, "time_step": 1},
		"config": {"fleet": {"positions": [0, 50]}},
		"tasks": [{"task_id": 1, "material_id": "X", "type": "inbound", "from_device": 16, "to_device": 13}]
	}`
	result, err := RunJSON(in)
	require.NoError(t, err)

	var out SimulationLog
	require.NoError(t, json.Unmarshal([]byte(result), &out))
	assert.Equal(t, "json-1", out.Meta.SimulationID)
	require.Len(t, out.Output, 2)
	assert.Len(t, out.Output[1].Cars, 2)
	require.Len(t, out.Unfinished, 1)
	assert.Equal(t, task.StatusInProgress, out.Unfinished[0].Status)

	_, err = RunJSON("{not json")
	assert.Error(t, err)
}

func TestDemoInputCompletes(t *testing.T) {
	input := DemoInput()
	require.Len(t, input.Tasks, 108)

	out, err := Run(input, quietLogger())
	require.NoError(t, err)
	assert.True(t, out.AllDone)
	assert.Len(t, out.Completed, 108)
	assert.Empty(t, out.Unfinished)
	assert.Less(t, out.Output[len(out.Output)-1].Timestamp, input.Meta.RunTime)
}
