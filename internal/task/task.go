// Package task defines transport tasks, their lifecycle records, and the
// TaskSink capability through which cars and ports report progress back to
// the scheduler that owns the bookkeeping.
package task

import "github.com/cxd309/rgv-engine/internal/track"

// Identifiers. Device ids are station ids on the track.
type (
	TaskID     = int
	MaterialID = string
	DeviceID   = track.StationID
)

// Type classifies a transport task.
type Type string

const (
	TypeInbound  Type = "inbound"
	TypeOutbound Type = "outbound"
	TypeCruise   Type = "cruise"
)

// Status is the lifecycle stage of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Task is a request to move one material unit from one device to another.
type Task struct {
	TaskID     TaskID     `json:"task_id" yaml:"task_id"`
	MaterialID MaterialID `json:"material_id" yaml:"material_id"`
	Type       Type       `json:"type" yaml:"type"`
	FromDevice DeviceID   `json:"from_device" yaml:"from_device"`
	ToDevice   DeviceID   `json:"to_device" yaml:"to_device"`
	CreateTime float64    `json:"create_time" yaml:"create_time"`
}

// Record is the scheduler's lifecycle entry for a task. Timestamps are
// virtual-clock times; nil means the event has not happened yet.
type Record struct {
	Task          Task     `json:"task"`
	Status        Status   `json:"status"`
	AssignedCarID *int     `json:"assigned_car_id"`
	StartTime     *float64 `json:"start_time"`
	PickUpTime    *float64 `json:"pick_up_time"`
	DropOffTime   *float64 `json:"drop_off_time"`
	TakenTime     *float64 `json:"taken_time"`
}

// Clone returns a deep copy so callers cannot mutate the scheduler's record.
func (r Record) Clone() Record {
	if r.AssignedCarID != nil {
		id := *r.AssignedCarID
		r.AssignedCarID = &id
	}
	r.StartTime = clonef(r.StartTime)
	r.PickUpTime = clonef(r.PickUpTime)
	r.DropOffTime = clonef(r.DropOffTime)
	r.TakenTime = clonef(r.TakenTime)
	return r
}

func clonef(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Stamp returns a pointer to a copy of t, for filling Record timestamps.
func Stamp(t float64) *float64 { return &t }
