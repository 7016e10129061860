// Package port implements the station state machine: a port holds at most one
// active material unit, queues further requests in arrival order, and runs
// load/unload operations as countdown timers advanced by the simulation tick.
package port

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/task"
)

// Kind determines the legal direction of material flow at a port.
type Kind string

const (
	KindInlet        Kind = "inlet"
	KindOutlet       Kind = "outlet"
	KindInInterface  Kind = "in-interface"
	KindOutInterface Kind = "out-interface"
)

// Supplies reports whether material appears at this kind of port and is picked up by cars.
func (k Kind) Supplies() bool { return k == KindInlet || k == KindOutInterface }

// Consumes reports whether cars deliver material to this kind of port.
func (k Kind) Consumes() bool { return k == KindOutlet || k == KindInInterface }

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool { return k.Supplies() || k.Consumes() }

// Status is the operational state of a port.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusWaiting   Status = "waiting"
	StatusLoading   Status = "loading"
	StatusUnloading Status = "unloading"
	StatusFull      Status = "full"
	StatusEmpty     Status = "empty"
)

// Durations are the operation times per port kind, in virtual time units.
type Durations struct {
	InletLoading         float64 `json:"inlet_loading" yaml:"inlet_loading"`
	OutInterfaceLoading  float64 `json:"out_interface_loading" yaml:"out_interface_loading"`
	InInterfaceUnloading float64 `json:"in_interface_unloading" yaml:"in_interface_unloading"`
	OutletUnloading      float64 `json:"outlet_unloading" yaml:"outlet_unloading"`
}

// DefaultDurations are the production operation times.
func DefaultDurations() Durations {
	return Durations{
		InletLoading:         30,
		OutInterfaceLoading:  50,
		InInterfaceUnloading: 25,
		OutletUnloading:      30,
	}
}

// operation returns the status and duration of the operation this kind runs
// on a freshly promoted material.
func (d Durations) operation(k Kind) (Status, float64) {
	switch k {
	case KindInlet:
		return StatusLoading, d.InletLoading
	case KindOutInterface:
		return StatusLoading, d.OutInterfaceLoading
	case KindInInterface:
		return StatusUnloading, d.InInterfaceUnloading
	default:
		return StatusUnloading, d.OutletUnloading
	}
}

// Port is a fixed station on the loop.
type Port struct {
	ID       task.DeviceID
	Kind     Kind
	Position float64

	status     Status
	hasCargo   bool
	timer      float64
	queue      []task.MaterialID
	current    task.MaterialID // "" when no material is active
	durations  Durations
	violations int

	sink task.TaskSink
	log  logrus.FieldLogger
}

// New creates an idle port. A nil sink discards lifecycle events and a nil
// logger falls back to the logrus standard logger.
func New(id task.DeviceID, kind Kind, position float64, durations Durations, sink task.TaskSink, log logrus.FieldLogger) *Port {
	if sink == nil {
		sink = task.NopSink{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Port{
		ID:        id,
		Kind:      kind,
		Position:  position,
		status:    StatusIdle,
		durations: durations,
		sink:      sink,
		log:       log.WithFields(logrus.Fields{"port": id, "kind": kind}),
	}
}

// AddTask queues a material request. A supply port that is free promotes the
// request immediately and is Full without running an operation: the material
// is pre-staged and ready for pickup.
func (p *Port) AddTask(m task.MaterialID) {
	p.queue = append(p.queue, m)
	if p.current != "" || !p.IsAvailable() {
		return
	}
	if p.Kind.Supplies() {
		p.current = p.dequeue()
		p.hasCargo = true
		p.status = StatusFull
		return
	}
	p.startNextTask()
}

// Update advances the operation timer by dt.
func (p *Port) Update(dt float64) {
	if p.timer <= 0 {
		return
	}
	p.timer -= dt
	if p.timer <= 0 {
		p.timer = 0
		p.finishOperation()
	}
}

func (p *Port) finishOperation() {
	switch {
	case p.Kind.Supplies() && p.status == StatusLoading:
		p.hasCargo = true
		p.status = StatusFull
	case p.Kind.Consumes() && p.status == StatusUnloading:
		consumed := p.current
		p.hasCargo = false
		p.status = StatusIdle
		p.current = ""
		p.sink.CompleteMaterial(consumed)
		p.startNextTask()
	}
}

func (p *Port) startNextTask() {
	if len(p.queue) == 0 || !p.IsAvailable() {
		return
	}
	if p.Kind.Consumes() && p.status != StatusIdle {
		return
	}
	p.current = p.dequeue()
	if p.Kind.Consumes() {
		p.hasCargo = true
	}
	p.StartOperation(p.durations.operation(p.Kind))
}

func (p *Port) dequeue() task.MaterialID {
	m := p.queue[0]
	p.queue = p.queue[1:]
	return m
}

// OnMaterialTaken is called by a car removing material from a supply port.
func (p *Port) OnMaterialTaken() error {
	if !p.Kind.Supplies() {
		return p.violation(fmt.Errorf("take from port %d: %w", p.ID, ErrWrongKind))
	}
	if !p.hasCargo {
		return p.violation(fmt.Errorf("take from port %d: %w", p.ID, ErrNoCargo))
	}
	p.hasCargo = false
	p.status = StatusIdle
	p.current = ""
	p.startNextTask()
	return nil
}

// OnMaterialPlaced is called by a car delivering m to a sink port. The port
// then consumes the material over its kind's unloading duration.
func (p *Port) OnMaterialPlaced(m task.MaterialID) error {
	if !p.Kind.Consumes() {
		return p.violation(fmt.Errorf("place %q on port %d: %w", m, p.ID, ErrWrongKind))
	}
	if p.hasCargo {
		return p.violation(fmt.Errorf("place %q on port %d: %w", m, p.ID, ErrHasCargo))
	}
	if p.current != "" && p.current != m {
		return p.violation(fmt.Errorf("place %q on port %d holding %q: %w", m, p.ID, p.current, ErrReserved))
	}
	p.hasCargo = true
	p.status = StatusFull
	p.current = m
	status, d := p.durations.operation(p.Kind)
	p.StartOperation(status, d)
	return nil
}

// Reserve marks m as the port's current material while a car unloads onto it.
func (p *Port) Reserve(m task.MaterialID) error {
	if m == "" {
		return p.violation(fmt.Errorf("reserve port %d: %w", p.ID, ErrNoMaterial))
	}
	if !p.Kind.Consumes() {
		return p.violation(fmt.Errorf("reserve port %d for %q: %w", p.ID, m, ErrWrongKind))
	}
	if !p.CanReceive() {
		return fmt.Errorf("reserve port %d for %q: %w", p.ID, m, ErrNotReady)
	}
	p.current = m
	return nil
}

// StartOperation starts a timed operation. It is a no-op while another
// operation is running.
func (p *Port) StartOperation(status Status, duration float64) {
	if p.IsBusy() {
		return
	}
	p.status = status
	p.timer = duration
	if duration <= 0 {
		p.finishOperation()
	}
}

func (p *Port) violation(err error) error {
	p.violations++
	p.log.WithError(err).Warn("port precondition violated")
	return err
}

// CanSupply reports whether a car may pick up m here right now.
func (p *Port) CanSupply(m task.MaterialID) bool {
	return p.Kind.Supplies() && p.status == StatusFull && p.hasCargo && p.current == m
}

// CanReceive reports whether a car may start unloading here right now.
func (p *Port) CanReceive() bool {
	return p.Kind.Consumes() && p.IsAvailable() && !p.hasCargo && p.current == ""
}

// IsBusy reports whether an operation timer is running.
func (p *Port) IsBusy() bool { return p.timer > 0 }

// IsAvailable reports whether the port can start handling new material.
func (p *Port) IsAvailable() bool {
	return !p.IsBusy() && (p.status == StatusIdle || p.status == StatusEmpty)
}

func (p *Port) Status() Status              { return p.status }
func (p *Port) HasCargo() bool              { return p.hasCargo }
func (p *Port) MaterialID() task.MaterialID { return p.current }
func (p *Port) QueueLen() int               { return len(p.queue) }
func (p *Port) RemainingOperation() float64 { return p.timer }
func (p *Port) Violations() int             { return p.violations }
func (p *Port) Queue() []task.MaterialID    { return append([]task.MaterialID(nil), p.queue...) }

// Snapshot is a read-only view of a port.
type Snapshot struct {
	ID                task.DeviceID   `json:"id"`
	Kind              Kind            `json:"kind"`
	Position          float64         `json:"position"`
	Status            Status          `json:"status"`
	CurrentMaterialID task.MaterialID `json:"current_material_id,omitempty"`
	HasCargo          bool            `json:"has_cargo"`
	QueueLength       int             `json:"queue_length"`
	RemainingTime     float64         `json:"remaining_time"`
}

// Snapshot returns a point-in-time view of the port.
func (p *Port) Snapshot() Snapshot {
	return Snapshot{
		ID:                p.ID,
		Kind:              p.Kind,
		Position:          p.Position,
		Status:            p.status,
		CurrentMaterialID: p.current,
		HasCargo:          p.hasCargo,
		QueueLength:       len(p.queue),
		RemainingTime:     p.timer,
	}
}
