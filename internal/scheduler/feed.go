package scheduler

import (
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/task"
)

// SpeedEvent is emitted when the sign of a car's applied acceleration changes.
type SpeedEvent struct {
	Time         float64 `json:"time"`
	CarID        int     `json:"car_id"`
	Position     float64 `json:"position"`
	Speed        float64 `json:"speed"`
	Acceleration float64 `json:"acceleration"`
}

// DeviceEvent is emitted when a port gains or loses cargo.
type DeviceEvent struct {
	Time       float64         `json:"time"`
	PortID     task.DeviceID   `json:"port_id"`
	HasCargo   bool            `json:"has_cargo"`
	MaterialID task.MaterialID `json:"material_id,omitempty"`
	Status     port.Status     `json:"status"`
}

// feed is a bounded event log; the oldest events are dropped first.
type feed[T any] struct {
	limit   int
	items   []T
	dropped int
}

func newFeed[T any](limit int) *feed[T] {
	return &feed[T]{limit: limit}
}

func (f *feed[T]) push(e T) {
	if f.limit > 0 && len(f.items) == f.limit {
		copy(f.items, f.items[1:])
		f.items = f.items[:len(f.items)-1]
		f.dropped++
	}
	f.items = append(f.items, e)
}

func (f *feed[T]) list() []T {
	return append([]T(nil), f.items...)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// recordFeeds compares post-tick state with the previous tick and emits events.
func (s *Scheduler) recordFeeds() {
	for _, c := range s.cars {
		a := sign(c.Acceleration())
		if a != s.lastAccel[c.ID] {
			s.lastAccel[c.ID] = a
			s.speedFeed.push(SpeedEvent{
				Time:         s.clock,
				CarID:        c.ID,
				Position:     c.Position(),
				Speed:        c.Speed(),
				Acceleration: c.Acceleration(),
			})
		}
	}
	for _, p := range s.ports {
		if p.HasCargo() != s.lastCargo[p.ID] {
			s.lastCargo[p.ID] = p.HasCargo()
			s.deviceFeed.push(DeviceEvent{
				Time:       s.clock,
				PortID:     p.ID,
				HasCargo:   p.HasCargo(),
				MaterialID: p.MaterialID(),
				Status:     p.Status(),
			})
		}
	}
}
