package scheduler

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/task"
	"github.com/cxd309/rgv-engine/internal/track"
)

// Station places a port of the given kind on the track.
type Station struct {
	ID       task.DeviceID
	Kind     port.Kind
	Position float64
}

// Options configure a Scheduler. They are supplied once at construction.
type Options struct {
	Track         track.Track
	Stations      []Station
	CarPositions  []float64 // one car per entry, ids 1..n
	CarParams     car.Params
	PortDurations port.Durations

	CarLength      float64 // vehicle length used by the collision governor
	SafetyMargin   float64 // extra gap kept on top of vehicle length
	PickupEstimate float64 // nominal pickup time used by conflict detection

	AccelerationFactor float64 // Step(dt) advances dt*AccelerationFactor
	MaxTimeStep        float64 // split larger effective steps; 0 disables
	MaxSearchCars      int     // cars considered per assignment pass
	MaxSearchPorts     int     // ports considered per assignment pass
	FeedCapacity       int     // events retained per telemetry feed

	Logger logrus.FieldLogger
}

// DefaultStationKinds maps the production station ids to their port kinds.
func DefaultStationKinds() map[task.DeviceID]port.Kind {
	kinds := make(map[task.DeviceID]port.Kind, 18)
	for id := 1; id <= 12; id++ {
		if id%2 == 1 {
			kinds[id] = port.KindInInterface
		} else {
			kinds[id] = port.KindOutInterface
		}
	}
	for id := 13; id <= 15; id++ {
		kinds[id] = port.KindOutlet
	}
	for id := 16; id <= 18; id++ {
		kinds[id] = port.KindInlet
	}
	return kinds
}

// DefaultStations is the production station table with kinds.
func DefaultStations() []Station {
	kinds := DefaultStationKinds()
	var out []Station
	for _, s := range track.DefaultStations() {
		out = append(out, Station{ID: s.ID, Kind: kinds[s.ID], Position: s.Position})
	}
	return out
}

// DefaultTasks is the reference workload for the default layout: three units
// from each inlet (16-18) to each odd in-interface (1-11), then three units from
// each out-interface (2-12) to each outlet (13-15). Ids and materials run
// 1..108 and TP001..TP108, all created at time 0.
func DefaultTasks() []task.Task {
	var out []task.Task
	add := func(typ task.Type, from, to task.DeviceID) {
		for i := 0; i < 3; i++ {
			id := len(out) + 1
			out = append(out, task.Task{
				TaskID:     id,
				MaterialID: fmt.Sprintf("TP%03d", id),
				Type:       typ,
				FromDevice: from,
				ToDevice:   to,
			})
		}
	}
	for from := 16; from <= 18; from++ {
		for to := 1; to <= 11; to += 2 {
			add(task.TypeInbound, from, to)
		}
	}
	for from := 2; from <= 12; from += 2 {
		for to := 13; to <= 15; to++ {
			add(task.TypeOutbound, from, to)
		}
	}
	return out
}

// DefaultOptions are the production settings with a fleet of four cars.
func DefaultOptions() Options {
	return Options{
		Track:              track.DefaultTrack(),
		Stations:           DefaultStations(),
		CarPositions:       []float64{0, 25, 50, 75},
		CarParams:          car.DefaultParams(),
		PortDurations:      port.DefaultDurations(),
		CarLength:          2,
		SafetyMargin:       0.2,
		PickupEstimate:     5,
		AccelerationFactor: 1,
		MaxTimeStep:        0.1,
		MaxSearchCars:      6,
		MaxSearchPorts:     6,
		FeedCapacity:       4096,
	}
}

func (o Options) validate() error {
	if err := o.Track.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o.CarParams.Model == nil {
		return fmt.Errorf("%w: missing motion model", ErrInvalidOptions)
	}
	if o.AccelerationFactor <= 0 {
		return fmt.Errorf("%w: acceleration factor %v must be positive", ErrInvalidOptions, o.AccelerationFactor)
	}
	if o.MaxTimeStep < 0 {
		return fmt.Errorf("%w: negative max time step", ErrInvalidOptions)
	}
	if o.MaxSearchCars < 1 || o.MaxSearchPorts < 1 {
		return fmt.Errorf("%w: search bounds must be at least 1", ErrInvalidOptions)
	}
	for _, s := range o.Stations {
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: station %d has unknown kind %q", ErrInvalidOptions, s.ID, s.Kind)
		}
	}
	for i, a := range o.CarPositions {
		for _, b := range o.CarPositions[i+1:] {
			if o.Track.CircularDistance(a, b) < o.CarLength {
				return fmt.Errorf("%w: cars at %v and %v overlap", ErrInvalidOptions, a, b)
			}
		}
	}
	return nil
}
