package config

import (
	"fmt"

	"github.com/cxd309/rgv-engine/internal/kinematics"
	"github.com/cxd309/rgv-engine/internal/track"
)

// Validate reports the first problem found, wrapped in ErrInvalid.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c Config) validate() error {
	t, err := track.New(c.Track.Length, c.Track.Curves)
	if err != nil {
		return err
	}

	seen := make(map[int]bool, len(c.Stations))
	for _, s := range c.Stations {
		if seen[s.ID] {
			return fmt.Errorf("station %d: %w", s.ID, track.ErrDuplicateStation)
		}
		seen[s.ID] = true
		if !s.Kind.Valid() {
			return fmt.Errorf("station %d: unknown kind %q", s.ID, s.Kind)
		}
		if s.Position < 0 || s.Position >= t.Length {
			return fmt.Errorf("station %d at %v: %w", s.ID, s.Position, track.ErrOffTrack)
		}
	}
	for i, p := range c.Fleet.Positions {
		if p < 0 || p >= t.Length {
			return fmt.Errorf("car %d at %v: %w", i+1, p, track.ErrOffTrack)
		}
	}
	if c.Fleet.CarLength < 0 || c.Fleet.SafetyMargin < 0 {
		return fmt.Errorf("negative car length or safety margin")
	}
	for i, a := range c.Fleet.Positions {
		for _, b := range c.Fleet.Positions[i+1:] {
			if t.CircularDistance(a, b) < c.Fleet.CarLength {
				return fmt.Errorf("cars at %v and %v overlap", a, b)
			}
		}
	}

	m := c.Motion
	if m.Model != "" && m.Model != kinematics.ConstantModelName {
		return fmt.Errorf("unknown motion model %q", m.Model)
	}
	if m.MaxStraightSpeed <= 0 || m.MaxCurveSpeed <= 0 {
		return fmt.Errorf("speeds must be positive")
	}
	if m.MaxCurveSpeed > m.MaxStraightSpeed {
		return fmt.Errorf("curve speed %v above straight speed %v", m.MaxCurveSpeed, m.MaxStraightSpeed)
	}
	if m.Acceleration <= 0 || m.Deceleration <= 0 {
		return fmt.Errorf("acceleration and deceleration must be positive")
	}
	if m.ArrivalTolerance <= 0 {
		return fmt.Errorf("arrival tolerance must be positive")
	}

	tm := c.Timing
	durations := []struct {
		name string
		v    float64
	}{
		{"car loading", tm.CarLoading},
		{"car unloading", tm.CarUnloading},
		{"pickup estimate", tm.PickupEstimate},
		{"inlet loading", tm.Ports.InletLoading},
		{"out-interface loading", tm.Ports.OutInterfaceLoading},
		{"in-interface unloading", tm.Ports.InInterfaceUnloading},
		{"outlet unloading", tm.Ports.OutletUnloading},
	}
	for _, d := range durations {
		if d.v < 0 {
			return fmt.Errorf("%s time %v is negative", d.name, d.v)
		}
	}

	s := c.Scheduler
	if s.AccelerationFactor <= 0 {
		return fmt.Errorf("acceleration factor must be positive")
	}
	if s.MaxTimeStep < 0 {
		return fmt.Errorf("max time step is negative")
	}
	if s.MaxSearchCars < 1 || s.MaxSearchPorts < 1 {
		return fmt.Errorf("search bounds must be at least 1")
	}
	if s.FeedCapacity < 0 {
		return fmt.Errorf("feed capacity is negative")
	}
	return nil
}
