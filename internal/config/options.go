package config

import (
	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/kinematics"
	"github.com/cxd309/rgv-engine/internal/scheduler"
	"github.com/cxd309/rgv-engine/internal/track"
)

// Options converts c into scheduler options. c should be valid.
func (c Config) Options(log logrus.FieldLogger) scheduler.Options {
	stations := make([]scheduler.Station, 0, len(c.Stations))
	for _, s := range c.Stations {
		stations = append(stations, scheduler.Station{ID: s.ID, Kind: s.Kind, Position: s.Position})
	}
	return scheduler.Options{
		Track: track.Track{
			Length: c.Track.Length,
			Curves: append([]track.Range(nil), c.Track.Curves...),
		},
		Stations:     stations,
		CarPositions: append([]float64(nil), c.Fleet.Positions...),
		CarParams: car.Params{
			Model: kinematics.ConstantAcceleration{
				AAcc:    c.Motion.Acceleration,
				ADcc:    c.Motion.Deceleration,
				VMaxVal: c.Motion.MaxStraightSpeed,
			},
			MaxCurveSpeed:    c.Motion.MaxCurveSpeed,
			ArrivalTolerance: c.Motion.ArrivalTolerance,
			LoadingTime:      c.Timing.CarLoading,
			UnloadingTime:    c.Timing.CarUnloading,
		},
		PortDurations:      c.Timing.Ports,
		CarLength:          c.Fleet.CarLength,
		SafetyMargin:       c.Fleet.SafetyMargin,
		PickupEstimate:     c.Timing.PickupEstimate,
		AccelerationFactor: c.Scheduler.AccelerationFactor,
		MaxTimeStep:        c.Scheduler.MaxTimeStep,
		MaxSearchCars:      c.Scheduler.MaxSearchCars,
		MaxSearchPorts:     c.Scheduler.MaxSearchPorts,
		FeedCapacity:       c.Scheduler.FeedCapacity,
		Logger:             log,
	}
}
