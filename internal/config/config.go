// Package config describes a shuttle installation: the loop, its stations, the
// fleet and its motion limits, operation timings and scheduler tuning. A Config
// is loaded from YAML or JSON on top of the production defaults and turned
// into scheduler options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cxd309/rgv-engine/internal/car"
	"github.com/cxd309/rgv-engine/internal/kinematics"
	"github.com/cxd309/rgv-engine/internal/port"
	"github.com/cxd309/rgv-engine/internal/scheduler"
	"github.com/cxd309/rgv-engine/internal/track"
)

// Config is a complete installation. Files and inputs are decoded over
// Default, so they only name what differs.
type Config struct {
	Track     TrackConfig     `json:"track" yaml:"track"`
	Stations  []StationConfig `json:"stations" yaml:"stations"`
	Fleet     FleetConfig     `json:"fleet" yaml:"fleet"`
	Motion    MotionConfig    `json:"motion" yaml:"motion"`
	Timing    TimingConfig    `json:"timing" yaml:"timing"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
}

// TrackConfig is the loop length and its curve sections.
type TrackConfig struct {
	Length float64       `json:"length" yaml:"length"`
	Curves []track.Range `json:"curves" yaml:"curves"`
}

// StationConfig places one port on the loop.
type StationConfig struct {
	ID       int       `json:"id" yaml:"id"`
	Kind     port.Kind `json:"kind" yaml:"kind"`
	Position float64   `json:"position" yaml:"position"`
}

// FleetConfig sets the initial car positions and the spacing kept between cars.
type FleetConfig struct {
	Positions    []float64 `json:"positions" yaml:"positions"` // one car per entry
	CarLength    float64   `json:"car_length" yaml:"car_length"`
	SafetyMargin float64   `json:"safety_margin" yaml:"safety_margin"`
}

// MotionConfig holds the speed limits and acceleration of every car.
type MotionConfig struct {
	Model            string  `json:"model" yaml:"model"`
	MaxStraightSpeed float64 `json:"max_straight_speed" yaml:"max_straight_speed"`
	MaxCurveSpeed    float64 `json:"max_curve_speed" yaml:"max_curve_speed"`
	Acceleration     float64 `json:"acceleration" yaml:"acceleration"`
	Deceleration     float64 `json:"deceleration" yaml:"deceleration"`
	ArrivalTolerance float64 `json:"arrival_tolerance" yaml:"arrival_tolerance"`
}

// TimingConfig holds the car and port operation times.
type TimingConfig struct {
	CarLoading     float64        `json:"car_loading" yaml:"car_loading"`
	CarUnloading   float64        `json:"car_unloading" yaml:"car_unloading"`
	PickupEstimate float64        `json:"pickup_estimate" yaml:"pickup_estimate"`
	Ports          port.Durations `json:"ports" yaml:"ports"`
}

// SchedulerConfig tunes stepping, the assignment search and the event feeds.
type SchedulerConfig struct {
	AccelerationFactor float64 `json:"acceleration_factor" yaml:"acceleration_factor"`
	MaxTimeStep        float64 `json:"max_time_step" yaml:"max_time_step"`
	MaxSearchCars      int     `json:"max_search_cars" yaml:"max_search_cars"`
	MaxSearchPorts     int     `json:"max_search_ports" yaml:"max_search_ports"`
	FeedCapacity       int     `json:"feed_capacity" yaml:"feed_capacity"`
}

// Default returns the production installation: the 18-station loop with four
// cars spread evenly around it.
func Default() Config {
	opts := scheduler.DefaultOptions()
	params := car.DefaultParams()
	model := params.Model.(kinematics.ConstantAcceleration)

	stations := make([]StationConfig, 0, len(opts.Stations))
	for _, s := range opts.Stations {
		stations = append(stations, StationConfig{ID: s.ID, Kind: s.Kind, Position: s.Position})
	}

	return Config{
		Track: TrackConfig{
			Length: opts.Track.Length,
			Curves: append([]track.Range(nil), opts.Track.Curves...),
		},
		Stations: stations,
		Fleet: FleetConfig{
			Positions:    append([]float64(nil), opts.CarPositions...),
			CarLength:    opts.CarLength,
			SafetyMargin: opts.SafetyMargin,
		},
		Motion: MotionConfig{
			Model:            kinematics.ConstantModelName,
			MaxStraightSpeed: model.VMaxVal,
			MaxCurveSpeed:    params.MaxCurveSpeed,
			Acceleration:     model.AAcc,
			Deceleration:     model.ADcc,
			ArrivalTolerance: params.ArrivalTolerance,
		},
		Timing: TimingConfig{
			CarLoading:     params.LoadingTime,
			CarUnloading:   params.UnloadingTime,
			PickupEstimate: opts.PickupEstimate,
			Ports:          opts.PortDurations,
		},
		Scheduler: SchedulerConfig{
			AccelerationFactor: opts.AccelerationFactor,
			MaxTimeStep:        opts.MaxTimeStep,
			MaxSearchCars:      opts.MaxSearchCars,
			MaxSearchPorts:     opts.MaxSearchPorts,
			FeedCapacity:       opts.FeedCapacity,
		},
	}
}

// UnmarshalJSON decodes data over Default. A list given in data replaces the
// default list whole; its entries start from zero values, as they do in YAML.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	cfg := Default()
	cfg.Track.Curves = nil
	cfg.Stations = nil
	cfg.Fleet.Positions = nil
	if err := json.Unmarshal(data, (*plain)(&cfg)); err != nil {
		return err
	}

	def := Default()
	if cfg.Track.Curves == nil {
		cfg.Track.Curves = def.Track.Curves
	}
	if cfg.Stations == nil {
		cfg.Stations = def.Stations
	}
	if cfg.Fleet.Positions == nil {
		cfg.Fleet.Positions = def.Fleet.Positions
	}
	*c = cfg
	return nil
}

// Load reads the file at path over Default. The format follows the
// extension: .yaml/.yml or .json.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	cfg, err := Parse(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml", "yml" or "json") over
// Default and validates the result.
func Parse(data []byte, format string) (Config, error) {
	cfg := Default()
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding json: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
