package track

import (
	"fmt"
	"sort"
)

// StationID identifies a fixed station (port) on the loop.
type StationID = int

// Station pins a station id to a position on the loop.
type Station struct {
	ID       StationID `json:"id" yaml:"id"`
	Position float64   `json:"position" yaml:"position"`
}

// Registry is a read-only station-id → position lookup.
type Registry struct {
	byID  map[StationID]Station
	order []StationID
}

// NewRegistry builds a Registry, rejecting duplicate ids and positions off the track.
func NewRegistry(t Track, stations []Station) (*Registry, error) {
	r := &Registry{byID: make(map[StationID]Station, len(stations))}
	for _, s := range stations {
		if _, exists := r.byID[s.ID]; exists {
			return nil, fmt.Errorf("station %d: %w", s.ID, ErrDuplicateStation)
		}
		if s.Position < 0 || s.Position >= t.Length {
			return nil, fmt.Errorf("station %d at %v: %w", s.ID, s.Position, ErrOffTrack)
		}
		r.byID[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	sort.Ints(r.order)
	return r, nil
}

// Lookup returns the station with the given id.
func (r *Registry) Lookup(id StationID) (Station, error) {
	s, ok := r.byID[id]
	if !ok {
		return Station{}, fmt.Errorf("station %d: %w", id, ErrUnknownStation)
	}
	return s, nil
}

// Position returns the position of station id.
func (r *Registry) Position(id StationID) (float64, error) {
	s, err := r.Lookup(id)
	if err != nil {
		return 0, err
	}
	return s.Position, nil
}

// IDs returns all station ids in ascending order.
func (r *Registry) IDs() []StationID {
	return append([]StationID(nil), r.order...)
}

// DefaultTrack is the production loop: two straights joined by two curves.
func DefaultTrack() Track {
	return Track{
		Length: 99.478,
		Curves: []Range{
			{Start: 0, End: 9.739},
			{Start: 49.739, End: 59.478},
		},
	}
}

// DefaultStations returns the production station layout.
func DefaultStations() []Station {
	return []Station{
		{ID: 1, Position: 13.54}, {ID: 2, Position: 15.94},
		{ID: 3, Position: 19.54}, {ID: 4, Position: 21.93},
		{ID: 5, Position: 25.54}, {ID: 6, Position: 27.93},
		{ID: 7, Position: 31.53}, {ID: 8, Position: 33.93},
		{ID: 9, Position: 37.54}, {ID: 10, Position: 39.93},
		{ID: 11, Position: 43.54}, {ID: 12, Position: 45.93},
		{ID: 13, Position: 67.47}, {ID: 14, Position: 70.47},
		{ID: 15, Position: 73.47}, {ID: 16, Position: 85.47},
		{ID: 17, Position: 88.47}, {ID: 18, Position: 91.47},
	}
}
