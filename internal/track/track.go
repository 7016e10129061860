// Package track describes the closed-loop guide rail the shuttle fleet runs on:
// its circumference, the curve sections with a lower speed limit, and the
// positions of the fixed stations along it.
//
// Positions are 1-D distances along the loop in [0, Length). Every piece of
// position arithmetic in the engine goes through DistanceForward,
// CircularDistance and Wrap so that wrap-around is handled in one place.
package track

import (
	"fmt"
	"math"
)

// Range is a closed sub-interval [Start, End] of the loop.
type Range struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Contains reports whether pos lies in the range (inclusive).
func (r Range) Contains(pos float64) bool { return pos >= r.Start && pos <= r.End }

// Track is a closed loop of fixed length with speed-restricted curve sections.
type Track struct {
	Length float64 `json:"length" yaml:"length"` // loop circumference
	Curves []Range `json:"curves" yaml:"curves"`
}

// New builds a Track, returning an error if the length is not positive or a
// curve range does not lie inside [0, length].
func New(length float64, curves []Range) (Track, error) {
	t := Track{Length: length, Curves: append([]Range(nil), curves...)}
	if err := t.Validate(); err != nil {
		return Track{}, err
	}
	return t, nil
}

// Validate checks the loop length and curve ranges.
func (t Track) Validate() error {
	if !(t.Length > 0) || math.IsInf(t.Length, 0) {
		return fmt.Errorf("track length %v: %w", t.Length, ErrInvalidLength)
	}
	for i, c := range t.Curves {
		if c.Start < 0 || c.End > t.Length || c.Start > c.End {
			return fmt.Errorf("curve %d [%v, %v]: %w", i, c.Start, c.End, ErrInvalidCurve)
		}
	}
	return nil
}

// Wrap normalises any position into [0, Length).
func (t Track) Wrap(pos float64) float64 {
	p := math.Mod(pos, t.Length)
	if p < 0 {
		p += t.Length
	}
	if p >= t.Length {
		p = 0
	}
	return p
}

// DistanceForward is the directed distance travelled going forward from
// `from` to `to`: (to - from + length) mod length.
func (t Track) DistanceForward(from, to float64) float64 {
	return t.Wrap(to - from)
}

// CircularDistance is the shortest undirected distance between a and b.
func (t Track) CircularDistance(a, b float64) float64 {
	half := t.Length / 2
	return math.Abs(t.Wrap(a-b+half) - half)
}

// OnPath reports whether pos lies on the forward path (from, to]. A path whose
// endpoints coincide is empty.
func (t Track) OnPath(from, to, pos float64) bool {
	d := t.DistanceForward(from, pos)
	return d > 0 && d <= t.DistanceForward(from, to)
}

// InCurve reports whether pos lies inside any curve section.
func (t Track) InCurve(pos float64) bool {
	for _, c := range t.Curves {
		if c.Contains(pos) {
			return true
		}
	}
	return false
}

// NextCurveDistance returns the forward distance from pos to the start of the
// nearest curve strictly ahead. A curve starting exactly at pos is not ahead:
// pos is already inside it. ok is false when the track has no curves.
func (t Track) NextCurveDistance(pos float64) (dist float64, ok bool) {
	dist = math.Inf(1)
	for _, c := range t.Curves {
		d := t.DistanceForward(pos, c.Start)
		if d > 0 && d < dist {
			dist = d
			ok = true
		}
	}
	return dist, ok
}
