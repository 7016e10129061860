package track

import "errors"

var (
	ErrInvalidLength    = errors.New("track length must be positive and finite")
	ErrInvalidCurve     = errors.New("curve range outside track")
	ErrDuplicateStation = errors.New("duplicate station id")
	ErrOffTrack         = errors.New("station position outside track")
	ErrUnknownStation   = errors.New("unknown station")
)
