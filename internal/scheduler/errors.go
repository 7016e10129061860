package scheduler

import "errors"

var (
	ErrUnknownDevice     = errors.New("unknown device")
	ErrInvalidRoute      = errors.New("task must run from a supply port to a sink port")
	ErrDuplicateTask     = errors.New("duplicate task id")
	ErrDuplicateMaterial = errors.New("material already has an open task")
	ErrInvalidTask       = errors.New("invalid task")
	ErrInvalidOptions    = errors.New("invalid scheduler options")
)
