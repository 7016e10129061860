package config

import "errors"

var (
	ErrInvalid       = errors.New("invalid config")
	ErrUnknownFormat = errors.New("unknown config format")
)
