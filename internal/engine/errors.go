package engine

import "errors"

var ErrInvalidInput = errors.New("invalid simulation input")
