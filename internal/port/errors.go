package port

import "errors"

// Precondition violations. The port state is left untouched when one of these
// is returned; callers treat them as logic errors, not fatal ones.
var (
	ErrNoCargo    = errors.New("port holds no cargo")
	ErrHasCargo   = errors.New("port already holds cargo")
	ErrWrongKind  = errors.New("operation not valid for port kind")
	ErrReserved   = errors.New("port reserved for another material")
	ErrNotReady   = errors.New("port busy or occupied")
	ErrNoMaterial = errors.New("empty material id")
)
