package monitor

import "errors"

// Failure kinds surfaced by the storage gateway and the operations on top of
// it. Boundaries match on these with errors.Is and map them to status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrUpstream   = errors.New("storage error")
	ErrConflict   = errors.New("identifier conflict")
	ErrTimeout    = errors.New("storage timeout")
)
