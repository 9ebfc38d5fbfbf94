package document

import "errors"

// Errors returned by Store and Forest operations. Callers match them with
// errors.Is; operation-specific context is added with %w wrapping.
var (
	ErrInvalidName      = errors.New("invalid name")
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrInvalidDocument  = errors.New("invalid document")
)
