package advance

import "errors"

// Structural faults abort the run with nothing persisted for its summary.
// Rule failures and ML unavailability are never errors; they are absorbed
// into the rejection path.
var (
	ErrAccountNotFound = errors.New("advance: bank account not found")
	ErrInvalidRequest  = errors.New("advance: invalid request")
	ErrUnknownNode     = errors.New("advance: node not in registry")
	ErrUnknownRule     = errors.New("advance: rule not in library")
	ErrRunNotFound     = errors.New("advance: run not found")
)
