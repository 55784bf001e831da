package models

import "errors"

// Failure taxonomy shared by the server, the remote adapter and the
// reconciliation layer. Callers match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("backend unreachable")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrWrite      = errors.New("write rejected")
)

// Outcomes reported by the reconciliation layer alongside a usable result
var (
	// ErrLocalOnly means the item is kept in the cache but was not stored remotely
	ErrLocalOnly = errors.New("saved locally, not synced")
	// ErrQueued means a removal was applied locally and queued for retry
	ErrQueued = errors.New("applied locally, queued for retry")
	// ErrInFlight means an operation on the same item is still running
	ErrInFlight = errors.New("operation already in progress")
)

// IsTransient reports whether err is worth retrying later
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrWrite)
}
