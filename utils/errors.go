package utils

import "errors"

// Error taxonomy for the booking engine. Controllers map these onto HTTP
// status codes; conflict-class errors are expected under concurrency and are
// never treated as server faults.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflicting state change")
	ErrSlotUnavailable = errors.New("slot is not available")
	ErrInProgress      = errors.New("request with this idempotency key is in progress")
	ErrTooManyRequests = errors.New("too many requests")
)
