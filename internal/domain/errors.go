package domain

import "errors"

// Error taxonomy shared by the scheduling core, the stores and the transports.
// Callers classify with errors.Is; stores wrap these with context via %w.
var (
	// ErrConfiguration marks malformed availability data (bad HH:mm, end <= start).
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound marks an unknown or unbookable business, service or booking.
	ErrNotFound = errors.New("not found")

	// ErrCollision marks a booking whose interval overlaps an active booking.
	ErrCollision = errors.New("booking collides with an existing booking")

	// ErrTransient marks store contention or lock acquisition failure. Safe to retry.
	ErrTransient = errors.New("transient error")

	ErrValidation = errors.New("validation error")
)

const (
	CodeConfiguration = "configuration"
	CodeNotFound      = "not_found"
	CodeCollision     = "collision"
	CodeTransient     = "transient"
	CodeValidation    = "validation"
	CodeInternal      = "internal"
)

// Code returns the wire code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCollision):
		return CodeCollision
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrTransient):
		return CodeTransient
	case errors.Is(err, ErrValidation):
		return CodeValidation
	default:
		return CodeInternal
	}
}

// IsRetryable reports whether the whole call may be repeated with the same input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
