package sto

import "errors"

var (
	// ErrNonPositiveBarrier is returned when the log-barrier weight is not
	// positive.
	ErrNonPositiveBarrier = errors.New("sto: barrier parameter must be positive")

	// ErrInvalidFraction is returned when the fraction-to-boundary margin
	// is outside (0, 1).
	ErrInvalidFraction = errors.New("sto: fraction-to-boundary margin must be in (0, 1)")

	// ErrNegativeDwellTime is returned when a minimum dwell time is
	// negative.
	ErrNegativeDwellTime = errors.New("sto: minimum dwell time must be non-negative")
)
