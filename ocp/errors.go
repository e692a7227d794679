// Package ocp: sentinel error set.

package ocp

import "errors"

var (
	// ErrNonPositiveDimension is returned when a state or control
	// dimension is not positive.
	ErrNonPositiveDimension = errors.New("ocp: dimensions must be positive")

	// ErrNegativeReserve is returned when a reserved capacity (events,
	// switching-constraint rows) is negative.
	ErrNegativeReserve = errors.New("ocp: reserved capacity must be non-negative")

	// ErrNonPositiveStages is returned when the stage count is not positive.
	ErrNonPositiveStages = errors.New("ocp: stage count must be positive")
)
