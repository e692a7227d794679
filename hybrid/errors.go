// Package hybrid: sentinel error set.
// All user-triggered failure conditions in this package return one of the
// sentinels below and callers match them via errors.Is. Panics are reserved
// for programmer errors (out-of-range stage/event indices on query tables).

package hybrid

import "errors"

var (
	// ErrNonPositiveHorizon is returned when the horizon length T is <= 0.
	ErrNonPositiveHorizon = errors.New("hybrid: horizon length must be positive")

	// ErrNonPositiveStages is returned when the ideal stage count N is <= 0.
	ErrNonPositiveStages = errors.New("hybrid: stage count must be positive")

	// ErrNegativeReserve is returned when the reserved discrete-event
	// capacity is negative.
	ErrNegativeReserve = errors.New("hybrid: reserved event count must be non-negative")

	// ErrNilContactSequence indicates a nil *ContactSequence argument.
	ErrNilContactSequence = errors.New("hybrid: contact sequence is nil")

	// ErrNoStatusChange is returned by ContactSequence.Push when the pushed
	// status equals the current one: there is no discrete event to record.
	ErrNoStatusChange = errors.New("hybrid: contact status did not change")

	// ErrEventOrder is returned by ContactSequence.Push when the new event
	// time does not strictly follow the previous event.
	ErrEventOrder = errors.New("hybrid: event times must be strictly increasing")

	// ErrContactMismatch is returned when two contact statuses with
	// different contact counts are compared or chained.
	ErrContactMismatch = errors.New("hybrid: contact counts differ")

	// ErrNotTractable marks a discretization whose hybrid structure is
	// inconsistent (events out of order, colliding within tolerance,
	// outside the horizon, or exceeding the reserved capacity). Sweeps must
	// refuse to run on a non-tractable grid.
	ErrNotTractable = errors.New("hybrid: discretization is not tractable")
)
