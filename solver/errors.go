package solver

import "errors"

var (
	// ErrNonPositiveIterations is returned when the iteration budget is
	// not positive.
	ErrNonPositiveIterations = errors.New("solver: iteration budget must be positive")

	// ErrNonPositiveTolerance is returned when the convergence tolerance
	// is not positive.
	ErrNonPositiveTolerance = errors.New("solver: tolerance must be positive")

	// ErrNonPositiveThreads is returned when the worker-pool size is not
	// positive.
	ErrNonPositiveThreads = errors.New("solver: thread count must be positive")

	// ErrNilLinearizer is returned when no linearizer is attached.
	ErrNilLinearizer = errors.New("solver: linearizer must not be nil")
)
