// Package riccati: sentinel error set.

package riccati

import "errors"

var (
	// ErrSingularBlock is returned when an elimination block (control
	// Hessian, switching-constraint Schur complement, or STO curvature
	// pivot) is not positive definite. The current Newton iteration must
	// be abandoned; the factorization buffers remain consistent.
	ErrSingularBlock = errors.New("riccati: singular elimination block")

	// ErrNonPositiveThreads is returned when the worker-pool size is not
	// positive.
	ErrNonPositiveThreads = errors.New("riccati: thread count must be positive")
)
