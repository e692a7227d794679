package ocp

// Evaluator is the contract between the solver core and the external
// per-stage cost/dynamics/constraint logic. One evaluator backs one
// sub-stage; it owns the condensed sensitivity data produced during
// linearization and the interior-point barrier state of its inequality
// constraints.
//
// The recursion calls ExpandPrimal after the costate chain is known, and
// the step-size queries afterwards; implementations may assume that order
// within one Newton iteration. Calls for distinct sub-stages may run
// concurrently on the expansion worker pool, so an evaluator must not
// share mutable state with its siblings.
type Evaluator interface {
	// ExpandPrimal expands the state/costate direction of d into the full
	// primal direction (accelerations, contact forces, slack-condensed
	// multipliers) using the evaluator's own condensed data.
	ExpandPrimal(d *SplitDirection)

	// MaxPrimalStepSize returns the largest primal step in (0, 1] keeping
	// the evaluator's barrier slack variables strictly positive under the
	// fraction-to-boundary rule.
	MaxPrimalStepSize() float64

	// MaxDualStepSize is the dual counterpart of MaxPrimalStepSize.
	MaxDualStepSize() float64
}

// StageSet groups the evaluators of one horizon, mirroring the KKTMatrix
// layout: regular stages 0..N-1, the terminal stage, and the event arenas.
type StageSet struct {
	Stages   []Evaluator
	Terminal Evaluator
	Impulse  []Evaluator
	Aux      []Evaluator
	Lift     []Evaluator
}

// NewStageSet allocates an evaluator set with nil entries to be filled by
// the external problem assembly.
func NewStageSet(n, maxEvents int) (*StageSet, error) {
	if n <= 0 {
		return nil, ErrNonPositiveStages
	}
	if maxEvents < 0 {
		return nil, ErrNegativeReserve
	}

	return &StageSet{
		Stages:  make([]Evaluator, n),
		Impulse: make([]Evaluator, maxEvents),
		Aux:     make([]Evaluator, maxEvents),
		Lift:    make([]Evaluator, maxEvents),
	}, nil
}
