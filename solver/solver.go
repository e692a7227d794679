package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ruihuang1124/robotoc/hybrid"
	"github.com/ruihuang1124/robotoc/ocp"
	"github.com/ruihuang1124/robotoc/riccati"
	"github.com/ruihuang1124/robotoc/sto"
)

// Status names the last completed step of the iteration pipeline.
type Status int

const (
	Initialized Status = iota
	Discretized
	Linearized
	BackwardSwept
	ForwardDirectionComputed
	StepSizesAggregated
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Discretized:
		return "discretized"
	case Linearized:
		return "linearized"
	case BackwardSwept:
		return "backward swept"
	case ForwardDirectionComputed:
		return "forward direction computed"
	case StepSizesAggregated:
		return "step sizes aggregated"
	default:
		return "unknown"
	}
}

// Linearizer is the external problem logic: it evaluates and linearizes
// the costs, dynamics and constraints of the current iterate into the KKT
// blocks, and advances the iterate once a step is chosen.
type Linearizer interface {
	// Linearize fills the KKT matrices and residuals for the current
	// iterate on the given grid.
	Linearize(grid *hybrid.TimeDiscretization, km *ocp.KKTMatrix, kr *ocp.KKTResidual) error

	// InitialState writes the initial-state residual into dx0, seeding the
	// forward sweep.
	InitialState(dx0 *mat.VecDense)

	// Update advances the iterate along the direction with the aggregated
	// primal and dual step sizes.
	Update(grid *hybrid.TimeDiscretization, d *ocp.Direction, primalStep, dualStep float64) error
}

// LineSearcher optionally refines the aggregated primal step size, e.g.
// with a filter or merit-function search.
type LineSearcher interface {
	StepSize(grid *hybrid.TimeDiscretization, d *ocp.Direction, maxPrimalStep float64) float64
}

// Option configures a Solver.
type Option func(*Solver)

// WithMaxIterations sets the Newton iteration budget. Default 100.
func WithMaxIterations(n int) Option {
	return func(s *Solver) { s.maxIter = n }
}

// WithTolerance sets the KKT-error convergence tolerance. Default 1e-7.
func WithTolerance(tol float64) Option {
	return func(s *Solver) { s.tol = tol }
}

// WithNumThreads sets the direction-expansion worker-pool size. Default 1.
func WithNumThreads(n int) Option {
	return func(s *Solver) { s.nthreads = n }
}

// WithDiscretizationMethod selects the grid policy. Default GridBased;
// PhaseBased is required when any event time is free.
func WithDiscretizationMethod(m hybrid.DiscretizationMethod) Option {
	return func(s *Solver) { s.method = m }
}

// WithDwellTimeConstraints attaches minimum dwell-time constraints to the
// switching-time optimization.
func WithDwellTimeConstraints(c *sto.Constraints) Option {
	return func(s *Solver) { s.dwell = c }
}

// WithLineSearch attaches a primal step-size refinement hook.
func WithLineSearch(ls LineSearcher) Option {
	return func(s *Solver) { s.search = ls }
}

// Result reports the outcome of a Solve call. An exhausted iteration
// budget is a result, not an error.
type Result struct {
	Converged  bool
	Iterations int
	KKTError   float64
}

// Solver owns the iteration state of one hybrid optimal-control problem:
// the grid, the KKT workspace, the Riccati recursion and the evaluator
// set. It is not safe for concurrent use.
type Solver struct {
	lin      Linearizer
	grid     *hybrid.TimeDiscretization
	km       *ocp.KKTMatrix
	kr       *ocp.KKTResidual
	fact     *riccati.Factorization
	pol      *riccati.Policy
	d        *ocp.Direction
	rec      *riccati.Recursion
	set      *ocp.StageSet
	dwell    *sto.Constraints
	search   LineSearcher
	method   hybrid.DiscretizationMethod
	maxIter  int
	tol      float64
	nthreads int
	status   Status
}

// NewSolver builds a solver for a horizon of length T with N ideal stages
// and room for reservedEvents discrete events. Configuration errors fail
// fast.
func NewSolver(dims ocp.Dimensions, T float64, n, reservedEvents int, lin Linearizer, opts ...Option) (*Solver, error) {
	if lin == nil {
		return nil, ErrNilLinearizer
	}
	s := &Solver{
		lin:      lin,
		method:   hybrid.GridBased,
		maxIter:  100,
		tol:      1.0e-07,
		nthreads: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxIter <= 0 {
		return nil, ErrNonPositiveIterations
	}
	if s.tol <= 0 {
		return nil, ErrNonPositiveTolerance
	}
	if s.nthreads <= 0 {
		return nil, ErrNonPositiveThreads
	}

	var err error
	if s.grid, err = hybrid.NewTimeDiscretization(T, n, reservedEvents, hybrid.WithMethod(s.method)); err != nil {
		return nil, err
	}
	if s.km, err = ocp.NewKKTMatrix(dims, n, reservedEvents); err != nil {
		return nil, err
	}
	if s.kr, err = ocp.NewKKTResidual(dims, n, reservedEvents); err != nil {
		return nil, err
	}
	if s.fact, err = riccati.NewFactorization(dims, n, reservedEvents); err != nil {
		return nil, err
	}
	if s.pol, err = riccati.NewPolicy(dims, n, reservedEvents); err != nil {
		return nil, err
	}
	if s.d, err = ocp.NewDirection(dims, n, reservedEvents); err != nil {
		return nil, err
	}
	if s.rec, err = riccati.NewRecursion(dims, s.nthreads); err != nil {
		return nil, err
	}
	if s.set, err = ocp.NewStageSet(n, reservedEvents); err != nil {
		return nil, err
	}

	return s, nil
}

// Evaluators exposes the per-stage evaluator set for the external problem
// assembly to fill. Nil entries are skipped with unit step sizes.
func (s *Solver) Evaluators() *ocp.StageSet { return s.set }

// Grid exposes the time discretization of the last iteration.
func (s *Solver) Grid() *hybrid.TimeDiscretization { return s.grid }

// Direction exposes the Newton direction of the last iteration.
func (s *Solver) Direction() *ocp.Direction { return s.d }

// StateFeedbackGain exposes the LQR feedback gain of a regular stage from
// the last backward sweep. Read-only view.
func (s *Solver) StateFeedbackGain(stage int) mat.Matrix { return s.pol.StateFeedbackGain(stage) }

// Status reports the last completed pipeline step.
func (s *Solver) Status() Status { return s.status }

// KKTError returns the stacked KKT residual of the last linearization:
// the primal-dual norm over all sub-stages combined with the
// switching-time residual.
func (s *Solver) KKTError() float64 {
	pd := s.kr.PrimalDualNorm(s.grid.N(), s.grid.NImpulse(), s.grid.NLift())
	st := sto.KKTError(s.grid, s.kr)
	if s.dwell != nil {
		st = math.Hypot(st, s.dwell.KKTError())
	}

	return math.Hypot(pd, st)
}

// Solve runs Newton iterations from the linearizer's current iterate until
// the KKT error drops below the tolerance or the budget is exhausted.
// The contact sequence is re-discretized every iteration so integrated
// event times take effect immediately.
func (s *Solver) Solve(seq *hybrid.ContactSequence, t float64) (Result, error) {
	kkt := math.Inf(1)
	for iter := 0; iter < s.maxIter; iter++ {
		if err := s.grid.Discretize(seq, t); err != nil {
			return Result{Iterations: iter, KKTError: kkt}, err
		}
		s.status = Discretized
		if s.dwell != nil && (iter == 0 || s.dwell.ActivePhases() != s.grid.NumContactPhases()) {
			// re-seed when an event drifting past the horizon edge changed
			// the phase structure
			s.dwell.SetSlack(s.grid)
		}
		if err := s.lin.Linearize(s.grid, s.km, s.kr); err != nil {
			return Result{Iterations: iter, KKTError: kkt}, err
		}
		s.status = Linearized
		if kkt = s.KKTError(); kkt < s.tol {
			return Result{Converged: true, Iterations: iter, KKTError: kkt}, nil
		}
		if err := s.rec.Backward(s.grid, s.km, s.kr, s.fact, s.pol); err != nil {
			return Result{Iterations: iter, KKTError: kkt}, err
		}
		s.status = BackwardSwept
		s.d.SetZero()
		s.lin.InitialState(s.d.Stages[0].Dx)
		if err := s.rec.Forward(s.grid, s.km, s.kr, s.pol, s.d); err != nil {
			return Result{Iterations: iter, KKTError: kkt}, err
		}
		if err := s.rec.ComputeDirection(s.grid, s.fact, s.set, s.d); err != nil {
			return Result{Iterations: iter, KKTError: kkt}, err
		}
		s.status = ForwardDirectionComputed

		primal := s.rec.MaxPrimalStepSize()
		dual := s.rec.MaxDualStepSize()
		if s.dwell != nil {
			s.dwell.ComputeDirection(s.grid, s.d)
			primal = math.Min(primal, s.dwell.MaxPrimalStepSize())
			dual = math.Min(dual, s.dwell.MaxDualStepSize())
		}
		if s.search != nil {
			primal = s.search.StepSize(s.grid, s.d, primal)
		}
		s.status = StepSizesAggregated

		if err := s.lin.Update(s.grid, s.d, primal, dual); err != nil {
			return Result{Iterations: iter, KKTError: kkt}, err
		}
		sto.Integrate(s.grid, s.d, primal, seq)
		if s.dwell != nil {
			s.dwell.UpdateSlack(primal)
			s.dwell.UpdateDual(dual)
		}
	}

	return Result{Iterations: s.maxIter, KKTError: kkt}, nil
}
