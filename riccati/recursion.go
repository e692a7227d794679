package riccati

import (
	"golang.org/x/sync/errgroup"

	"github.com/ruihuang1124/robotoc/hybrid"
	"github.com/ruihuang1124/robotoc/ocp"
)

// Recursion drives the hybrid Riccati sweep of one horizon. The backward
// and forward sweeps are serial (each sub-stage depends on its neighbor);
// the per-sub-stage direction expansion is parallelized over a bounded
// worker pool.
type Recursion struct {
	nthreads   int
	factorizer *Factorizer

	nall      int
	maxPrimal []float64
	maxDual   []float64
}

// NewRecursion allocates a recursion driver for the given block dimensions
// and worker-pool size.
func NewRecursion(dims ocp.Dimensions, nthreads int) (*Recursion, error) {
	if nthreads <= 0 {
		return nil, ErrNonPositiveThreads
	}
	f, err := NewFactorizer(dims)
	if err != nil {
		return nil, err
	}

	return &Recursion{nthreads: nthreads, factorizer: f}, nil
}

// phaseFlags reports whether the entering and ending switching times of a
// contact phase are free decision variables.
func phaseFlags(grid *hybrid.TimeDiscretization, phase int) (sto, stoNext bool) {
	if phase > 0 {
		sto = grid.IsSTOEnabledEvent(phase - 1)
	}
	if phase < grid.NumDiscreteEvents() {
		stoNext = grid.IsSTOEnabledEvent(phase)
	}

	return sto, stoNext
}

// checkStructure panics when the caller's KKT/factorization/policy sets do
// not cover the grid (programmer error: the sets must be allocated against
// the same stage count and event reserve as the grid).
func checkStructure(grid *hybrid.TimeDiscretization, nStages, nEventArena, nPolicy int) {
	if nStages < grid.N()+1 || nPolicy < grid.N() ||
		nEventArena < grid.NImpulse() || nEventArena < grid.NLift() {
		panic("riccati: grid and KKT structure disagree")
	}
}

// Backward runs the backward Riccati sweep from the terminal stage to
// stage 0, chaining the event sub-stage eliminations and folding the
// switching constraints of upcoming impulses one stage further back.
// Returns ErrSingularBlock when an elimination block is not positive
// definite and hybrid.ErrNotTractable when the grid is not.
func (r *Recursion) Backward(grid *hybrid.TimeDiscretization, km *ocp.KKTMatrix, kr *ocp.KKTResidual,
	fact *Factorization, pol *Policy) error {
	if !grid.IsTractable() {
		return hybrid.ErrNotTractable
	}
	checkStructure(grid, len(fact.Stages), len(fact.Impulse), len(pol.Stages))
	checkStructure(grid, len(km.Stages), len(km.Impulse), len(kr.Stages)-1)

	n := grid.N()
	f := r.factorizer
	f.Terminal(km.Stages[n], kr.Stages[n], fact.Stages[n])
	for i := n - 1; i >= 0; i-- {
		switch {
		case grid.IsStageBeforeImpulse(i):
			e := grid.ImpulseIndexAfterStage(i)
			pe := grid.ContactPhaseAfterImpulse(e)
			stoE, stoNextE := phaseFlags(grid, pe)
			if err := f.BackwardStage(fact.Stages[i+1], km.Aux[e], kr.Aux[e],
				fact.Aux[e], pol.Aux[e], stoE, stoNextE); err != nil {
				return err
			}
			if stoNextE {
				// the event ending the entered phase is resolved at the
				// phase's first sub-stage, where its channels are complete
				if err := f.ComputeSTOPolicy(fact.Aux[e], pol.STO[pe]); err != nil {
					return err
				}
			}
			f.BackwardImpulse(fact.Aux[e], km.Impulse[e], kr.Impulse[e],
				fact.Impulse[e], stoE || stoNextE)
			sto, stoNext := phaseFlags(grid, grid.ContactPhase(i))
			if err := f.BackwardStageAcrossEvent(fact.Impulse[e], km.Stages[i], kr.Stages[i],
				fact.Stages[i], pol.Stages[i], sto, stoNext); err != nil {
				return err
			}
			if i == 0 {
				// no stage remains to carry the switching constraint
				fact.Switching[e].SetZero()

				continue
			}
			if err := f.BackwardStage(fact.Stages[i], km.Stages[i-1], kr.Stages[i-1],
				fact.Stages[i-1], pol.Stages[i-1], sto, stoNext); err != nil {
				return err
			}
			if err := f.BackwardSwitching(km.Switching[e], fact.Stages[i-1],
				pol.Stages[i-1], fact.Switching[e]); err != nil {
				return err
			}
		case grid.IsStageBeforeLift(i):
			l := grid.LiftIndexAfterStage(i)
			pe := grid.ContactPhaseAfterLift(l)
			stoE, stoNextE := phaseFlags(grid, pe)
			if err := f.BackwardStage(fact.Stages[i+1], km.Lift[l], kr.Lift[l],
				fact.Lift[l], pol.Lift[l], stoE, stoNextE); err != nil {
				return err
			}
			if stoNextE {
				if err := f.ComputeSTOPolicy(fact.Lift[l], pol.STO[pe]); err != nil {
					return err
				}
			}
			sto, stoNext := phaseFlags(grid, grid.ContactPhase(i))
			if err := f.BackwardStageAcrossEvent(fact.Lift[l], km.Stages[i], kr.Stages[i],
				fact.Stages[i], pol.Stages[i], sto, stoNext); err != nil {
				return err
			}
		case grid.IsStageBeforeImpulse(i + 1):
			// already eliminated by the pre-impulse chain of stage i+1
		default:
			sto, stoNext := phaseFlags(grid, grid.ContactPhase(i))
			if err := f.BackwardStage(fact.Stages[i+1], km.Stages[i], kr.Stages[i],
				fact.Stages[i], pol.Stages[i], sto, stoNext); err != nil {
				return err
			}
		}
	}
	if grid.NumDiscreteEvents() > 0 && grid.IsSTOEnabledEvent(0) {
		// the first event's time is resolved at the horizon start
		if err := f.ComputeSTOPolicy(fact.Stages[0], pol.STO[0]); err != nil {
			return err
		}
	}

	return nil
}

// Forward runs the forward sweep from the initial state direction in
// d.Stages[0].Dx, propagating the state chain through every sub-stage and
// evaluating the switching-time laws at phase starts.
func (r *Recursion) Forward(grid *hybrid.TimeDiscretization, km *ocp.KKTMatrix, kr *ocp.KKTResidual,
	pol *Policy, d *ocp.Direction) error {
	if !grid.IsTractable() {
		return hybrid.ErrNotTractable
	}
	checkStructure(grid, len(d.Stages), len(d.Impulse), len(pol.Stages))

	n := grid.N()
	f := r.factorizer
	entry, exit := 0.0, 0.0
	d.Stages[0].Dts = 0
	if grid.NumDiscreteEvents() > 0 && grid.IsSTOEnabledEvent(0) {
		SwitchingTimeDirection(pol.STO[0], d.Stages[0])
		exit = d.Stages[0].DtsNext
	}
	for i := 0; i < n; i++ {
		d.Stages[i].Dts, d.Stages[i].DtsNext = entry, exit
		switch {
		case grid.IsStageBeforeImpulse(i):
			e := grid.ImpulseIndexAfterStage(i)
			sto, stoNext := phaseFlags(grid, grid.ContactPhase(i))
			f.ForwardStage(km.Stages[i], kr.Stages[i], pol.Stages[i],
				d.Stages[i], d.Impulse[e], sto, stoNext)
			entry, exit = exit, 0
			d.Impulse[e].Dts = entry
			f.ForwardImpulse(km.Impulse[e], kr.Impulse[e], d.Impulse[e], d.Aux[e])
			d.Aux[e].Dts = entry
			pe := grid.ContactPhaseAfterImpulse(e)
			stoE, stoNextE := phaseFlags(grid, pe)
			d.Aux[e].DtsNext = 0
			if stoNextE {
				SwitchingTimeDirection(pol.STO[pe], d.Aux[e])
				exit = d.Aux[e].DtsNext
			}
			d.Impulse[e].DtsNext = exit
			f.ForwardStage(km.Aux[e], kr.Aux[e], pol.Aux[e], d.Aux[e], d.Stages[i+1], stoE, stoNextE)
		case grid.IsStageBeforeLift(i):
			l := grid.LiftIndexAfterStage(i)
			sto, stoNext := phaseFlags(grid, grid.ContactPhase(i))
			f.ForwardStage(km.Stages[i], kr.Stages[i], pol.Stages[i],
				d.Stages[i], d.Lift[l], sto, stoNext)
			entry, exit = exit, 0
			d.Lift[l].Dts = entry
			pe := grid.ContactPhaseAfterLift(l)
			stoE, stoNextE := phaseFlags(grid, pe)
			d.Lift[l].DtsNext = 0
			if stoNextE {
				SwitchingTimeDirection(pol.STO[pe], d.Lift[l])
				exit = d.Lift[l].DtsNext
			}
			f.ForwardStage(km.Lift[l], kr.Lift[l], pol.Lift[l], d.Lift[l], d.Stages[i+1], stoE, stoNextE)
		default:
			sto, stoNext := phaseFlags(grid, grid.ContactPhase(i))
			f.ForwardStage(km.Stages[i], kr.Stages[i], pol.Stages[i],
				d.Stages[i], d.Stages[i+1], sto, stoNext)
		}
	}
	d.Stages[n].Dts, d.Stages[n].DtsNext = entry, exit

	return nil
}

// ComputeDirection recovers the costate and switching-multiplier
// directions of every sub-stage, expands the primal directions through the
// stage evaluators and collects their fraction-to-boundary step sizes.
// Sub-stages are processed concurrently on a pool of at most nthreads
// workers. Nil evaluators are skipped with a unit step size, so the
// recursion can run without external stage logic attached.
func (r *Recursion) ComputeDirection(grid *hybrid.TimeDiscretization, fact *Factorization,
	set *ocp.StageSet, d *ocp.Direction) error {
	if !grid.IsTractable() {
		return hybrid.ErrNotTractable
	}
	checkStructure(grid, len(d.Stages), len(d.Impulse), len(fact.Stages)-1)

	n := grid.N()
	nImp, nLift := grid.NImpulse(), grid.NLift()
	r.nall = n + 1 + 2*nImp + nLift
	if cap(r.maxPrimal) < r.nall {
		r.maxPrimal = make([]float64, r.nall)
		r.maxDual = make([]float64, r.nall)
	}
	r.maxPrimal = r.maxPrimal[:r.nall]
	r.maxDual = r.maxDual[:r.nall]

	expand := func(ev ocp.Evaluator, sd *ocp.SplitDirection, slot int) {
		if ev == nil {
			r.maxPrimal[slot], r.maxDual[slot] = 1, 1

			return
		}
		ev.ExpandPrimal(sd)
		r.maxPrimal[slot] = ev.MaxPrimalStepSize()
		r.maxDual[slot] = ev.MaxDualStepSize()
	}

	var g errgroup.Group
	g.SetLimit(r.nthreads)
	for idx := 0; idx < r.nall; idx++ {
		i := idx
		g.Go(func() error {
			switch {
			case i < n:
				sto, stoNext := phaseFlags(grid, grid.ContactPhase(i))
				CostateDirection(fact.Stages[i], d.Stages[i], sto, stoNext)
				if grid.IsStageBeforeImpulse(i + 1) {
					MultiplierDirection(fact.Switching[grid.ImpulseIndexAfterStage(i+1)], d.Stages[i])
				}
				expand(set.Stages[i], d.Stages[i], i)
			case i == n:
				sto, stoNext := phaseFlags(grid, grid.ContactPhase(n))
				CostateDirection(fact.Stages[n], d.Stages[n], sto, stoNext)
				expand(set.Terminal, d.Stages[n], i)
			case i < n+1+nImp:
				e := i - n - 1
				sto, stoNext := phaseFlags(grid, grid.ContactPhaseAfterImpulse(e))
				CostateDirection(fact.Impulse[e], d.Impulse[e], sto, stoNext)
				expand(set.Impulse[e], d.Impulse[e], i)
			case i < n+1+2*nImp:
				e := i - n - 1 - nImp
				sto, stoNext := phaseFlags(grid, grid.ContactPhaseAfterImpulse(e))
				CostateDirection(fact.Aux[e], d.Aux[e], sto, stoNext)
				expand(set.Aux[e], d.Aux[e], i)
			default:
				l := i - n - 1 - 2*nImp
				sto, stoNext := phaseFlags(grid, grid.ContactPhaseAfterLift(l))
				CostateDirection(fact.Lift[l], d.Lift[l], sto, stoNext)
				expand(set.Lift[l], d.Lift[l], i)
			}

			return nil
		})
	}

	return g.Wait()
}

// MaxPrimalStepSize returns the smallest primal fraction-to-boundary step
// over all sub-stages of the last ComputeDirection call, or 1 when none
// has run.
func (r *Recursion) MaxPrimalStepSize() float64 { return minOrOne(r.maxPrimal[:r.nall]) }

// MaxDualStepSize is the dual counterpart of MaxPrimalStepSize.
func (r *Recursion) MaxDualStepSize() float64 { return minOrOne(r.maxDual[:r.nall]) }

func minOrOne(xs []float64) float64 {
	m := 1.0
	for _, x := range xs {
		if x < m {
			m = x
		}
	}

	return m
}
