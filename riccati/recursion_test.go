package riccati_test

import (
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ruihuang1124/robotoc/hybrid"
	"github.com/ruihuang1124/robotoc/ocp"
	"github.com/ruihuang1124/robotoc/riccati"
)

const kktTol = 1e-9

// randVec fills a vector with entries in [-1, 1).
func randVec(rng *rand.Rand, n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, 2*rng.Float64()-1)
	}

	return v
}

// randDense fills a matrix with entries in [-1, 1).
func randDense(rng *rand.Rand, r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, 2*rng.Float64()-1)
		}
	}

	return m
}

// randSPD builds MᵀM + shift·I, symmetric positive definite.
func randSPD(rng *rand.Rand, n int, shift float64) *mat.SymDense {
	m := randDense(rng, n, n)
	var mm mat.Dense
	mm.Mul(m.T(), m)
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := mm.At(i, j)
			if i == j {
				v += shift
			}
			s.SetSym(i, j, v)
		}
	}

	return s
}

// fillStage populates one sub-stage KKT block with a random well-posed
// problem.
func fillStage(rng *rand.Rand, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual, dims ocp.Dimensions) {
	km.Fxx.Copy(randDense(rng, dims.Dimx, dims.Dimx))
	km.Fxu.Copy(randDense(rng, dims.Dimx, dims.Dimu))
	km.Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	km.Quu.CopySym(randSPD(rng, dims.Dimu, 1))
	km.Qxu.Copy(randDense(rng, dims.Dimx, dims.Dimu))
	km.Qxu.Scale(0.1, km.Qxu)
	kr.Fx.CopyVec(randVec(rng, dims.Dimx))
	kr.Lx.CopyVec(randVec(rng, dims.Dimx))
	kr.Lu.CopyVec(randVec(rng, dims.Dimu))
}

// checkControlledLink asserts the KKT conditions of one controlled
// sub-stage link: the linearized dynamics, the control stationarity and
// the state stationarity against the costates. extraDu/extraDx carry the
// switching-constraint multiplier terms Dᵀdxi and Cᵀdxi when present.
func checkControlledLink(t *testing.T, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual,
	d, dNext *ocp.SplitDirection, extraDu, extraDx *mat.VecDense) {
	t.Helper()

	var dyn mat.VecDense
	dyn.MulVec(km.Fxx, d.Dx)
	var bu mat.VecDense
	bu.MulVec(km.Fxu, d.Du)
	dyn.AddVec(&dyn, &bu)
	dyn.AddVec(&dyn, kr.Fx)
	dyn.SubVec(&dyn, dNext.Dx)
	assert.InDelta(t, 0, mat.Norm(&dyn, 2), kktTol, "dynamics residual")

	var su mat.VecDense
	su.MulVec(km.Quu, d.Du)
	var qux mat.VecDense
	qux.MulVec(km.Qxu.T(), d.Dx)
	su.AddVec(&su, &qux)
	var bl mat.VecDense
	bl.MulVec(km.Fxu.T(), dNext.Dlmd)
	su.AddVec(&su, &bl)
	su.AddVec(&su, kr.Lu)
	if extraDu != nil {
		su.AddVec(&su, extraDu)
	}
	assert.InDelta(t, 0, mat.Norm(&su, 2), kktTol, "control stationarity")

	var sx mat.VecDense
	sx.MulVec(km.Qxx, d.Dx)
	var qxu mat.VecDense
	qxu.MulVec(km.Qxu, d.Du)
	sx.AddVec(&sx, &qxu)
	var al mat.VecDense
	al.MulVec(km.Fxx.T(), dNext.Dlmd)
	sx.AddVec(&sx, &al)
	sx.AddVec(&sx, kr.Lx)
	if extraDx != nil {
		sx.AddVec(&sx, extraDx)
	}
	sx.SubVec(&sx, d.Dlmd)
	assert.InDelta(t, 0, mat.Norm(&sx, 2), kktTol, "state stationarity")
}

// checkImpulseLink asserts the KKT conditions of the uncontrolled
// velocity-jump link.
func checkImpulseLink(t *testing.T, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual, d, dNext *ocp.SplitDirection) {
	t.Helper()

	var dyn mat.VecDense
	dyn.MulVec(km.Fxx, d.Dx)
	dyn.AddVec(&dyn, kr.Fx)
	dyn.SubVec(&dyn, dNext.Dx)
	assert.InDelta(t, 0, mat.Norm(&dyn, 2), kktTol, "impulse dynamics residual")

	var sx mat.VecDense
	sx.MulVec(km.Qxx, d.Dx)
	var al mat.VecDense
	al.MulVec(km.Fxx.T(), dNext.Dlmd)
	sx.AddVec(&sx, &al)
	sx.AddVec(&sx, kr.Lx)
	sx.SubVec(&sx, d.Dlmd)
	assert.InDelta(t, 0, mat.Norm(&sx, 2), kktTol, "impulse state stationarity")
}

// checkTerminal asserts the terminal costate condition.
func checkTerminal(t *testing.T, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual, d *ocp.SplitDirection) {
	t.Helper()
	var lmd mat.VecDense
	lmd.MulVec(km.Qxx, d.Dx)
	lmd.AddVec(&lmd, kr.Lx)
	lmd.SubVec(&lmd, d.Dlmd)
	assert.InDelta(t, 0, mat.Norm(&lmd, 2), kktTol, "terminal costate")
}

// eventFreeGrid builds a tractable grid without discrete events.
func eventFreeGrid(t *testing.T, T float64, n int) *hybrid.TimeDiscretization {
	t.Helper()
	grid, err := hybrid.NewTimeDiscretization(T, n, 0)
	require.NoError(t, err)
	seq, err := hybrid.NewContactSequence(hybrid.NewContactStatus(true), 0)
	require.NoError(t, err)
	require.NoError(t, grid.Discretize(seq, 0))

	return grid
}

// solverWorkspace bundles the caller-owned buffers of one sweep.
type solverWorkspace struct {
	km   *ocp.KKTMatrix
	kr   *ocp.KKTResidual
	fact *riccati.Factorization
	pol  *riccati.Policy
	d    *ocp.Direction
	set  *ocp.StageSet
	rec  *riccati.Recursion
}

func newWorkspace(t *testing.T, dims ocp.Dimensions, n, maxEvents, nthreads int) *solverWorkspace {
	t.Helper()
	w := &solverWorkspace{}
	var err error
	w.km, err = ocp.NewKKTMatrix(dims, n, maxEvents)
	require.NoError(t, err)
	w.kr, err = ocp.NewKKTResidual(dims, n, maxEvents)
	require.NoError(t, err)
	w.fact, err = riccati.NewFactorization(dims, n, maxEvents)
	require.NoError(t, err)
	w.pol, err = riccati.NewPolicy(dims, n, maxEvents)
	require.NoError(t, err)
	w.d, err = ocp.NewDirection(dims, n, maxEvents)
	require.NoError(t, err)
	w.set, err = ocp.NewStageSet(n, maxEvents)
	require.NoError(t, err)
	w.rec, err = riccati.NewRecursion(dims, nthreads)
	require.NoError(t, err)

	return w
}

// TestRecursion_Config covers fail-fast construction errors.
func TestRecursion_Config(t *testing.T) {
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1}
	_, err := riccati.NewRecursion(dims, 0)
	assert.ErrorIs(t, err, riccati.ErrNonPositiveThreads)
	_, err = riccati.NewRecursion(ocp.Dimensions{}, 2)
	assert.ErrorIs(t, err, ocp.ErrNonPositiveDimension)
}

// TestRecursion_NotTractable verifies that the sweeps refuse an
// undiscretized grid.
func TestRecursion_NotTractable(t *testing.T) {
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1}
	grid, err := hybrid.NewTimeDiscretization(1, 5, 0)
	require.NoError(t, err)
	w := newWorkspace(t, dims, 5, 0, 1)

	assert.ErrorIs(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol), hybrid.ErrNotTractable)
	assert.ErrorIs(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d), hybrid.ErrNotTractable)
	assert.ErrorIs(t, w.rec.ComputeDirection(grid, w.fact, w.set, w.d), hybrid.ErrNotTractable)
}

// TestRecursion_DoubleIntegratorLQR reduces the hybrid sweep to a plain
// discrete-time LQR on a double integrator and cross-checks the value
// Hessian and feedback gain of every stage against an independently coded
// dense Riccati iteration.
func TestRecursion_DoubleIntegratorLQR(t *testing.T) {
	const (
		n = 20
		h = 0.1
	)
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1}
	grid := eventFreeGrid(t, float64(n)*h, n)
	w := newWorkspace(t, dims, n, 0, 1)

	a := mat.NewDense(2, 2, []float64{1, h, 0, 1})
	b := mat.NewDense(2, 1, []float64{0.5 * h * h, h})
	q := mat.NewSymDense(2, []float64{1, 0, 0, 0.1})
	r := mat.NewSymDense(1, []float64{0.01})
	qf := mat.NewSymDense(2, []float64{10, 0, 0, 1})
	for i := 0; i < n; i++ {
		w.km.Stages[i].Fxx.Copy(a)
		w.km.Stages[i].Fxu.Copy(b)
		w.km.Stages[i].Qxx.CopySym(q)
		w.km.Stages[i].Quu.CopySym(r)
	}
	w.km.Stages[n].Qxx.CopySym(qf)

	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))

	// reference dense Riccati iteration
	p := mat.NewDense(2, 2, nil)
	p.Copy(qf)
	kref := mat.NewDense(1, 2, nil)
	for i := n - 1; i >= 0; i-- {
		var atp, btp mat.Dense
		atp.Mul(a.T(), p)
		btp.Mul(b.T(), p)
		var g mat.Dense
		g.Mul(&btp, b)
		g.Add(&g, r)
		var hh mat.Dense
		hh.Mul(&atp, b)
		var kt mat.Dense
		require.NoError(t, kt.Solve(&g, hh.T()))
		kref.Scale(-1, &kt)
		var f mat.Dense
		f.Mul(&atp, a)
		f.Add(&f, q)
		var hk mat.Dense
		hk.Mul(&hh, kref)
		p.Add(&f, &hk)

		for r0 := 0; r0 < 2; r0++ {
			for c0 := 0; c0 < 2; c0++ {
				assert.InDelta(t, p.At(r0, c0), w.fact.Stages[i].P.At(r0, c0), 1e-10, "P mismatch at stage %d", i)
			}
			assert.InDelta(t, kref.At(0, r0), w.pol.Stages[i].K.At(0, r0), 1e-10, "K mismatch at stage %d", i)
		}
		assert.True(t, mat.Equal(w.pol.Stages[i].K, w.pol.StateFeedbackGain(i)))
	}

	// zero residuals: the direction is pure feedback from the initial state
	w.d.Stages[0].Dx.SetVec(0, 1)
	w.d.Stages[0].Dx.SetVec(1, -0.5)
	require.NoError(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d))
	require.NoError(t, w.rec.ComputeDirection(grid, w.fact, w.set, w.d))
	for i := 0; i < n; i++ {
		var du mat.VecDense
		du.MulVec(w.pol.Stages[i].K, w.d.Stages[i].Dx)
		assert.InDelta(t, du.AtVec(0), w.d.Stages[i].Du.AtVec(0), 1e-12)
		checkControlledLink(t, w.km.Stages[i], w.kr.Stages[i], w.d.Stages[i], w.d.Stages[i+1], nil, nil)
	}
	checkTerminal(t, w.km.Stages[n], w.kr.Stages[n], w.d.Stages[n])

	// idempotence: a second sweep over the same data reproduces the gains
	k00 := w.pol.Stages[0].K.At(0, 0)
	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))
	assert.Equal(t, k00, w.pol.Stages[0].K.At(0, 0))
}

// TestRecursion_LiftEventKKT splices a lift sub-stage into a random
// two-phase problem and verifies the full stage-wise KKT system of the
// resulting direction, which is exactly what a dense factorization of the
// spliced KKT matrix would satisfy.
func TestRecursion_LiftEventKKT(t *testing.T) {
	const n = 6
	rng := rand.New(rand.NewSource(7))
	dims := ocp.Dimensions{Dimx: 3, Dimu: 2}

	grid, err := hybrid.NewTimeDiscretization(1.0, n, 1)
	require.NoError(t, err)
	seq, err := hybrid.NewContactSequence(hybrid.NewContactStatus(true), 1)
	require.NoError(t, err)
	require.NoError(t, seq.Push(hybrid.NewContactStatus(false), 0.38, false))
	require.NoError(t, grid.Discretize(seq, 0))
	require.True(t, grid.IsTractable())
	sb := grid.StageBeforeLift(0)

	w := newWorkspace(t, dims, n, 1, 1)
	for i := 0; i < n; i++ {
		fillStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
	}
	w.km.Stages[n].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	w.kr.Stages[n].Lx.CopyVec(randVec(rng, dims.Dimx))
	fillStage(rng, w.km.Lift[0], w.kr.Lift[0], dims)

	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))
	w.d.Stages[0].Dx.CopyVec(randVec(rng, dims.Dimx))
	require.NoError(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d))
	require.NoError(t, w.rec.ComputeDirection(grid, w.fact, w.set, w.d))

	for i := 0; i < n; i++ {
		switch {
		case i == sb:
			checkControlledLink(t, w.km.Stages[i], w.kr.Stages[i], w.d.Stages[i], w.d.Lift[0], nil, nil)
			checkControlledLink(t, w.km.Lift[0], w.kr.Lift[0], w.d.Lift[0], w.d.Stages[i+1], nil, nil)
		default:
			checkControlledLink(t, w.km.Stages[i], w.kr.Stages[i], w.d.Stages[i], w.d.Stages[i+1], nil, nil)
		}
	}
	checkTerminal(t, w.km.Stages[n], w.kr.Stages[n], w.d.Stages[n])
}

// TestRecursion_ImpulseSwitchingConstraint verifies the chained impulse
// eliminations and the switching-constraint Schur complement: the
// constraint holds exactly on the resulting direction and the multiplier
// enters the stationarity of the constraint's stage.
func TestRecursion_ImpulseSwitchingConstraint(t *testing.T) {
	const n = 8
	rng := rand.New(rand.NewSource(11))
	dims := ocp.Dimensions{Dimx: 3, Dimu: 2, MaxDimi: 2}

	grid, err := hybrid.NewTimeDiscretization(1.0, n, 1)
	require.NoError(t, err)
	seq, err := hybrid.NewContactSequence(hybrid.NewContactStatus(false), 1)
	require.NoError(t, err)
	require.NoError(t, seq.Push(hybrid.NewContactStatus(true), 0.42, false))
	require.NoError(t, grid.Discretize(seq, 0))
	require.True(t, grid.IsTractable())
	sb := grid.StageBeforeImpulse(0)
	require.Greater(t, sb, 0, "constraint needs a stage before the pre-impulse stage")

	w := newWorkspace(t, dims, n, 1, 2)
	for i := 0; i < n; i++ {
		fillStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
	}
	w.km.Stages[n].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	w.kr.Stages[n].Lx.CopyVec(randVec(rng, dims.Dimx))
	fillStage(rng, w.km.Aux[0], w.kr.Aux[0], dims)

	// impulse block: state jump only
	w.km.Impulse[0].Fxx.Copy(randDense(rng, dims.Dimx, dims.Dimx))
	w.km.Impulse[0].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	w.kr.Impulse[0].Fx.CopyVec(randVec(rng, dims.Dimx))
	w.kr.Impulse[0].Lx.CopyVec(randVec(rng, dims.Dimx))

	// position-continuity constraint on stage sb-1
	sc := w.km.Switching[0]
	sc.FullC().Copy(randDense(rng, dims.MaxDimi, dims.Dimx))
	sc.FullD().Copy(randDense(rng, dims.MaxDimi, dims.Dimu))
	sc.FullE().CopyVec(randVec(rng, dims.MaxDimi))
	sc.SetDimension(2)

	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))
	w.d.Stages[0].Dx.CopyVec(randVec(rng, dims.Dimx))
	require.NoError(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d))
	require.NoError(t, w.rec.ComputeDirection(grid, w.fact, w.set, w.d))

	// the eliminated constraint holds exactly
	dc := w.d.Stages[sb-1]
	require.Equal(t, 2, dc.Dimi)
	var con mat.VecDense
	con.MulVec(sc.C(), dc.Dx)
	var du mat.VecDense
	du.MulVec(sc.D(), dc.Du)
	con.AddVec(&con, &du)
	con.AddVec(&con, sc.E())
	assert.InDelta(t, 0, mat.Norm(&con, 2), kktTol, "switching constraint residual")

	// full chain KKT, with the multiplier terms at the constraint stage
	for i := 0; i < n; i++ {
		switch {
		case i == sb-1:
			var exDu, exDx mat.VecDense
			exDu.MulVec(sc.D().T(), dc.ActiveDxi())
			exDx.MulVec(sc.C().T(), dc.ActiveDxi())
			checkControlledLink(t, w.km.Stages[i], w.kr.Stages[i], w.d.Stages[i], w.d.Stages[i+1], &exDu, &exDx)
		case i == sb:
			checkControlledLink(t, w.km.Stages[i], w.kr.Stages[i], w.d.Stages[i], w.d.Impulse[0], nil, nil)
			checkImpulseLink(t, w.km.Impulse[0], w.kr.Impulse[0], w.d.Impulse[0], w.d.Aux[0])
			checkControlledLink(t, w.km.Aux[0], w.kr.Aux[0], w.d.Aux[0], w.d.Stages[i+1], nil, nil)
		default:
			checkControlledLink(t, w.km.Stages[i], w.kr.Stages[i], w.d.Stages[i], w.d.Stages[i+1], nil, nil)
		}
	}
	checkTerminal(t, w.km.Stages[n], w.kr.Stages[n], w.d.Stages[n])
}

// countingEval is a stage evaluator recording expansion calls and
// reporting fixed step sizes.
type countingEval struct {
	primal, dual float64
	calls        *int32
}

func (e *countingEval) ExpandPrimal(*ocp.SplitDirection) { atomic.AddInt32(e.calls, 1) }
func (e *countingEval) MaxPrimalStepSize() float64       { return e.primal }
func (e *countingEval) MaxDualStepSize() float64         { return e.dual }

// TestRecursion_SubStageCountAndStepSizes verifies that the parallel
// expansion touches exactly N+1+2k+m sub-stages and that the aggregated
// step sizes are the minima over all of them.
func TestRecursion_SubStageCountAndStepSizes(t *testing.T) {
	const n = 8
	rng := rand.New(rand.NewSource(3))
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1}

	grid, err := hybrid.NewTimeDiscretization(1.0, n, 2)
	require.NoError(t, err)
	seq, err := hybrid.NewContactSequence(hybrid.NewContactStatus(false), 2)
	require.NoError(t, err)
	require.NoError(t, seq.Push(hybrid.NewContactStatus(true), 0.3, false))  // impulse
	require.NoError(t, seq.Push(hybrid.NewContactStatus(false), 0.7, false)) // lift
	require.NoError(t, grid.Discretize(seq, 0))
	require.True(t, grid.IsTractable())

	w := newWorkspace(t, dims, n, 2, 3)
	for i := 0; i < n; i++ {
		fillStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
	}
	w.km.Stages[n].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	fillStage(rng, w.km.Aux[0], w.kr.Aux[0], dims)
	fillStage(rng, w.km.Lift[0], w.kr.Lift[0], dims)
	w.km.Impulse[0].Fxx.Copy(randDense(rng, dims.Dimx, dims.Dimx))
	w.km.Impulse[0].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))

	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))
	require.NoError(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d))

	var calls int32
	mk := func(p float64) *countingEval { return &countingEval{primal: p, dual: 0.9, calls: &calls} }
	for i := range w.set.Stages {
		w.set.Stages[i] = mk(1)
	}
	w.set.Terminal = mk(1)
	w.set.Impulse[0] = mk(1)
	w.set.Aux[0] = mk(0.25) // the binding fraction-to-boundary limit
	w.set.Lift[0] = mk(1)

	require.NoError(t, w.rec.ComputeDirection(grid, w.fact, w.set, w.d))
	assert.Equal(t, int32(n+1+2*1+1), atomic.LoadInt32(&calls), "sub-stage count N+1+2k+m")
	assert.InDelta(t, 0.25, w.rec.MaxPrimalStepSize(), 1e-15)
	assert.InDelta(t, 0.9, w.rec.MaxDualStepSize(), 1e-15)
}

// TestRecursion_ImpulseAtStageZero covers the boundary where the impulse
// follows the very first stage: no stage remains to carry the switching
// constraint, and the sweep must still succeed.
func TestRecursion_ImpulseAtStageZero(t *testing.T) {
	const n = 10
	rng := rand.New(rand.NewSource(5))
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1, MaxDimi: 1}

	grid, err := hybrid.NewTimeDiscretization(1.0, n, 1)
	require.NoError(t, err)
	seq, err := hybrid.NewContactSequence(hybrid.NewContactStatus(false), 1)
	require.NoError(t, err)
	require.NoError(t, seq.Push(hybrid.NewContactStatus(true), 0.05, false))
	require.NoError(t, grid.Discretize(seq, 0))
	require.True(t, grid.IsTractable())
	require.Equal(t, 0, grid.StageBeforeImpulse(0))

	w := newWorkspace(t, dims, n, 1, 1)
	for i := 0; i < n; i++ {
		fillStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
	}
	w.km.Stages[n].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	fillStage(rng, w.km.Aux[0], w.kr.Aux[0], dims)
	w.km.Impulse[0].Fxx.Copy(randDense(rng, dims.Dimx, dims.Dimx))
	w.km.Impulse[0].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	w.km.Switching[0].SetDimension(1) // present but not eliminable

	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))
	assert.Equal(t, 0, w.fact.Switching[0].Dimi)

	require.NoError(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d))
	require.NoError(t, w.rec.ComputeDirection(grid, w.fact, w.set, w.d))
	assert.Equal(t, 0, w.d.Stages[0].Dimi)
}

// TestRecursion_SingularBlock forces a rank-deficient control Hessian and
// expects the recoverable degeneracy error.
func TestRecursion_SingularBlock(t *testing.T) {
	const n = 4
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1}
	grid := eventFreeGrid(t, 1.0, n)
	w := newWorkspace(t, dims, n, 0, 1)
	// Quu stays zero and Fxu is zero: the control block is singular
	for i := 0; i < n; i++ {
		w.km.Stages[i].Fxx.Set(0, 0, 1)
		w.km.Stages[i].Fxx.Set(1, 1, 1)
		w.km.Stages[i].Qxx.SetSym(0, 0, 1)
		w.km.Stages[i].Qxx.SetSym(1, 1, 1)
	}
	w.km.Stages[n].Qxx.SetSym(0, 0, 1)
	w.km.Stages[n].Qxx.SetSym(1, 1, 1)

	assert.ErrorIs(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol), riccati.ErrSingularBlock)
}

// stoGrid builds a phase-based two-phase grid with one lift event at 0.5,
// optionally with a free switching time.
func stoGrid(t *testing.T, sto bool) *hybrid.TimeDiscretization {
	t.Helper()
	grid, err := hybrid.NewTimeDiscretization(1.0, 10, 1, hybrid.WithMethod(hybrid.PhaseBased))
	require.NoError(t, err)
	seq, err := hybrid.NewContactSequence(hybrid.NewContactStatus(true), 1)
	require.NoError(t, err)
	require.NoError(t, seq.Push(hybrid.NewContactStatus(false), 0.5, sto))
	require.NoError(t, grid.Discretize(seq, 0))
	require.True(t, grid.IsTractable())

	return grid
}

// fillSTOStage adds switching-time sensitivities to an already filled
// stage block.
func fillSTOStage(rng *rand.Rand, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual, dims ocp.Dimensions) {
	km.Hx.CopyVec(randVec(rng, dims.Dimx))
	km.Hu.CopyVec(randVec(rng, dims.Dimu))
	km.Hu.ScaleVec(0.1, km.Hu)
	km.Ft.CopyVec(randVec(rng, dims.Dimx))
	km.Qtt = 2 + rng.Float64()
	kr.H = 2*rng.Float64() - 1
}

// TestRecursion_STODisabledStaysZero verifies that with a fixed event time
// the switching-time channels, policies and direction entries are exactly
// zero even when the KKT data carries time sensitivities.
func TestRecursion_STODisabledStaysZero(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1}
	grid := stoGrid(t, false)
	n := grid.N()

	w := newWorkspace(t, dims, n, 1, 1)
	for i := 0; i < n; i++ {
		fillStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
		fillSTOStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
	}
	w.km.Stages[n].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	fillStage(rng, w.km.Lift[0], w.kr.Lift[0], dims)
	fillSTOStage(rng, w.km.Lift[0], w.kr.Lift[0], dims)

	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))
	for i := 0; i <= n; i++ {
		assert.Zero(t, mat.Norm(w.fact.Stages[i].Psi, 2), "Psi at stage %d", i)
		assert.Zero(t, mat.Norm(w.fact.Stages[i].Phi, 2), "Phi at stage %d", i)
		assert.Zero(t, w.fact.Stages[i].Xi)
		assert.Zero(t, w.fact.Stages[i].Rho)
	}
	for i := 0; i < n; i++ {
		assert.Zero(t, mat.Norm(w.pol.Stages[i].T, 2))
		assert.Zero(t, mat.Norm(w.pol.Stages[i].W, 2))
	}

	w.d.Stages[0].Dx.CopyVec(randVec(rng, dims.Dimx))
	require.NoError(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d))
	assert.Zero(t, w.d.Lift[0].Dts)
	assert.Zero(t, w.d.Stages[n].Dts)
}

// TestRecursion_STODirection enables the switching time and checks the
// event-time step: the phase-start law is evaluated at stage 0 and the
// step flows to every sub-stage bounded by the event.
func TestRecursion_STODirection(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	dims := ocp.Dimensions{Dimx: 2, Dimu: 1}
	grid := stoGrid(t, true)
	n := grid.N()
	sb := grid.StageBeforeLift(0)

	w := newWorkspace(t, dims, n, 1, 1)
	for i := 0; i < n; i++ {
		fillStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
		fillSTOStage(rng, w.km.Stages[i], w.kr.Stages[i], dims)
	}
	w.km.Stages[n].Qxx.CopySym(randSPD(rng, dims.Dimx, 1))
	fillStage(rng, w.km.Lift[0], w.kr.Lift[0], dims)
	fillSTOStage(rng, w.km.Lift[0], w.kr.Lift[0], dims)

	require.NoError(t, w.rec.Backward(grid, w.km, w.kr, w.fact, w.pol))
	assert.Positive(t, w.fact.Stages[0].Rho, "ending-time curvature at the phase start")

	w.d.Stages[0].Dx.CopyVec(randVec(rng, dims.Dimx))
	require.NoError(t, w.rec.Forward(grid, w.km, w.kr, w.pol, w.d))

	want := mat.Dot(w.pol.STO[0].DtsDx, w.d.Stages[0].Dx) + w.pol.STO[0].Dts0
	assert.InDelta(t, want, w.d.Stages[0].DtsNext, 1e-12, "event-time law at the horizon start")
	assert.InDelta(t, want, w.d.Stages[sb].DtsNext, 1e-12, "ending step shared by phase 0")
	assert.InDelta(t, want, w.d.Lift[0].Dts, 1e-12, "entering step of phase 1")
	assert.InDelta(t, want, w.d.Stages[n].Dts, 1e-12, "entering step at the terminal stage")
}
