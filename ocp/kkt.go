package ocp

import "gonum.org/v1/gonum/mat"

// SplitKKTMatrix is the dense KKT left-hand side of one sub-stage
// (regular, impulse, aux or lift). Impulse sub-stages have no control
// unknowns; their Fxu/Qxu/Quu/Hu blocks are ignored by the recursion.
type SplitKKTMatrix struct {
	// Fxx is the state-transition Jacobian (dimx x dimx), Fxu the
	// state-to-control Jacobian (dimx x dimu).
	Fxx *mat.Dense
	Fxu *mat.Dense

	// Qxx, Qxu, Quu are the Lagrangian Hessian blocks.
	Qxx *mat.SymDense
	Qxu *mat.Dense
	Quu *mat.SymDense

	// Switching-time sensitivity channel, populated only when the owning
	// phase's duration is free: Hx/Hu are Hamiltonian cross-gradients,
	// Qtt the duration curvature, Ft the dynamics sensitivity to the
	// duration.
	Hx  *mat.VecDense
	Hu  *mat.VecDense
	Ft  *mat.VecDense
	Qtt float64
}

// NewSplitKKTMatrix allocates a zeroed split KKT matrix.
func NewSplitKKTMatrix(dims Dimensions) *SplitKKTMatrix {
	return &SplitKKTMatrix{
		Fxx: mat.NewDense(dims.Dimx, dims.Dimx, nil),
		Fxu: mat.NewDense(dims.Dimx, dims.Dimu, nil),
		Qxx: mat.NewSymDense(dims.Dimx, nil),
		Qxu: mat.NewDense(dims.Dimx, dims.Dimu, nil),
		Quu: mat.NewSymDense(dims.Dimu, nil),
		Hx:  mat.NewVecDense(dims.Dimx, nil),
		Hu:  mat.NewVecDense(dims.Dimu, nil),
		Ft:  mat.NewVecDense(dims.Dimx, nil),
	}
}

// SetZero clears every block in place.
func (m *SplitKKTMatrix) SetZero() {
	m.Fxx.Zero()
	m.Fxu.Zero()
	m.Qxx.Zero()
	m.Qxu.Zero()
	m.Quu.Zero()
	m.Hx.Zero()
	m.Hu.Zero()
	m.Ft.Zero()
	m.Qtt = 0
}

// SplitKKTResidual is the dense KKT right-hand side of one sub-stage.
type SplitKKTResidual struct {
	// Fx is the state-equation (shooting) residual.
	Fx *mat.VecDense

	// Lx, Lu are the Lagrangian gradient blocks.
	Lx *mat.VecDense
	Lu *mat.VecDense

	// H is the Hamiltonian residual of the sub-stage, accumulated per
	// phase by the STO subsystem.
	H float64
}

// NewSplitKKTResidual allocates a zeroed split KKT residual.
func NewSplitKKTResidual(dims Dimensions) *SplitKKTResidual {
	return &SplitKKTResidual{
		Fx: mat.NewVecDense(dims.Dimx, nil),
		Lx: mat.NewVecDense(dims.Dimx, nil),
		Lu: mat.NewVecDense(dims.Dimu, nil),
	}
}

// SetZero clears every block in place.
func (r *SplitKKTResidual) SetZero() {
	r.Fx.Zero()
	r.Lx.Zero()
	r.Lu.Zero()
	r.H = 0
}

// SwitchingConstraint is the condensed position-continuity constraint of
// an impulse event, expressed on the stage before the pre-impulse stage:
//
//	C dx + D du + e = 0
//
// Blocks are allocated at MaxDimi rows and sliced to the active row count.
type SwitchingConstraint struct {
	dimi int

	cFull *mat.Dense
	dFull *mat.Dense
	eFull *mat.VecDense
}

// NewSwitchingConstraint allocates a switching-constraint block set.
func NewSwitchingConstraint(dims Dimensions) *SwitchingConstraint {
	rows := dims.MaxDimi
	if rows == 0 {
		rows = 1 // keep views well-formed; active count stays 0
	}

	return &SwitchingConstraint{
		cFull: mat.NewDense(rows, dims.Dimx, nil),
		dFull: mat.NewDense(rows, dims.Dimu, nil),
		eFull: mat.NewVecDense(rows, nil),
	}
}

// SetDimension sets the active row count. It panics if n exceeds the
// allocated capacity (programmer error: the contact sequence grew past the
// reserve without a matching reallocation).
func (c *SwitchingConstraint) SetDimension(n int) {
	if n < 0 || n > c.cFull.RawMatrix().Rows {
		panic("ocp: switching constraint dimension out of range")
	}
	c.dimi = n
}

// Dimension returns the active row count.
func (c *SwitchingConstraint) Dimension() int { return c.dimi }

// C returns the active state Jacobian rows. C, D and E must only be
// called with a positive active row count; callers skip the switching
// elimination entirely when Dimension() == 0.
func (c *SwitchingConstraint) C() *mat.Dense {
	_, cols := c.cFull.Dims()

	return c.cFull.Slice(0, c.dimi, 0, cols).(*mat.Dense)
}

// D returns the active control Jacobian rows.
func (c *SwitchingConstraint) D() *mat.Dense {
	_, cols := c.dFull.Dims()

	return c.dFull.Slice(0, c.dimi, 0, cols).(*mat.Dense)
}

// E returns the active residual entries.
func (c *SwitchingConstraint) E() *mat.VecDense {
	return c.eFull.SliceVec(0, c.dimi).(*mat.VecDense)
}

// FullC, FullD, FullE expose the backing storage for external evaluators
// that fill the blocks before SetDimension.
func (c *SwitchingConstraint) FullC() *mat.Dense    { return c.cFull }
func (c *SwitchingConstraint) FullD() *mat.Dense    { return c.dFull }
func (c *SwitchingConstraint) FullE() *mat.VecDense { return c.eFull }
