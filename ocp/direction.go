package ocp

import "gonum.org/v1/gonum/mat"

// SplitDirection is the full Newton step of one sub-stage: primal state
// and control directions, the costate (Lagrange-multiplier) direction, the
// switching-constraint multiplier direction, and the scalar event-time
// steps when switching-time optimization is active.
type SplitDirection struct {
	// Dx, Du are the primal state and control directions.
	Dx *mat.VecDense
	Du *mat.VecDense

	// Dlmd is the costate direction.
	Dlmd *mat.VecDense

	// Dxi holds the switching-constraint multiplier direction; only the
	// first dimi entries are active (see SwitchingConstraint).
	Dxi  *mat.VecDense
	Dimi int

	// Dts is the event-time step of the phase entered at this sub-stage's
	// preceding event; DtsNext the step of the following event.
	Dts     float64
	DtsNext float64
}

// NewSplitDirection allocates a zeroed split direction.
func NewSplitDirection(dims Dimensions) *SplitDirection {
	rows := dims.MaxDimi
	if rows == 0 {
		rows = 1
	}

	return &SplitDirection{
		Dx:   mat.NewVecDense(dims.Dimx, nil),
		Du:   mat.NewVecDense(dims.Dimu, nil),
		Dlmd: mat.NewVecDense(dims.Dimx, nil),
		Dxi:  mat.NewVecDense(rows, nil),
	}
}

// SetZero clears the direction in place.
func (d *SplitDirection) SetZero() {
	d.Dx.Zero()
	d.Du.Zero()
	d.Dlmd.Zero()
	d.Dxi.Zero()
	d.Dimi = 0
	d.Dts = 0
	d.DtsNext = 0
}

// ActiveDxi returns the active switching-multiplier entries. Must only be
// called when Dimi > 0.
func (d *SplitDirection) ActiveDxi() *mat.VecDense {
	return d.Dxi.SliceVec(0, d.Dimi).(*mat.VecDense)
}
