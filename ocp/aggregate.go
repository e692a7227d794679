package ocp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// KKTMatrix aggregates the split KKT matrices of one Newton iteration:
// regular stages 0..N (stage N is the terminal cost block) plus reserved
// arenas for impulse, aux and lift sub-stages indexed by event ordinal.
// The active event counts are owned by the grid; the recursion checks them
// against these capacities eagerly.
type KKTMatrix struct {
	Stages    []*SplitKKTMatrix
	Impulse   []*SplitKKTMatrix
	Aux       []*SplitKKTMatrix
	Lift      []*SplitKKTMatrix
	Switching []*SwitchingConstraint
}

// NewKKTMatrix allocates the full KKT matrix set for N stages and up to
// maxEvents impulse and lift events each.
func NewKKTMatrix(dims Dimensions, n, maxEvents int) (*KKTMatrix, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrNonPositiveStages
	}
	if maxEvents < 0 {
		return nil, ErrNegativeReserve
	}
	k := &KKTMatrix{
		Stages:    make([]*SplitKKTMatrix, n+1),
		Impulse:   make([]*SplitKKTMatrix, maxEvents),
		Aux:       make([]*SplitKKTMatrix, maxEvents),
		Lift:      make([]*SplitKKTMatrix, maxEvents),
		Switching: make([]*SwitchingConstraint, maxEvents),
	}
	for i := range k.Stages {
		k.Stages[i] = NewSplitKKTMatrix(dims)
	}
	for e := 0; e < maxEvents; e++ {
		k.Impulse[e] = NewSplitKKTMatrix(dims)
		k.Aux[e] = NewSplitKKTMatrix(dims)
		k.Lift[e] = NewSplitKKTMatrix(dims)
		k.Switching[e] = NewSwitchingConstraint(dims)
	}

	return k, nil
}

// KKTResidual aggregates the split KKT residuals of one Newton iteration,
// mirroring the KKTMatrix layout.
type KKTResidual struct {
	Stages  []*SplitKKTResidual
	Impulse []*SplitKKTResidual
	Aux     []*SplitKKTResidual
	Lift    []*SplitKKTResidual
}

// NewKKTResidual allocates the full KKT residual set.
func NewKKTResidual(dims Dimensions, n, maxEvents int) (*KKTResidual, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrNonPositiveStages
	}
	if maxEvents < 0 {
		return nil, ErrNegativeReserve
	}
	r := &KKTResidual{
		Stages:  make([]*SplitKKTResidual, n+1),
		Impulse: make([]*SplitKKTResidual, maxEvents),
		Aux:     make([]*SplitKKTResidual, maxEvents),
		Lift:    make([]*SplitKKTResidual, maxEvents),
	}
	for i := range r.Stages {
		r.Stages[i] = NewSplitKKTResidual(dims)
	}
	for e := 0; e < maxEvents; e++ {
		r.Impulse[e] = NewSplitKKTResidual(dims)
		r.Aux[e] = NewSplitKKTResidual(dims)
		r.Lift[e] = NewSplitKKTResidual(dims)
	}

	return r, nil
}

// PrimalDualNorm returns the Euclidean norm of the stacked residual over
// the first n+1 stages and the active event sub-stages.
func (r *KKTResidual) PrimalDualNorm(n, nImpulse, nLift int) float64 {
	sq := 0.0
	acc := func(s *SplitKKTResidual) {
		sq += mat.Dot(s.Fx, s.Fx) + mat.Dot(s.Lx, s.Lx) + mat.Dot(s.Lu, s.Lu)
	}
	for i := 0; i <= n; i++ {
		acc(r.Stages[i])
	}
	for e := 0; e < nImpulse; e++ {
		acc(r.Impulse[e])
		acc(r.Aux[e])
	}
	for l := 0; l < nLift; l++ {
		acc(r.Lift[l])
	}

	return math.Sqrt(sq)
}

// Direction aggregates the split directions of one Newton iteration,
// mirroring the KKTMatrix layout.
type Direction struct {
	Stages  []*SplitDirection
	Impulse []*SplitDirection
	Aux     []*SplitDirection
	Lift    []*SplitDirection
}

// NewDirection allocates the full direction set.
func NewDirection(dims Dimensions, n, maxEvents int) (*Direction, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrNonPositiveStages
	}
	if maxEvents < 0 {
		return nil, ErrNegativeReserve
	}
	d := &Direction{
		Stages:  make([]*SplitDirection, n+1),
		Impulse: make([]*SplitDirection, maxEvents),
		Aux:     make([]*SplitDirection, maxEvents),
		Lift:    make([]*SplitDirection, maxEvents),
	}
	for i := range d.Stages {
		d.Stages[i] = NewSplitDirection(dims)
	}
	for e := 0; e < maxEvents; e++ {
		d.Impulse[e] = NewSplitDirection(dims)
		d.Aux[e] = NewSplitDirection(dims)
		d.Lift[e] = NewSplitDirection(dims)
	}

	return d, nil
}

// SetZero clears every split direction in place.
func (d *Direction) SetZero() {
	for _, s := range d.Stages {
		s.SetZero()
	}
	for e := range d.Impulse {
		d.Impulse[e].SetZero()
		d.Aux[e].SetZero()
		d.Lift[e].SetZero()
	}
}
