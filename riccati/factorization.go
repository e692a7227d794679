package riccati

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ruihuang1124/robotoc/ocp"
)

// SplitRiccatiFactorization is the quadratic value-function model at one
// sub-stage,
//
//	V(x, ts, tsNext) ≈ ½ dxᵀ P dx − Sᵀ dx
//	                 + dts·Psiᵀ dx + dtsNext·Phiᵀ dx
//	                 + ½ Xi dts² + Chi dts dtsNext + ½ Rho dtsNext²
//	                 − Eta dts − Iota dtsNext,
//
// where ts is the switching time entering the sub-stage's contact phase
// and tsNext the one ending it. The Psi/Phi/scalar channels are only
// populated when switching-time optimization is enabled for the bounding
// events; otherwise they stay zero.
type SplitRiccatiFactorization struct {
	// P is the value-function Hessian, S the (negated) gradient.
	P *mat.SymDense
	S *mat.VecDense

	// Psi, Phi are the state cross-sensitivities of the value gradient
	// with respect to the entering and ending switching times.
	Psi *mat.VecDense
	Phi *mat.VecDense

	// Xi, Chi, Rho are the switching-time curvatures; Eta, Iota the
	// switching-time gradients.
	Xi, Chi, Rho float64
	Eta, Iota    float64
}

// NewSplitRiccatiFactorization allocates a zeroed factorization.
func NewSplitRiccatiFactorization(dims ocp.Dimensions) *SplitRiccatiFactorization {
	return &SplitRiccatiFactorization{
		P:   mat.NewSymDense(dims.Dimx, nil),
		S:   mat.NewVecDense(dims.Dimx, nil),
		Psi: mat.NewVecDense(dims.Dimx, nil),
		Phi: mat.NewVecDense(dims.Dimx, nil),
	}
}

// SetZero clears the factorization in place.
func (f *SplitRiccatiFactorization) SetZero() {
	f.P.Zero()
	f.S.Zero()
	f.setZeroSTO()
}

func (f *SplitRiccatiFactorization) setZeroSTO() {
	f.Psi.Zero()
	f.Phi.Zero()
	f.Xi = 0
	f.Chi = 0
	f.Rho = 0
	f.Eta = 0
	f.Iota = 0
}

// SwitchingFactorization stores the affine map recovering the
// switching-constraint multiplier direction, dxi = M·dx + Mv, produced by
// the Schur-complement elimination at the stage preceding an impulse.
// Only the first dimi rows are active.
type SwitchingFactorization struct {
	M    *mat.Dense
	Mv   *mat.VecDense
	Dimi int
}

// NewSwitchingFactorization allocates a zeroed multiplier factorization.
func NewSwitchingFactorization(dims ocp.Dimensions) *SwitchingFactorization {
	rows := dims.MaxDimi
	if rows == 0 {
		rows = 1
	}

	return &SwitchingFactorization{
		M:  mat.NewDense(rows, dims.Dimx, nil),
		Mv: mat.NewVecDense(rows, nil),
	}
}

// SetZero clears the multiplier factorization in place.
func (s *SwitchingFactorization) SetZero() {
	s.M.Zero()
	s.Mv.Zero()
	s.Dimi = 0
}

// Factorization aggregates the per-sub-stage factorizations of one
// backward sweep: regular stages 0..N (stage N is terminal) plus reserved
// arenas for impulse, aux and lift sub-stages indexed by event ordinal.
type Factorization struct {
	Stages    []*SplitRiccatiFactorization
	Impulse   []*SplitRiccatiFactorization
	Aux       []*SplitRiccatiFactorization
	Lift      []*SplitRiccatiFactorization
	Switching []*SwitchingFactorization
}

// NewFactorization allocates the full factorization set for N stages and
// up to maxEvents impulse and lift events each.
func NewFactorization(dims ocp.Dimensions, n, maxEvents int) (*Factorization, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ocp.ErrNonPositiveStages
	}
	if maxEvents < 0 {
		return nil, ocp.ErrNegativeReserve
	}
	f := &Factorization{
		Stages:    make([]*SplitRiccatiFactorization, n+1),
		Impulse:   make([]*SplitRiccatiFactorization, maxEvents),
		Aux:       make([]*SplitRiccatiFactorization, maxEvents),
		Lift:      make([]*SplitRiccatiFactorization, maxEvents),
		Switching: make([]*SwitchingFactorization, maxEvents),
	}
	for i := range f.Stages {
		f.Stages[i] = NewSplitRiccatiFactorization(dims)
	}
	for e := 0; e < maxEvents; e++ {
		f.Impulse[e] = NewSplitRiccatiFactorization(dims)
		f.Aux[e] = NewSplitRiccatiFactorization(dims)
		f.Lift[e] = NewSplitRiccatiFactorization(dims)
		f.Switching[e] = NewSwitchingFactorization(dims)
	}

	return f, nil
}
