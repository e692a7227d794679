package riccati

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ruihuang1124/robotoc/ocp"
)

// LQRPolicy is the affine control law of one regular sub-stage,
//
//	du = K·dx + K0 + T·dts + W·dtsNext,
//
// where dts/dtsNext are the event-time steps bounding the sub-stage's
// contact phase. T and W stay zero when switching-time optimization is
// disabled for the corresponding events.
type LQRPolicy struct {
	K  *mat.Dense
	K0 *mat.VecDense
	T  *mat.VecDense
	W  *mat.VecDense
}

// NewLQRPolicy allocates a zeroed policy.
func NewLQRPolicy(dims ocp.Dimensions) *LQRPolicy {
	return &LQRPolicy{
		K:  mat.NewDense(dims.Dimu, dims.Dimx, nil),
		K0: mat.NewVecDense(dims.Dimu, nil),
		T:  mat.NewVecDense(dims.Dimu, nil),
		W:  mat.NewVecDense(dims.Dimu, nil),
	}
}

// SetZero clears the policy in place.
func (p *LQRPolicy) SetZero() {
	p.K.Zero()
	p.K0.Zero()
	p.T.Zero()
	p.W.Zero()
}

// STOPolicy is the affine switching-time law of one event,
//
//	dts = DtsDx·dx + DtsDts·dtsPrev + Dts0,
//
// evaluated at the first sub-stage of the phase the event terminates.
type STOPolicy struct {
	DtsDx  *mat.VecDense
	DtsDts float64
	Dts0   float64
}

// NewSTOPolicy allocates a zeroed switching-time policy.
func NewSTOPolicy(dims ocp.Dimensions) *STOPolicy {
	return &STOPolicy{DtsDx: mat.NewVecDense(dims.Dimx, nil)}
}

// SetZero clears the switching-time policy in place.
func (p *STOPolicy) SetZero() {
	p.DtsDx.Zero()
	p.DtsDts = 0
	p.Dts0 = 0
}

// Policy aggregates the feedback laws of one backward sweep: one LQRPolicy
// per regular stage and per aux/lift sub-stage (the impulse stage has no
// control, hence no policy), and one STOPolicy per discrete event plus the
// horizon-opening phase.
type Policy struct {
	Stages []*LQRPolicy
	Aux    []*LQRPolicy
	Lift   []*LQRPolicy
	STO    []*STOPolicy
}

// StateFeedbackGain returns the feedback gain K of a regular stage from
// the last backward sweep, e.g. for use as a time-varying LQR controller.
// The returned matrix is a view into the policy; treat it as read-only.
func (p *Policy) StateFeedbackGain(stage int) mat.Matrix { return p.Stages[stage].K }

// NewPolicy allocates the full policy set for N stages and up to maxEvents
// impulse and lift events each.
func NewPolicy(dims ocp.Dimensions, n, maxEvents int) (*Policy, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ocp.ErrNonPositiveStages
	}
	if maxEvents < 0 {
		return nil, ocp.ErrNegativeReserve
	}
	p := &Policy{
		Stages: make([]*LQRPolicy, n),
		Aux:    make([]*LQRPolicy, maxEvents),
		Lift:   make([]*LQRPolicy, maxEvents),
		STO:    make([]*STOPolicy, 2*maxEvents+1),
	}
	for i := range p.Stages {
		p.Stages[i] = NewLQRPolicy(dims)
	}
	for e := 0; e < maxEvents; e++ {
		p.Aux[e] = NewLQRPolicy(dims)
		p.Lift[e] = NewLQRPolicy(dims)
	}
	for e := range p.STO {
		p.STO[e] = NewSTOPolicy(dims)
	}

	return p, nil
}
