package riccati

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ruihuang1124/robotoc/ocp"
)

// stoCurvatureTol is the smallest switching-time curvature accepted when
// inverting the event-time stationarity condition.
const stoCurvatureTol = 1e-12

// Factorizer owns the scratch buffers of the backward block eliminations.
// All Backward* methods write through their output arguments and reuse the
// scratch, so a Factorizer must not be shared between concurrent sweeps.
//
// Switching-time channel convention: the Hx/Hu/Ft/Qtt/H blocks of a split
// KKT matrix/residual are sensitivities with respect to the switching time
// entering the sub-stage's phase; sensitivities with respect to the
// ending time are their negatives (the local step depends on the phase
// duration only).
type Factorizer struct {
	dims ocp.Dimensions

	atp *mat.Dense // Aᵀ P'
	btp *mat.Dense // Bᵀ P'
	fq  *mat.Dense // Qxx + AᵀP'A
	hq  *mat.Dense // Qxu + AᵀP'B
	gq  *mat.Dense // Quu + BᵀP'B before symmetrization
	g   *mat.SymDense
	pd  *mat.Dense // dense scratch for the value Hessian

	chol  mat.Cholesky
	cholS mat.Cholesky

	vpf *mat.VecDense // P' f − s'
	lu  *mat.VecDense // condensed control gradient
	vx  *mat.VecDense
	vx2 *mat.VecDense
	vu  *mat.VecDense

	psiX, phiX *mat.VecDense
	psiU, phiU *mat.VecDense
	zeroX      *mat.VecDense // stays zero; rotated-channel source

	// switching-constraint scratch, allocated at MaxDimi and sliced
	gid  *mat.Dense // G⁻¹ Dᵀ
	cdk  *mat.Dense // C + D K
	sd   *mat.Dense // D G⁻¹ Dᵀ
	ss   *mat.SymDense
	kc   *mat.Dense // policy correction G⁻¹ Dᵀ M
	pc   *mat.Dense // value correction (C+DK)ᵀ M
	ev   *mat.VecDense
	ev2  *mat.VecDense
	ev3  *mat.VecDense
	dtv  *mat.VecDense // D T
	dwv  *mat.VecDense // D W
}

// NewFactorizer allocates a factorizer for the given block dimensions.
func NewFactorizer(dims ocp.Dimensions) (*Factorizer, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	nx, nu := dims.Dimx, dims.Dimu
	ni := dims.MaxDimi
	if ni == 0 {
		ni = 1
	}

	return &Factorizer{
		dims:  dims,
		atp:   mat.NewDense(nx, nx, nil),
		btp:   mat.NewDense(nu, nx, nil),
		fq:    mat.NewDense(nx, nx, nil),
		hq:    mat.NewDense(nx, nu, nil),
		gq:    mat.NewDense(nu, nu, nil),
		g:     mat.NewSymDense(nu, nil),
		pd:    mat.NewDense(nx, nx, nil),
		vpf:   mat.NewVecDense(nx, nil),
		lu:    mat.NewVecDense(nu, nil),
		vx:    mat.NewVecDense(nx, nil),
		vx2:   mat.NewVecDense(nx, nil),
		vu:    mat.NewVecDense(nu, nil),
		psiX:  mat.NewVecDense(nx, nil),
		phiX:  mat.NewVecDense(nx, nil),
		psiU:  mat.NewVecDense(nu, nil),
		phiU:  mat.NewVecDense(nu, nil),
		zeroX: mat.NewVecDense(nx, nil),
		gid:   mat.NewDense(nu, ni, nil),
		cdk:   mat.NewDense(ni, nx, nil),
		sd:    mat.NewDense(ni, ni, nil),
		ss:    mat.NewSymDense(ni, nil),
		kc:    mat.NewDense(nu, nx, nil),
		pc:    mat.NewDense(nx, nx, nil),
		ev:    mat.NewVecDense(ni, nil),
		ev2:   mat.NewVecDense(ni, nil),
		ev3:   mat.NewVecDense(ni, nil),
		dtv:   mat.NewVecDense(ni, nil),
		dwv:   mat.NewVecDense(ni, nil),
	}, nil
}

// Terminal seeds the backward sweep from the terminal cost block.
func (f *Factorizer) Terminal(km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual, fact *SplitRiccatiFactorization) {
	fact.P.CopySym(km.Qxx)
	fact.S.ScaleVec(-1, kr.Lx)
	fact.setZeroSTO()
}

// BackwardStage eliminates one regular sub-stage whose successor
// factorization belongs to the same contact phase. The sto/stoNext flags
// report whether the entering and ending switching times of the phase are
// free; the policy's T/W gains and the factorization's channels stay zero
// when both are false.
func (f *Factorizer) BackwardStage(next *SplitRiccatiFactorization, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual,
	fact *SplitRiccatiFactorization, pol *LQRPolicy, sto, stoNext bool) error {
	return f.backwardStage(next, km, kr, fact, pol, sto, stoNext, false)
}

// BackwardStageAcrossEvent eliminates the regular stage just before a
// discrete event. The successor factorization (the impulse or lift
// sub-stage) carries the entered phase's channels; this step rotates them
// into the ending-time channel of the current phase and opens a fresh
// entering-time channel.
func (f *Factorizer) BackwardStageAcrossEvent(next *SplitRiccatiFactorization, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual,
	fact *SplitRiccatiFactorization, pol *LQRPolicy, sto, stoNext bool) error {
	return f.backwardStage(next, km, kr, fact, pol, sto, stoNext, true)
}

func (f *Factorizer) backwardStage(next *SplitRiccatiFactorization, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual,
	fact *SplitRiccatiFactorization, pol *LQRPolicy, sto, stoNext, rotate bool) error {
	nx, nu := f.dims.Dimx, f.dims.Dimu

	// condensed gradient: lū = Lu + Bᵀ(P'f − s')
	f.vpf.MulVec(next.P, kr.Fx)
	f.vpf.SubVec(f.vpf, next.S)
	f.lu.MulVec(km.Fxu.T(), f.vpf)
	f.lu.AddVec(kr.Lu, f.lu)

	// condensed Hessian blocks
	f.atp.Mul(km.Fxx.T(), next.P)
	f.btp.Mul(km.Fxu.T(), next.P)
	f.fq.Mul(f.atp, km.Fxx)
	f.fq.Add(f.fq, km.Qxx)
	f.hq.Mul(f.atp, km.Fxu)
	f.hq.Add(f.hq, km.Qxu)
	f.gq.Mul(f.btp, km.Fxu)
	f.gq.Add(f.gq, km.Quu)
	for i := 0; i < nu; i++ {
		for j := i; j < nu; j++ {
			f.g.SetSym(i, j, 0.5*(f.gq.At(i, j)+f.gq.At(j, i)))
		}
	}
	if ok := f.chol.Factorize(f.g); !ok {
		return ErrSingularBlock
	}

	// feedback gain and feedforward
	if err := f.chol.SolveTo(pol.K, f.hq.T()); err != nil {
		return ErrSingularBlock
	}
	pol.K.Scale(-1, pol.K)
	if err := f.chol.SolveVecTo(pol.K0, f.lu); err != nil {
		return ErrSingularBlock
	}
	pol.K0.ScaleVec(-1, pol.K0)

	// closed-loop value function
	f.pd.Mul(f.hq, pol.K)
	f.pd.Add(f.pd, f.fq)
	for i := 0; i < nx; i++ {
		for j := i; j < nx; j++ {
			fact.P.SetSym(i, j, 0.5*(f.pd.At(i, j)+f.pd.At(j, i)))
		}
	}
	f.vx.MulVec(km.Fxx.T(), f.vpf)
	f.vx2.MulVec(f.hq, pol.K0)
	fact.S.AddVec(f.vx, f.vx2)
	fact.S.AddVec(fact.S, kr.Lx)
	fact.S.ScaleVec(-1, fact.S)

	fact.setZeroSTO()
	pol.T.Zero()
	pol.W.Zero()
	if !sto && !stoNext {
		return nil
	}

	// switching-time channels; across an event the successor's entering
	// channel becomes this phase's ending channel
	nextPsi, nextPhi := mat.Vector(next.Psi), mat.Vector(next.Phi)
	xi0, chi0, rho0 := next.Xi, next.Chi, next.Rho
	eta0, iota0 := next.Eta, next.Iota
	if rotate {
		nextPsi, nextPhi = f.zeroX, next.Psi
		xi0, chi0, rho0 = 0, 0, next.Xi
		eta0, iota0 = 0, next.Eta
	}
	f.psiX.MulVec(km.Fxx.T(), nextPsi)
	f.psiU.MulVec(km.Fxu.T(), nextPsi)
	if sto {
		f.psiX.AddVec(f.psiX, km.Hx)
		f.psiU.AddVec(f.psiU, km.Hu)
	}
	f.phiX.MulVec(km.Fxx.T(), nextPhi)
	f.phiU.MulVec(km.Fxu.T(), nextPhi)
	if stoNext {
		f.phiX.AddScaledVec(f.phiX, -1, km.Hx)
		f.phiU.AddScaledVec(f.phiU, -1, km.Hu)
	}
	if err := f.chol.SolveVecTo(pol.T, f.psiU); err != nil {
		return ErrSingularBlock
	}
	pol.T.ScaleVec(-1, pol.T)
	if err := f.chol.SolveVecTo(pol.W, f.phiU); err != nil {
		return ErrSingularBlock
	}
	pol.W.ScaleVec(-1, pol.W)

	f.vx.MulVec(pol.K.T(), f.psiU)
	fact.Psi.AddVec(f.psiX, f.vx)
	f.vx.MulVec(pol.K.T(), f.phiU)
	fact.Phi.AddVec(f.phiX, f.vx)

	fact.Xi = xi0 + mat.Dot(f.psiU, pol.T)
	fact.Chi = chi0 + mat.Dot(f.psiU, pol.W)
	fact.Rho = rho0 + mat.Dot(f.phiU, pol.W)
	fact.Eta = eta0 + mat.Dot(f.psiU, pol.K0)
	fact.Iota = iota0 + mat.Dot(f.phiU, pol.K0)
	if sto {
		fact.Xi += km.Qtt
		fact.Eta += kr.H
	}
	if stoNext {
		fact.Rho += km.Qtt
		fact.Iota -= kr.H
	}
	if sto && stoNext {
		fact.Chi -= km.Qtt
	}

	return nil
}

// BackwardImpulse eliminates an impulse sub-stage. The impulse has no
// control unknowns and no local time step, so there is no policy and the
// channels of the entered phase pass through unrotated (the rotation
// happens at the pre-event stage step). propagateSTO reports whether any
// bounding event of the entered phase is free.
func (f *Factorizer) BackwardImpulse(next *SplitRiccatiFactorization, km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual,
	fact *SplitRiccatiFactorization, propagateSTO bool) {
	nx := f.dims.Dimx

	f.vpf.MulVec(next.P, kr.Fx)
	f.vpf.SubVec(f.vpf, next.S)
	f.atp.Mul(km.Fxx.T(), next.P)
	f.pd.Mul(f.atp, km.Fxx)
	f.pd.Add(f.pd, km.Qxx)
	for i := 0; i < nx; i++ {
		for j := i; j < nx; j++ {
			fact.P.SetSym(i, j, 0.5*(f.pd.At(i, j)+f.pd.At(j, i)))
		}
	}
	f.vx.MulVec(km.Fxx.T(), f.vpf)
	fact.S.AddVec(f.vx, kr.Lx)
	fact.S.ScaleVec(-1, fact.S)

	fact.setZeroSTO()
	if propagateSTO {
		fact.Psi.MulVec(km.Fxx.T(), next.Psi)
		fact.Phi.MulVec(km.Fxx.T(), next.Phi)
		fact.Xi, fact.Chi, fact.Rho = next.Xi, next.Chi, next.Rho
		fact.Eta, fact.Iota = next.Eta, next.Iota
	}
}

// BackwardSwitching folds the condensed switching constraint of an
// upcoming impulse into the factorization and policy of the constraint's
// stage. It must be called immediately after the Backward step of that
// stage: it reuses the control-Hessian Cholesky factor of that step.
//
// With S = D G⁻¹ Dᵀ the multiplier recovery is dxi = M dx + Mv with
// M = S⁻¹(C + DK), Mv = S⁻¹(e + Dk); the policy and value function are
// projected onto the constraint manifold in place.
func (f *Factorizer) BackwardSwitching(sc *ocp.SwitchingConstraint, fact *SplitRiccatiFactorization,
	pol *LQRPolicy, sw *SwitchingFactorization) error {
	ni := sc.Dimension()
	if ni == 0 {
		sw.SetZero()

		return nil
	}
	nx, nu := f.dims.Dimx, f.dims.Dimu
	c, dm, e := sc.C(), sc.D(), sc.E()

	gid := f.gid.Slice(0, nu, 0, ni).(*mat.Dense)
	if err := f.chol.SolveTo(gid, dm.T()); err != nil {
		return ErrSingularBlock
	}
	sd := f.sd.Slice(0, ni, 0, ni).(*mat.Dense)
	sd.Mul(dm, gid)
	ss := f.ss.SliceSym(0, ni).(*mat.SymDense)
	for i := 0; i < ni; i++ {
		for j := i; j < ni; j++ {
			ss.SetSym(i, j, 0.5*(sd.At(i, j)+sd.At(j, i)))
		}
	}
	if ok := f.cholS.Factorize(ss); !ok {
		return ErrSingularBlock
	}

	cdk := f.cdk.Slice(0, ni, 0, nx).(*mat.Dense)
	cdk.Mul(dm, pol.K)
	cdk.Add(cdk, c)
	sw.Dimi = ni
	m := sw.M.Slice(0, ni, 0, nx).(*mat.Dense)
	if err := f.cholS.SolveTo(m, cdk); err != nil {
		return ErrSingularBlock
	}
	mv := sw.Mv.SliceVec(0, ni).(*mat.VecDense)
	ev := f.ev.SliceVec(0, ni).(*mat.VecDense)
	ev.MulVec(dm, pol.K0)
	ev.AddVec(ev, e)
	if err := f.cholS.SolveVecTo(mv, ev); err != nil {
		return ErrSingularBlock
	}

	// project the policy onto the constraint manifold
	f.kc.Mul(gid, m)
	pol.K.Sub(pol.K, f.kc)
	f.vu.MulVec(gid, mv)
	pol.K0.SubVec(pol.K0, f.vu)

	// value-function correction
	f.pc.Mul(cdk.T(), m)
	for i := 0; i < nx; i++ {
		for j := i; j < nx; j++ {
			fact.P.SetSym(i, j, fact.P.At(i, j)+0.5*(f.pc.At(i, j)+f.pc.At(j, i)))
		}
	}
	f.vx.MulVec(cdk.T(), mv)
	fact.S.SubVec(fact.S, f.vx)

	// switching-time channels see the constraint through D·T and D·W
	dtv := f.dtv.SliceVec(0, ni).(*mat.VecDense)
	dwv := f.dwv.SliceVec(0, ni).(*mat.VecDense)
	dtv.MulVec(dm, pol.T)
	dwv.MulVec(dm, pol.W)
	st := f.ev2.SliceVec(0, ni).(*mat.VecDense)
	sw2 := f.ev3.SliceVec(0, ni).(*mat.VecDense)
	if err := f.cholS.SolveVecTo(st, dtv); err != nil {
		return ErrSingularBlock
	}
	if err := f.cholS.SolveVecTo(sw2, dwv); err != nil {
		return ErrSingularBlock
	}
	f.vu.MulVec(gid, st)
	pol.T.SubVec(pol.T, f.vu)
	f.vu.MulVec(gid, sw2)
	pol.W.SubVec(pol.W, f.vu)
	f.vx.MulVec(cdk.T(), st)
	fact.Psi.AddVec(fact.Psi, f.vx)
	f.vx.MulVec(cdk.T(), sw2)
	fact.Phi.AddVec(fact.Phi, f.vx)
	fact.Xi += mat.Dot(dtv, st)
	fact.Chi += mat.Dot(dtv, sw2)
	fact.Rho += mat.Dot(dwv, sw2)
	fact.Eta -= mat.Dot(dtv, mv)
	fact.Iota -= mat.Dot(dwv, mv)

	return nil
}

// ComputeSTOPolicy derives the affine switching-time law of the event
// ending the phase that starts at fact's sub-stage, from the stationarity
// of the value model in the ending time. A curvature at or below the
// tolerance means the event time is not determined by this iteration's
// quadratic model.
func (f *Factorizer) ComputeSTOPolicy(fact *SplitRiccatiFactorization, pol *STOPolicy) error {
	if fact.Rho <= stoCurvatureTol {
		return ErrSingularBlock
	}
	pol.DtsDx.ScaleVec(-1/fact.Rho, fact.Phi)
	pol.DtsDts = -fact.Chi / fact.Rho
	pol.Dts0 = fact.Iota / fact.Rho

	return nil
}

// ForwardStage propagates the state direction through one regular
// sub-stage using its (possibly constraint-projected) policy. The event
// time steps of the owning phase must already be set on d.
func (f *Factorizer) ForwardStage(km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual, pol *LQRPolicy,
	d, dNext *ocp.SplitDirection, sto, stoNext bool) {
	d.Du.MulVec(pol.K, d.Dx)
	d.Du.AddVec(d.Du, pol.K0)
	if sto {
		d.Du.AddScaledVec(d.Du, d.Dts, pol.T)
	}
	if stoNext {
		d.Du.AddScaledVec(d.Du, d.DtsNext, pol.W)
	}
	dNext.Dx.MulVec(km.Fxx, d.Dx)
	f.vx.MulVec(km.Fxu, d.Du)
	dNext.Dx.AddVec(dNext.Dx, f.vx)
	dNext.Dx.AddVec(dNext.Dx, kr.Fx)
	if sto {
		dNext.Dx.AddScaledVec(dNext.Dx, d.Dts, km.Ft)
	}
	if stoNext {
		dNext.Dx.AddScaledVec(dNext.Dx, -d.DtsNext, km.Ft)
	}
}

// ForwardImpulse propagates the state direction through the velocity jump
// of an impulse sub-stage (no control).
func (f *Factorizer) ForwardImpulse(km *ocp.SplitKKTMatrix, kr *ocp.SplitKKTResidual, d, dNext *ocp.SplitDirection) {
	dNext.Dx.MulVec(km.Fxx, d.Dx)
	dNext.Dx.AddVec(dNext.Dx, kr.Fx)
}

// CostateDirection recovers the costate direction of one sub-stage from
// its factorization and state direction. Safe to call concurrently for
// distinct sub-stages: it touches no shared scratch.
func CostateDirection(fact *SplitRiccatiFactorization, d *ocp.SplitDirection, sto, stoNext bool) {
	d.Dlmd.MulVec(fact.P, d.Dx)
	d.Dlmd.SubVec(d.Dlmd, fact.S)
	if sto {
		d.Dlmd.AddScaledVec(d.Dlmd, d.Dts, fact.Psi)
	}
	if stoNext {
		d.Dlmd.AddScaledVec(d.Dlmd, d.DtsNext, fact.Phi)
	}
}

// MultiplierDirection recovers the switching-constraint multiplier
// direction of the constraint's stage. Safe to call concurrently for
// distinct sub-stages.
func MultiplierDirection(sw *SwitchingFactorization, d *ocp.SplitDirection) {
	if sw.Dimi == 0 {
		d.Dimi = 0

		return
	}
	d.Dimi = sw.Dimi
	_, nx := sw.M.Dims()
	m := sw.M.Slice(0, sw.Dimi, 0, nx).(*mat.Dense)
	dxi := d.ActiveDxi()
	dxi.MulVec(m, d.Dx)
	dxi.AddVec(dxi, sw.Mv.SliceVec(0, sw.Dimi))
}

// SwitchingTimeDirection evaluates an event's switching-time law at the
// first sub-stage of the phase the event terminates, writing the ending
// time step of that sub-stage.
func SwitchingTimeDirection(pol *STOPolicy, d *ocp.SplitDirection) {
	d.DtsNext = mat.Dot(pol.DtsDx, d.Dx) + pol.DtsDts*d.Dts + pol.Dts0
}
