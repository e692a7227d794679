package sto

import (
	"math"

	"github.com/ruihuang1124/robotoc/hybrid"
	"github.com/ruihuang1124/robotoc/ocp"
)

// phaseHamiltonians sums the Hamiltonian residuals of every sub-stage per
// contact phase. Aux and lift sub-stages belong to the phase they enter;
// impulse sub-stages are instantaneous and carry no Hamiltonian.
func phaseHamiltonians(grid *hybrid.TimeDiscretization, kr *ocp.KKTResidual) []float64 {
	h := make([]float64, grid.NumContactPhases())
	for i := 0; i < grid.N(); i++ {
		h[grid.ContactPhase(i)] += kr.Stages[i].H
	}
	for e := 0; e < grid.NImpulse(); e++ {
		h[grid.ContactPhaseAfterImpulse(e)] += kr.Aux[e].H
	}
	for l := 0; l < grid.NLift(); l++ {
		h[grid.ContactPhaseAfterLift(l)] += kr.Lift[l].H
	}

	return h
}

// KKTError returns the switching-time KKT residual: the Euclidean norm of
// the phase-Hamiltonian jumps across the STO-enabled events. A free event
// time is stationary exactly when the Hamiltonian is continuous across it,
// so the result is identically zero when no event time is free.
func KKTError(grid *hybrid.TimeDiscretization, kr *ocp.KKTResidual) float64 {
	h := phaseHamiltonians(grid, kr)
	sq := 0.0
	for e := 0; e < grid.NumDiscreteEvents(); e++ {
		if !grid.IsSTOEnabledEvent(e) {
			continue
		}
		diff := h[e] - h[e+1]
		sq += diff * diff
	}

	return math.Sqrt(sq)
}

// eventTimeSteps gathers the Newton step of every event time in global
// event order. The step of an event is carried by the sub-stage entering
// the phase it opens.
func eventTimeSteps(grid *hybrid.TimeDiscretization, d *ocp.Direction) []float64 {
	steps := make([]float64, grid.NumDiscreteEvents())
	imp, lft := 0, 0
	for e := range steps {
		if grid.EventType(e) == hybrid.ImpulseEvent {
			steps[e] = d.Aux[imp].Dts
			imp++
		} else {
			steps[e] = d.Lift[lft].Dts
			lft++
		}
	}

	return steps
}

// Integrate advances the STO-enabled event times of the contact sequence
// along the Newton direction with the given primal step size. Events with
// fixed times are untouched. The caller re-discretizes afterwards; the
// sequence defers chronology checks to that point.
func Integrate(grid *hybrid.TimeDiscretization, d *ocp.Direction, primalStep float64, seq *hybrid.ContactSequence) {
	for e := 0; e < grid.NImpulse(); e++ {
		if grid.IsSTOEnabledImpulse(e) {
			seq.SetImpulseTime(e, grid.ImpulseTime(e)+primalStep*d.Aux[e].Dts)
		}
	}
	for l := 0; l < grid.NLift(); l++ {
		if grid.IsSTOEnabledLift(l) {
			seq.SetLiftTime(l, grid.LiftTime(l)+primalStep*d.Lift[l].Dts)
		}
	}
}
