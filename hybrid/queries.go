package hybrid

// This file is the O(1) query surface of TimeDiscretization. Every method
// is a table lookup; indices outside the current grid panic (programmer
// error — the grid structure and the caller's KKT/direction sets must
// already agree, see the package doc).

// N returns the number of regular time stages on the horizon.
// Stage N is terminal and has no control/dynamics block.
func (d *TimeDiscretization) N() int { return d.n }

// NIdeal returns the ideal grid count the horizon was configured with.
func (d *TimeDiscretization) NIdeal() int { return d.nIdeal }

// NImpulse returns the number of impulse events on the horizon.
func (d *TimeDiscretization) NImpulse() int { return d.nImpulse }

// NLift returns the number of lift events on the horizon.
func (d *TimeDiscretization) NLift() int { return d.nLift }

// NPhase returns the grid count of the given contact phase.
func (d *TimeDiscretization) NPhase(phase int) int { return d.nPhase[phase] }

// NumContactPhases returns the number of contact phases on the horizon.
func (d *TimeDiscretization) NumContactPhases() int { return d.nEvents + 1 }

// NumDiscreteEvents returns the number of discrete events on the horizon.
func (d *TimeDiscretization) NumDiscreteEvents() int { return d.nEvents }

// ReservedNumDiscreteEvents returns the reserved event arena capacity.
func (d *TimeDiscretization) ReservedNumDiscreteEvents() int { return d.reserved }

// Method returns the active discretization policy.
func (d *TimeDiscretization) Method() DiscretizationMethod { return d.method }

// IsTractable reports whether the last Discretize call produced a
// consistent hybrid structure. Sweeps must refuse to run when false.
func (d *TimeDiscretization) IsTractable() bool { return d.tractable }

// IsSwitchingTimeConsistent reports whether the event times used by the
// last Discretize call were chronologically consistent within tolerance.
func (d *TimeDiscretization) IsSwitchingTimeConsistent() bool { return d.stoConsistent }

// T0 returns the initial time of the horizon.
func (d *TimeDiscretization) T0() float64 { return d.t0 }

// Tf returns the final time of the horizon.
func (d *TimeDiscretization) Tf() float64 { return d.t0 + d.horizon }

// DtIdeal returns the ideal (uniform) time step.
func (d *TimeDiscretization) DtIdeal() float64 { return d.dtIdeal }

// DtMax returns the maximum time step over all sub-stages.
func (d *TimeDiscretization) DtMax() float64 { return d.dtMax }

// ContactPhase returns the contact phase owning regular stage i.
func (d *TimeDiscretization) ContactPhase(i int) int {
	if i == d.n {
		return d.grid[d.n].Phase
	}

	return d.phaseOf[i]
}

// ContactPhaseAfterImpulse returns the phase entered by impulse ordinal k.
func (d *TimeDiscretization) ContactPhaseAfterImpulse(k int) int {
	return d.gridImp[k].Phase
}

// ContactPhaseAfterLift returns the phase entered by lift ordinal l.
func (d *TimeDiscretization) ContactPhaseAfterLift(l int) int {
	return d.gridLft[l].Phase
}

// IsStageBeforeImpulse reports whether stage i immediately precedes an
// impulse event.
func (d *TimeDiscretization) IsStageBeforeImpulse(i int) bool {
	return i < d.n && d.impAfter[i] >= 0
}

// IsStageBeforeLift reports whether stage i immediately precedes a lift
// event.
func (d *TimeDiscretization) IsStageBeforeLift(i int) bool {
	return i < d.n && d.liftAfter[i] >= 0
}

// IsStageAfterImpulse reports whether stage i immediately follows an
// impulse event's aux sub-stage.
func (d *TimeDiscretization) IsStageAfterImpulse(i int) bool {
	return i > 0 && d.impAfter[i-1] >= 0
}

// IsStageAfterLift reports whether stage i immediately follows a lift
// sub-stage.
func (d *TimeDiscretization) IsStageAfterLift(i int) bool {
	return i > 0 && d.liftAfter[i-1] >= 0
}

// ImpulseIndexAfterStage returns the impulse ordinal following stage i,
// or -1 if stage i does not precede an impulse.
func (d *TimeDiscretization) ImpulseIndexAfterStage(i int) int { return d.impAfter[i] }

// LiftIndexAfterStage returns the lift ordinal following stage i, or -1.
func (d *TimeDiscretization) LiftIndexAfterStage(i int) int { return d.liftAfter[i] }

// StageBeforeImpulse returns the regular stage preceding impulse ordinal k.
func (d *TimeDiscretization) StageBeforeImpulse(k int) int { return d.stageBeImp[k] }

// StageAfterImpulse returns the regular stage following impulse ordinal k.
func (d *TimeDiscretization) StageAfterImpulse(k int) int { return d.stageBeImp[k] + 1 }

// StageBeforeLift returns the regular stage preceding lift ordinal l.
func (d *TimeDiscretization) StageBeforeLift(l int) int { return d.stageBeLft[l] }

// StageAfterLift returns the regular stage following lift ordinal l.
func (d *TimeDiscretization) StageAfterLift(l int) int { return d.stageBeLft[l] + 1 }

// ImpulseTime returns the time of impulse ordinal k.
func (d *TimeDiscretization) ImpulseTime(k int) float64 { return d.gridImp[k].T }

// LiftTime returns the time of lift ordinal l.
func (d *TimeDiscretization) LiftTime(l int) float64 { return d.gridLft[l].T }

// GridInfo returns the grid point of regular stage i (0..N).
func (d *TimeDiscretization) GridInfo(i int) GridInfo { return d.grid[i] }

// GridInfoImpulse returns the grid point of impulse ordinal k.
func (d *TimeDiscretization) GridInfoImpulse(k int) GridInfo { return d.gridImp[k] }

// GridInfoAux returns the grid point of the aux sub-stage of impulse k.
func (d *TimeDiscretization) GridInfoAux(k int) GridInfo { return d.gridAux[k] }

// GridInfoLift returns the grid point of the lift sub-stage of lift l.
func (d *TimeDiscretization) GridInfoLift(l int) GridInfo { return d.gridLft[l] }

// EventType returns the type of global event e (time order).
func (d *TimeDiscretization) EventType(e int) DiscreteEventType { return d.eventTypes[e] }

// EventIndexImpulse returns the global event index of impulse ordinal k.
func (d *TimeDiscretization) EventIndexImpulse(k int) int {
	n := 0
	for e, t := range d.eventTypes {
		if t == ImpulseEvent {
			if n == k {
				return e
			}
			n++
		}
	}
	panic("hybrid: impulse index out of range")
}

// EventIndexLift returns the global event index of lift ordinal l.
func (d *TimeDiscretization) EventIndexLift(l int) int {
	n := 0
	for e, t := range d.eventTypes {
		if t == LiftEvent {
			if n == l {
				return e
			}
			n++
		}
	}
	panic("hybrid: lift index out of range")
}

// IsSTOEnabledEvent reports whether global event e has a free time.
func (d *TimeDiscretization) IsSTOEnabledEvent(e int) bool { return d.stoEvent[e] }

// IsSTOEnabledImpulse reports whether impulse ordinal k has a free time.
func (d *TimeDiscretization) IsSTOEnabledImpulse(k int) bool { return d.stoImpulse[k] }

// IsSTOEnabledLift reports whether lift ordinal l has a free time.
func (d *TimeDiscretization) IsSTOEnabledLift(l int) bool { return d.stoLift[l] }

// IsSTOEnabledPhase reports whether the duration of the given phase is a
// free decision variable (either bounding event time is STO-enabled).
func (d *TimeDiscretization) IsSTOEnabledPhase(phase int) bool {
	return phase < len(d.stoPhase) && d.stoPhase[phase]
}

// IsSTOEnabledNextPhase reports whether the phase after the given one has
// a free duration.
func (d *TimeDiscretization) IsSTOEnabledNextPhase(phase int) bool {
	return d.isSTOEnabledNext(phase)
}

// TimeSteps returns the step of every sub-stage in time order: each
// regular stage's step, with a zero step for impulse sub-stages and the
// aux/lift step spliced in after the pre-event stage.
func (d *TimeDiscretization) TimeSteps() []float64 {
	steps := make([]float64, 0, d.n+2*d.nImpulse+d.nLift)
	for i := 0; i < d.n; i++ {
		steps = append(steps, d.grid[i].Dt)
		if k := d.impAfter[i]; k >= 0 {
			steps = append(steps, 0, d.gridAux[k].Dt)
		} else if l := d.liftAfter[i]; l >= 0 {
			steps = append(steps, d.gridLft[l].Dt)
		}
	}

	return steps
}

// TimePoints returns the time of every sub-stage in time order, ending
// with the terminal grid point.
func (d *TimeDiscretization) TimePoints() []float64 {
	points := make([]float64, 0, d.n+1+2*d.nImpulse+d.nLift)
	for i := 0; i < d.n; i++ {
		points = append(points, d.grid[i].T)
		if k := d.impAfter[i]; k >= 0 {
			points = append(points, d.gridImp[k].T, d.gridAux[k].T)
		} else if l := d.liftAfter[i]; l >= 0 {
			points = append(points, d.gridLft[l].T)
		}
	}
	points = append(points, d.grid[d.n].T)

	return points
}
