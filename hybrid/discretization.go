package hybrid

import "math"

// DiscretizationMethod selects how discrete events are merged into the grid.
type DiscretizationMethod int

const (
	// GridBased keeps the ideal uniform grid fixed; an event is absorbed
	// into the grid interval that contains it, shortening the local step
	// of the stage just before the event. Changing an event time may
	// change which stage precedes it.
	GridBased DiscretizationMethod = iota

	// PhaseBased fixes the number of stages per contact phase between
	// explicit MeshRefinement calls; event times may then move
	// continuously within their phase without changing the stage count.
	// Required for switching-time optimization.
	PhaseBased
)

// sqrtEps is the time-comparison tolerance base (sqrt of float64 machine
// epsilon). Two events closer than sqrtEps*T are considered colliding.
const sqrtEps = 1.4901161193847656e-08

// minStageSeparation is the minimum number of regular stages between two
// consecutive discrete events. One shared stage would make a single stage
// both "after event k" and "before event k+1", which the backward sweep's
// chained eliminations cannot splice.
const minStageSeparation = 2

// GridInfo describes one grid point of the hybrid discretization.
type GridInfo struct {
	// T is the time of the grid point; Dt the step to its successor.
	T, Dt float64

	// Phase is the owning contact phase; Stage the owning regular stage
	// index (for impulse/aux/lift grids, the stage just before the event).
	Phase, Stage int

	// STO reports whether the owning phase's duration is a free decision
	// variable; STONext the same for the following phase.
	STO, STONext bool
}

// Option configures a TimeDiscretization.
type Option func(*TimeDiscretization)

// WithMethod selects the discretization policy. Default is GridBased.
func WithMethod(m DiscretizationMethod) Option {
	return func(d *TimeDiscretization) { d.method = m }
}

// TimeDiscretization builds and owns the hybrid stage/phase/event structure
// of one horizon. All query methods are O(1) table lookups; out-of-range
// indices panic (programmer error), matching the package error policy.
type TimeDiscretization struct {
	horizon float64
	dtIdeal float64
	eps     float64
	nIdeal  int
	method  DiscretizationMethod

	t0            float64
	n             int
	nImpulse      int
	nLift         int
	nEvents       int
	reserved      int
	dtMax         float64
	tractable     bool
	stoConsistent bool

	nPhase     []int
	phaseOf    []int // regular stage -> phase
	impAfter   []int // regular stage -> impulse ordinal after it, or -1
	liftAfter  []int // regular stage -> lift ordinal after it, or -1
	stageBeImp []int // impulse ordinal -> stage before it
	stageBeLft []int // lift ordinal -> stage before it
	eventTypes []DiscreteEventType
	stoEvent   []bool
	stoImpulse []bool
	stoLift    []bool
	stoPhase   []bool

	grid    []GridInfo // regular stages 0..N
	gridImp []GridInfo // impulse ordinal
	gridAux []GridInfo // impulse ordinal
	gridLft []GridInfo // lift ordinal
}

// NewTimeDiscretization prepares a discretization of a horizon of length T
// split into N ideal stages, with arenas reserved for reservedEvents
// discrete events. Configuration errors fail fast.
func NewTimeDiscretization(T float64, N, reservedEvents int, opts ...Option) (*TimeDiscretization, error) {
	if T <= 0 {
		return nil, ErrNonPositiveHorizon
	}
	if N <= 0 {
		return nil, ErrNonPositiveStages
	}
	if reservedEvents < 0 {
		return nil, ErrNegativeReserve
	}
	d := &TimeDiscretization{
		horizon:    T,
		dtIdeal:    T / float64(N),
		eps:        sqrtEps * T,
		nIdeal:     N,
		method:     GridBased,
		reserved:   reservedEvents,
		phaseOf:    make([]int, N),
		impAfter:   make([]int, N),
		liftAfter:  make([]int, N),
		nPhase:     make([]int, 0, reservedEvents+1),
		stageBeImp: make([]int, 0, reservedEvents),
		stageBeLft: make([]int, 0, reservedEvents),
		eventTypes: make([]DiscreteEventType, 0, reservedEvents),
		stoEvent:   make([]bool, 0, reservedEvents),
		stoImpulse: make([]bool, 0, reservedEvents),
		stoLift:    make([]bool, 0, reservedEvents),
		stoPhase:   make([]bool, 0, reservedEvents+1),
		grid:       make([]GridInfo, N+1),
		gridImp:    make([]GridInfo, 0, reservedEvents),
		gridAux:    make([]GridInfo, 0, reservedEvents),
		gridLft:    make([]GridInfo, 0, reservedEvents),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// activeEvent is one event that actually falls inside the current horizon.
type activeEvent struct {
	eventType DiscreteEventType
	time      float64
	sto       bool
}

// collectEvents gathers the in-horizon events of seq in time order and
// validates chronology. Events at or beyond the final time are outside the
// grid and ignored (receding-horizon drivers routinely carry them).
func (d *TimeDiscretization) collectEvents(seq *ContactSequence, t float64) ([]activeEvent, bool) {
	tf := t + d.horizon
	events := make([]activeEvent, 0, seq.NumDiscreteEvents())
	prev := t
	for e := 0; e < seq.NumDiscreteEvents(); e++ {
		te := seq.EventTime(e)
		if te >= tf-d.eps {
			continue
		}
		if te <= prev+d.eps {
			// out of order, colliding, or at/before the horizon start
			return nil, false
		}
		prev = te
		events = append(events, activeEvent{
			eventType: seq.EventType(e),
			time:      te,
			sto:       seq.IsSTOEnabledEvent(e),
		})
	}
	if len(events) > d.reserved {
		return nil, false
	}

	return events, true
}

// Discretize builds the hybrid grid from the contact sequence and the
// initial time t. On a malformed sequence the grid is marked not tractable
// and ErrNotTractable is returned; no partial structure is exposed.
func (d *TimeDiscretization) Discretize(seq *ContactSequence, t float64) error {
	if seq == nil {
		return ErrNilContactSequence
	}
	events, ok := d.collectEvents(seq, t)
	if !ok {
		d.tractable = false

		return ErrNotTractable
	}
	d.t0 = t
	if d.method == GridBased {
		ok = d.countGridBased(events, t)
	} else {
		ok = d.countPhaseBased(events, t, len(d.nPhase) != len(events)+1)
	}
	d.tractable = ok
	if !ok {
		return ErrNotTractable
	}
	d.fillTables(events)
	d.stoConsistent = true

	return nil
}

// MeshRefinement reallocates the per-phase stage counts to balance
// per-phase resolution while keeping the total stage count. Rebalancing
// only applies to PhaseBased grids; a GridBased grid has no per-phase
// counts to move, so the call degrades to a plain Discretize against the
// current sequence.
func (d *TimeDiscretization) MeshRefinement(seq *ContactSequence, t float64) error {
	if seq == nil {
		return ErrNilContactSequence
	}
	if d.method == GridBased {
		return d.Discretize(seq, t)
	}
	events, ok := d.collectEvents(seq, t)
	if !ok {
		d.tractable = false

		return ErrNotTractable
	}
	d.t0 = t
	d.tractable = d.countPhaseBased(events, t, true)
	if !d.tractable {
		return ErrNotTractable
	}
	d.fillTables(events)
	d.stoConsistent = true

	return nil
}

// countGridBased places each event into the ideal-grid interval that
// contains it. The stage owning that interval becomes the stage before the
// event; its step shrinks to reach the event, and the aux/lift sub-stage
// carries the remainder of the interval. Event times are nudged off grid
// points by the collision tolerance to keep every step strictly positive.
func (d *TimeDiscretization) countGridBased(events []activeEvent, t float64) bool {
	n := d.nIdeal
	d.n = n
	d.resetEventTables(len(events))
	for i := 0; i <= n; i++ {
		d.grid[i] = GridInfo{T: t + float64(i)*d.dtIdeal, Dt: d.dtIdeal, Stage: i}
	}
	d.grid[n].Dt = 0
	prevStage := -minStageSeparation
	for k := range events {
		te := events[k].time
		sb := int(math.Floor((te - t) / d.dtIdeal))
		if sb >= n {
			sb = n - 1
		}
		lo := d.grid[sb].T + d.eps
		hi := d.grid[sb].T + d.dtIdeal - d.eps
		te = math.Min(math.Max(te, lo), hi)
		if sb-prevStage < minStageSeparation {
			return false
		}
		prevStage = sb
		d.grid[sb].Dt = te - d.grid[sb].T
		d.placeEvent(k, events[k], sb, te, d.grid[sb].T+d.dtIdeal-te)
	}

	return true
}

// countPhaseBased lays out nPhase[p] uniform grids per contact phase.
// The aux/lift sub-stage entering a phase counts as that phase's first
// grid, so the total grid count including event grids is conserved and the
// pre-event stage always carries a full step. When refine is true (or the
// phase structure changed) the per-phase counts are reallocated
// proportionally to phase durations.
func (d *TimeDiscretization) countPhaseBased(events []activeEvent, t float64, refine bool) bool {
	numPhases := len(events) + 1
	durations := make([]float64, numPhases)
	start := t
	for k := range events {
		durations[k] = events[k].time - start
		start = events[k].time
	}
	durations[numPhases-1] = t + d.horizon - start
	for _, dur := range durations {
		if dur <= d.eps {
			return false
		}
	}
	if refine || len(d.nPhase) != numPhases {
		if !d.allocateStages(durations) {
			return false
		}
	}
	// event-entered phases spend one grid on their aux/lift sub-stage
	d.n = 0
	for p, np := range d.nPhase {
		d.n += np
		if p > 0 {
			d.n--
		}
	}
	d.resetEventTables(len(events))
	stage := 0
	tp := t
	for p := 0; p < numPhases; p++ {
		dtp := durations[p] / float64(d.nPhase[p])
		first := 0
		if p > 0 {
			// grid 0 of this phase is the aux/lift sub-stage at the event
			first = 1
		}
		for g := first; g < d.nPhase[p]; g++ {
			d.grid[stage] = GridInfo{T: tp + float64(g)*dtp, Dt: dtp, Stage: stage, Phase: p}
			stage++
		}
		tp += durations[p]
		if p < len(events) {
			next := durations[p+1] / float64(d.nPhase[p+1])
			d.placeEvent(p, events[p], stage-1, tp, next)
		}
	}
	d.grid[d.n] = GridInfo{T: t + d.horizon, Stage: d.n}

	return true
}

// allocateStages distributes the ideal grid count over phases
// proportionally to their durations. Event-entered phases need enough
// grids for their aux/lift sub-stage plus the regular-stage separation
// that keeps consecutive events from sharing a stage.
func (d *TimeDiscretization) allocateStages(durations []float64) bool {
	numPhases := len(durations)
	minOf := func(p int) int {
		switch {
		case p == 0 && numPhases == 1:
			return 1
		case p == 0:
			return 1
		case p < numPhases-1:
			// aux/lift grid + minStageSeparation regular stages
			return 1 + minStageSeparation
		default:
			// aux/lift grid + at least one regular stage
			return 2
		}
	}
	d.nPhase = d.nPhase[:0]
	total := 0
	for p := 0; p < numPhases; p++ {
		np := int(math.Round(float64(d.nIdeal) * durations[p] / d.horizon))
		if m := minOf(p); np < m {
			np = m
		}
		d.nPhase = append(d.nPhase, np)
		total += np
	}
	// rebalance to hold the total grid count
	for total > d.nIdeal {
		p, finest := -1, 0.0
		for q := range d.nPhase {
			if d.nPhase[q] <= minOf(q) {
				continue
			}
			res := durations[q] / float64(d.nPhase[q])
			if p < 0 || res < finest {
				p, finest = q, res
			}
		}
		if p < 0 {
			return false
		}
		d.nPhase[p]--
		total--
	}
	for total < d.nIdeal {
		p, coarsest := 0, 0.0
		for q := range d.nPhase {
			res := durations[q] / float64(d.nPhase[q])
			if res > coarsest {
				p, coarsest = q, res
			}
		}
		d.nPhase[p]++
		total++
	}

	return true
}

// resetEventTables clears the per-stage and per-event lookup tables for a
// fresh count of events.
func (d *TimeDiscretization) resetEventTables(numEvents int) {
	for i := 0; i < d.n; i++ {
		d.phaseOf[i] = 0
		d.impAfter[i] = -1
		d.liftAfter[i] = -1
	}
	d.nEvents = numEvents
	d.nImpulse, d.nLift = 0, 0
	d.stageBeImp = d.stageBeImp[:0]
	d.stageBeLft = d.stageBeLft[:0]
	d.eventTypes = d.eventTypes[:0]
	d.stoEvent = d.stoEvent[:0]
	d.stoImpulse = d.stoImpulse[:0]
	d.stoLift = d.stoLift[:0]
	d.gridImp = d.gridImp[:0]
	d.gridAux = d.gridAux[:0]
	d.gridLft = d.gridLft[:0]
}

// placeEvent records event k (preceded by stage sb, occurring at te, with
// the aux/lift sub-stage spanning dtAux) into the lookup tables.
func (d *TimeDiscretization) placeEvent(k int, ev activeEvent, sb int, te, dtAux float64) {
	d.eventTypes = append(d.eventTypes, ev.eventType)
	d.stoEvent = append(d.stoEvent, ev.sto)
	info := GridInfo{T: te, Dt: dtAux, Stage: sb, Phase: k + 1}
	if ev.eventType == ImpulseEvent {
		d.impAfter[sb] = d.nImpulse
		d.stageBeImp = append(d.stageBeImp, sb)
		d.stoImpulse = append(d.stoImpulse, ev.sto)
		d.gridImp = append(d.gridImp, GridInfo{T: te, Stage: sb, Phase: k + 1})
		d.gridAux = append(d.gridAux, info)
		d.nImpulse++
	} else {
		d.liftAfter[sb] = d.nLift
		d.stageBeLft = append(d.stageBeLft, sb)
		d.stoLift = append(d.stoLift, ev.sto)
		d.gridLft = append(d.gridLft, info)
		d.nLift++
	}
}

// fillTables derives the phase-of-stage table, the per-phase stage counts
// for GridBased grids, the STO flags and the maximum step.
func (d *TimeDiscretization) fillTables(events []activeEvent) {
	numPhases := len(events) + 1
	// phase of a regular stage = number of events strictly before it
	phase := 0
	for i := 0; i < d.n; i++ {
		d.phaseOf[i] = phase
		if d.impAfter[i] >= 0 || d.liftAfter[i] >= 0 {
			phase++
		}
	}
	d.grid[d.n].Phase = phase
	if d.method == GridBased {
		d.nPhase = d.nPhase[:0]
		counts := make([]int, numPhases)
		for i := 0; i < d.n; i++ {
			counts[d.phaseOf[i]]++
		}
		d.nPhase = append(d.nPhase, counts...)
	}
	// a phase duration is free iff either bounding event time is free
	d.stoPhase = d.stoPhase[:0]
	for p := 0; p < numPhases; p++ {
		sto := false
		if p > 0 && d.stoEvent[p-1] {
			sto = true
		}
		if p < len(events) && d.stoEvent[p] {
			sto = true
		}
		d.stoPhase = append(d.stoPhase, sto)
	}
	d.dtMax = 0
	for i := 0; i <= d.n; i++ {
		if i < d.n {
			d.grid[i].Phase = d.phaseOf[i]
		} else {
			d.grid[i].Phase = phase
		}
		d.grid[i].STO = d.stoPhase[d.grid[i].Phase]
		d.grid[i].STONext = d.isSTOEnabledNext(d.grid[i].Phase)
		if d.grid[i].Dt > d.dtMax {
			d.dtMax = d.grid[i].Dt
		}
	}
	for k := range d.gridImp {
		d.gridImp[k].STO = d.stoPhase[d.gridImp[k].Phase]
		d.gridImp[k].STONext = d.isSTOEnabledNext(d.gridImp[k].Phase)
		d.gridAux[k].STO = d.gridImp[k].STO
		d.gridAux[k].STONext = d.gridImp[k].STONext
		if d.gridAux[k].Dt > d.dtMax {
			d.dtMax = d.gridAux[k].Dt
		}
	}
	for l := range d.gridLft {
		d.gridLft[l].STO = d.stoPhase[d.gridLft[l].Phase]
		d.gridLft[l].STONext = d.isSTOEnabledNext(d.gridLft[l].Phase)
		if d.gridLft[l].Dt > d.dtMax {
			d.dtMax = d.gridLft[l].Dt
		}
	}
}

func (d *TimeDiscretization) isSTOEnabledNext(phase int) bool {
	return phase+1 < len(d.stoPhase) && d.stoPhase[phase+1]
}
