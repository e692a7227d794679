package hybrid

// DiscreteEventType tags a contact transition.
type DiscreteEventType int

const (
	// ImpulseEvent closes at least one contact and imposes an
	// instantaneous velocity-jump equality constraint.
	ImpulseEvent DiscreteEventType = iota

	// LiftEvent opens previously active contacts with no state jump.
	LiftEvent
)

// String implements fmt.Stringer.
func (t DiscreteEventType) String() string {
	if t == ImpulseEvent {
		return "Impulse"
	}

	return "Lift"
}

// ContactStatus records which contact points are active.
// The zero value has no contacts; use NewContactStatus.
type ContactStatus struct {
	active []bool
}

// NewContactStatus builds a status from per-contact activity flags.
func NewContactStatus(active ...bool) ContactStatus {
	s := ContactStatus{active: make([]bool, len(active))}
	copy(s.active, active)

	return s
}

// NumContacts returns the number of contact points.
func (s ContactStatus) NumContacts() int { return len(s.active) }

// IsActive reports whether contact i is active.
func (s ContactStatus) IsActive(i int) bool { return s.active[i] }

// HasActiveContacts reports whether any contact is active.
func (s ContactStatus) HasActiveContacts() bool {
	for _, a := range s.active {
		if a {
			return true
		}
	}

	return false
}

// classify derives the event type of the transition s -> next.
// Any contact switching inactive->active makes it an impulse; pure
// deactivation is a lift; no change is an error.
func (s ContactStatus) classify(next ContactStatus) (DiscreteEventType, error) {
	if len(s.active) != len(next.active) {
		return 0, ErrContactMismatch
	}
	changed := false
	for i := range s.active {
		if !s.active[i] && next.active[i] {
			return ImpulseEvent, nil
		}
		if s.active[i] != next.active[i] {
			changed = true
		}
	}
	if !changed {
		return 0, ErrNoStatusChange
	}

	return LiftEvent, nil
}

// discreteEvent is one recorded contact transition.
type discreteEvent struct {
	eventType DiscreteEventType
	time      float64
	sto       bool
}

// ContactSequence is the ordered record of contact-status segments and the
// impulse/lift transitions between them. Phase p holds status p; event p
// separates phase p from phase p+1.
//
// The sequence pre-reserves capacity for a configured number of discrete
// events so that repeated Push/Pop cycles across solver iterations never
// reallocate.
type ContactSequence struct {
	statuses []ContactStatus
	events   []discreteEvent

	// per-kind ordinal -> global event index, and the reverse
	impulseEvents []int
	liftEvents    []int

	reserved int
}

// NewContactSequence starts a sequence at the given initial contact status.
// reservedEvents sizes the internal arenas; it must be non-negative.
func NewContactSequence(initial ContactStatus, reservedEvents int) (*ContactSequence, error) {
	if reservedEvents < 0 {
		return nil, ErrNegativeReserve
	}
	cs := &ContactSequence{
		statuses:      make([]ContactStatus, 1, reservedEvents+1),
		events:        make([]discreteEvent, 0, reservedEvents),
		impulseEvents: make([]int, 0, reservedEvents),
		liftEvents:    make([]int, 0, reservedEvents),
		reserved:      reservedEvents,
	}
	cs.statuses[0] = initial

	return cs, nil
}

// Push appends a new contact phase entered at eventTime. The event type is
// classified from the status change. sto marks the event time as a free
// decision variable for switching-time optimization.
func (cs *ContactSequence) Push(status ContactStatus, eventTime float64, sto bool) error {
	if n := len(cs.events); n > 0 && eventTime <= cs.events[n-1].time {
		return ErrEventOrder
	}
	eventType, err := cs.statuses[len(cs.statuses)-1].classify(status)
	if err != nil {
		return err
	}
	idx := len(cs.events)
	cs.events = append(cs.events, discreteEvent{eventType: eventType, time: eventTime, sto: sto})
	cs.statuses = append(cs.statuses, status)
	if eventType == ImpulseEvent {
		cs.impulseEvents = append(cs.impulseEvents, idx)
	} else {
		cs.liftEvents = append(cs.liftEvents, idx)
	}
	if len(cs.events) > cs.reserved {
		cs.reserved = len(cs.events)
	}

	return nil
}

// PopBack removes the most recent phase and its entering event.
// It is a no-op on a single-phase sequence.
func (cs *ContactSequence) PopBack() {
	n := len(cs.events)
	if n == 0 {
		return
	}
	if cs.events[n-1].eventType == ImpulseEvent {
		cs.impulseEvents = cs.impulseEvents[:len(cs.impulseEvents)-1]
	} else {
		cs.liftEvents = cs.liftEvents[:len(cs.liftEvents)-1]
	}
	cs.events = cs.events[:n-1]
	cs.statuses = cs.statuses[:n]
}

// PopFront removes the first phase: phase 1 becomes the new initial phase.
// Used by receding-horizon drivers once an event moves behind the horizon.
func (cs *ContactSequence) PopFront() {
	if len(cs.events) == 0 {
		return
	}
	if cs.events[0].eventType == ImpulseEvent {
		cs.impulseEvents = cs.impulseEvents[1:]
	} else {
		cs.liftEvents = cs.liftEvents[1:]
	}
	for i := range cs.impulseEvents {
		cs.impulseEvents[i]--
	}
	for i := range cs.liftEvents {
		cs.liftEvents[i]--
	}
	cs.events = cs.events[1:]
	cs.statuses = cs.statuses[1:]
}

// NumContactPhases returns the number of contact phases (events + 1).
func (cs *ContactSequence) NumContactPhases() int { return len(cs.statuses) }

// NumDiscreteEvents returns the total number of recorded events.
func (cs *ContactSequence) NumDiscreteEvents() int { return len(cs.events) }

// NumImpulseEvents returns the number of impulse events.
func (cs *ContactSequence) NumImpulseEvents() int { return len(cs.impulseEvents) }

// NumLiftEvents returns the number of lift events.
func (cs *ContactSequence) NumLiftEvents() int { return len(cs.liftEvents) }

// ReservedNumDiscreteEvents returns the reserved arena capacity.
func (cs *ContactSequence) ReservedNumDiscreteEvents() int { return cs.reserved }

// Reserve grows the reserved arena capacity to at least n.
func (cs *ContactSequence) Reserve(n int) {
	if n > cs.reserved {
		cs.reserved = n
	}
}

// ContactStatus returns the contact status of phase p.
func (cs *ContactSequence) ContactStatus(phase int) ContactStatus { return cs.statuses[phase] }

// EventType returns the type of global event e.
func (cs *ContactSequence) EventType(event int) DiscreteEventType {
	return cs.events[event].eventType
}

// EventTime returns the time of global event e.
func (cs *ContactSequence) EventTime(event int) float64 { return cs.events[event].time }

// IsSTOEnabledEvent reports whether global event e has a free time.
func (cs *ContactSequence) IsSTOEnabledEvent(event int) bool { return cs.events[event].sto }

// EventIndexImpulse maps impulse ordinal i to its global event index.
func (cs *ContactSequence) EventIndexImpulse(i int) int { return cs.impulseEvents[i] }

// EventIndexLift maps lift ordinal l to its global event index.
func (cs *ContactSequence) EventIndexLift(l int) int { return cs.liftEvents[l] }

// ImpulseTime returns the time of impulse ordinal i.
func (cs *ContactSequence) ImpulseTime(i int) float64 {
	return cs.events[cs.impulseEvents[i]].time
}

// LiftTime returns the time of lift ordinal l.
func (cs *ContactSequence) LiftTime(l int) float64 {
	return cs.events[cs.liftEvents[l]].time
}

// IsSTOEnabledImpulse reports whether impulse ordinal i has a free time.
func (cs *ContactSequence) IsSTOEnabledImpulse(i int) bool {
	return cs.events[cs.impulseEvents[i]].sto
}

// IsSTOEnabledLift reports whether lift ordinal l has a free time.
func (cs *ContactSequence) IsSTOEnabledLift(l int) bool {
	return cs.events[cs.liftEvents[l]].sto
}

// SetImpulseTime moves the time of impulse ordinal i. Chronological
// consistency is re-validated by the next Discretize call, not here:
// switching-time optimization legitimately proposes tentative times.
func (cs *ContactSequence) SetImpulseTime(i int, t float64) {
	cs.events[cs.impulseEvents[i]].time = t
}

// SetLiftTime moves the time of lift ordinal l. See SetImpulseTime.
func (cs *ContactSequence) SetLiftTime(l int, t float64) {
	cs.events[cs.liftEvents[l]].time = t
}

// ImpulseStatus returns the contact status entered by impulse ordinal i.
func (cs *ContactSequence) ImpulseStatus(i int) ContactStatus {
	return cs.statuses[cs.impulseEvents[i]+1]
}
