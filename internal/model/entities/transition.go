package entities

// Transition is an edge of the status state machine.
type Transition int

const (
	ToOffnormal Transition = iota
	ToFault
	ToNormal
	ResolveOffnormal
	ResolveFault
)

var transitionNames = [...]string{
	ToOffnormal:      "TO_OFFNORMAL",
	ToFault:          "TO_FAULT",
	ToNormal:         "TO_NORMAL",
	ResolveOffnormal: "RESOLVE_OFFNORMAL",
	ResolveFault:     "RESOLVE_FAULT",
}

func (t Transition) String() string {
	if t >= 0 && int(t) < len(transitionNames) {
		return transitionNames[t]
	}
	return "UNKNOWN"
}

// EventIndex is the position of the transition in BACnet event bit strings
// (event-enable, recipient transitions, priority, event-message-texts):
// 0 to-offnormal, 1 to-fault, 2 to-normal.
func (t Transition) EventIndex() int {
	switch t {
	case ToOffnormal, ResolveOffnormal:
		return 0
	case ToFault, ResolveFault:
		return 1
	}
	return 2
}

// Opening returns the transition that opens the episode t belongs to:
// ResolveFault belongs to ToFault and ResolveOffnormal to ToOffnormal.
func (t Transition) Opening() Transition {
	switch t {
	case ResolveFault:
		return ToFault
	case ResolveOffnormal:
		return ToOffnormal
	}
	return t
}

// IsResolve reports whether t closes an episode.
func (t Transition) IsResolve() bool {
	return t == ResolveFault || t == ResolveOffnormal
}
