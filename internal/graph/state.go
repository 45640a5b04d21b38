package graph

// InteractionState names what the user is currently doing on the canvas.
// A single explicit state replaces the scattered boolean flags
// (isDragging / isSelecting / connectingNodeId) a naive client would
// coordinate by hand.
type InteractionState int

const (
	// Idle: no gesture in progress.
	Idle InteractionState = iota
	// Dragging: one or more nodes follow the pointer.
	Dragging
	// Selecting: a rubber-band multi-select box is open.
	Selecting
	// Connecting: a connection wire is held from a source node.
	Connecting
)

func (s InteractionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Selecting:
		return "selecting"
	case Connecting:
		return "connecting"
	default:
		return "unknown"
	}
}

// InteractionEvent is an input to the transition function.
type InteractionEvent int

const (
	EvDragStart InteractionEvent = iota
	EvDragEnd
	EvSelectStart
	EvSelectEnd
	EvConnectStart
	EvConnectEnd
)

// Transition is the pure state transition function. Gestures only begin
// from Idle and only their matching end event returns to Idle; anything
// else leaves the state unchanged, so a stray end event (a pointer-up
// delivered twice, say) cannot corrupt an unrelated gesture.
func Transition(s InteractionState, e InteractionEvent) InteractionState {
	switch s {
	case Idle:
		switch e {
		case EvDragStart:
			return Dragging
		case EvSelectStart:
			return Selecting
		case EvConnectStart:
			return Connecting
		}
	case Dragging:
		if e == EvDragEnd {
			return Idle
		}
	case Selecting:
		if e == EvSelectEnd {
			return Idle
		}
	case Connecting:
		if e == EvConnectEnd {
			return Idle
		}
	}
	return s
}

// Suspended reports whether background refresh must skip its work to
// avoid clobbering an in-flight manipulation. Only dragging and
// rubber-band selection suspend the poll loop; holding a connection wire
// does not.
func (s InteractionState) Suspended() bool {
	return s == Dragging || s == Selecting
}
