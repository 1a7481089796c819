package model

// Hover classifies where the pointer is relative to a toast.
type Hover int

const (
	HoverNone Hover = iota
	HoverClose
	HoverBody
)

// String returns the string representation of Hover.
func (h Hover) String() string {
	switch h {
	case HoverNone:
		return "none"
	case HoverClose:
		return "close"
	case HoverBody:
		return "body"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a toast.
//
//	Created -> Visible -> (Hovering <-> Visible) -> Closing -> Destroyed
type State int

const (
	// StateCreated exists only while the toast is being submitted.
	StateCreated State = iota
	// StateVisible is the steady state; the countdown is running.
	StateVisible
	// StateHovering means the pointer is over the toast.
	StateHovering
	// StateClosing is entered exactly once, when retirement starts.
	StateClosing
	// StateDestroyed is terminal; the platform window has been released.
	StateDestroyed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateVisible:
		return "visible"
	case StateHovering:
		return "hovering"
	case StateClosing:
		return "closing"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateCreated:
		return next == StateVisible || next == StateClosing
	case StateVisible:
		return next == StateHovering || next == StateClosing
	case StateHovering:
		return next == StateVisible || next == StateClosing
	case StateClosing:
		return next == StateDestroyed
	default:
		return false
	}
}

// Live reports whether the toast still owns platform resources.
func (s State) Live() bool {
	return s != StateDestroyed
}

// CloseReason records why a toast was retired.
type CloseReason int

const (
	// ReasonExpired means the countdown reached zero.
	ReasonExpired CloseReason = iota + 1
	// ReasonDismissed means the user clicked the close control or the body.
	ReasonDismissed
	// ReasonCancelled means the caller or the platform asked for the toast to go.
	ReasonCancelled
	// ReasonEvicted means a newer toast needed the slot.
	ReasonEvicted
	// ReasonShutdown means the host event loop is exiting.
	ReasonShutdown
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonDismissed:
		return "dismissed"
	case ReasonCancelled:
		return "cancelled"
	case ReasonEvicted:
		return "evicted"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
