package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateGranted    State = "granted"
	StateDenied     State = "denied"
)

const (
	EventActivate   Event = "activate"
	EventGrant      Event = "grant"
	EventDeny       Event = "deny"
	EventDeactivate Event = "deactivate"
	EventDispose    Event = "dispose"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if event == EventDispose {
		return StateIdle, nil
	}

	switch current {
	case StateIdle, StateDenied:
		switch event {
		case EventActivate:
			return StateRequesting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRequesting:
		switch event {
		case EventGrant:
			return StateGranted, nil
		case EventDeny:
			return StateDenied, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateGranted:
		switch event {
		case EventDeactivate:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// CanActivate reports whether an activation may start from state.
func CanActivate(state State) bool {
	return state == StateIdle || state == StateDenied
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
