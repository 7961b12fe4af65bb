package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateError        State = "error"
)

const (
	EventStart    Event = "start"
	EventFinal    Event = "final"
	EventDispatch Event = "dispatch"
	EventStop     Event = "stop"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

func Transition(current State, event Event) (State, error) {
	switch event {
	case EventFail:
		return StateError, nil
	case EventStop:
		// Stop cancels sessions; a surfaced error stays visible until
		// reset or a new start.
		if current == StateError {
			return StateError, nil
		}
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventFinal:
			return StateTranscribing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTranscribing:
		switch event {
		case EventDispatch:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
