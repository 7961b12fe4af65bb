// Package capture defines the port over the host speech-capture capability.
package capture

import (
	"context"
	"errors"

	"github.com/hraza/awaaz/internal/voiceerr"
)

// EventKind identifies one of the five capability event channels.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventPartial EventKind = "partial"
	EventFinal   EventKind = "final"
	EventError   EventKind = "error"
	EventEnded   EventKind = "ended"
)

// Event is one capability emission during a single-utterance session.
// At most one final or one error event occurs per session, never both.
type Event struct {
	Kind EventKind
	Text string        // transcript text for partial/final events
	Code voiceerr.Code // failure code for error events
}

// Session is one open single-utterance capture session. The event channel
// closes after the terminal event (error or ended).
type Session interface {
	Events() <-chan Event
	// Close detaches the session and releases the underlying capability.
	// Idempotent; safe on an already-closed session.
	Close() error
}

// Capability detects and opens host speech capture.
type Capability interface {
	// Supported is a pure probe. It must be callable before any session
	// exists and must not panic on hosts lacking the capability.
	Supported() bool
	// Open starts one single-utterance, interim-result, single-alternative
	// session for the given capture language tag.
	Open(ctx context.Context, languageTag string) (Session, error)
}

// OpenError attaches a taxonomy code to a session-open failure so the caller
// can surface it without inspecting transport details.
type OpenError struct {
	Code voiceerr.Code
	Err  error
}

func (e *OpenError) Error() string {
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the taxonomy code from an Open failure. Failures with no
// attached code mean the capability itself is absent.
func CodeOf(err error) voiceerr.Code {
	var oe *OpenError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return voiceerr.CodeNotSupported
}

// Unsupported is the Capability for hosts without speech capture.
type Unsupported struct{}

func (Unsupported) Supported() bool { return false }

func (Unsupported) Open(context.Context, string) (Session, error) {
	return nil, &OpenError{
		Code: voiceerr.CodeNotSupported,
		Err:  errors.New("speech capture capability is not available"),
	}
}
