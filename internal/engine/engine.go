// Package engine orchestrates one voice-command capture session at a time:
// it owns the capability handle, the live transcript, the dispatch timer,
// and the recording lifecycle state.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hraza/awaaz/internal/capture"
	"github.com/hraza/awaaz/internal/fsm"
	"github.com/hraza/awaaz/internal/lang"
	"github.com/hraza/awaaz/internal/voiceerr"
)

var (
	// ErrSessionActive indicates start was called while a session is open.
	ErrSessionActive = errors.New("a capture session is already active")
	// ErrDisposed indicates the engine was torn down.
	ErrDisposed = errors.New("engine is disposed")
)

// DefaultDispatchDelay is the preview window between a final transcript and
// the downstream hand-off.
const DefaultDispatchDelay = 1500 * time.Millisecond

// Options configures one engine instance.
type Options struct {
	DisplayLanguage lang.Language
	AutoDetect      bool
	DispatchDelay   time.Duration

	// OnTranscriptReady receives the final text and its detected language
	// after the dispatch delay. Invoked at most once per session.
	OnTranscriptReady func(text string, detected lang.Language)
	// OnLanguageDetected fires before the dispatch timer is armed when
	// AutoDetect is on and the classification differs from the current
	// display language.
	OnLanguageDetected func(detected lang.Language)
}

// Snapshot is the read-only state surface exposed to the host layer.
type Snapshot struct {
	State            fsm.State
	IsRecording      bool
	IsTranscribing   bool
	LiveTranscript   string
	Err              *voiceerr.VoiceError
	Supported        bool
	DetectedLanguage lang.Language
}

// Engine is the voice-command orchestration engine. Failures are terminal
// for a session but never for the engine; it stays usable for the next start.
type Engine struct {
	capability capture.Capability
	logger     *slog.Logger
	opts       Options

	scheduler dispatchScheduler

	mu         sync.Mutex
	state      fsm.State
	transcript string
	voiceErr   *voiceerr.VoiceError
	detected   lang.Language
	display    lang.Language
	session    capture.Session
	sessionID  uint64
	disposed   bool
}

// New constructs an engine. A nil capability behaves as an unsupported host.
func New(capability capture.Capability, logger *slog.Logger, opts Options) *Engine {
	if capability == nil {
		capability = capture.Unsupported{}
	}
	if !lang.Valid(opts.DisplayLanguage) {
		opts.DisplayLanguage = lang.English
	}
	if opts.DispatchDelay <= 0 {
		opts.DispatchDelay = DefaultDispatchDelay
	}
	return &Engine{
		capability: capability,
		logger:     logger,
		opts:       opts,
		state:      fsm.StateIdle,
		display:    opts.DisplayLanguage,
	}
}

// Start opens a new capture session. Returns ErrSessionActive while a session
// is open; capability failures are surfaced through state, not returned.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	if e.state == fsm.StateRecording || e.state == fsm.StateTranscribing {
		e.mu.Unlock()
		return ErrSessionActive
	}

	e.transcript = ""
	e.voiceErr = nil
	e.detected = ""
	display := e.display

	if !e.capability.Supported() {
		e.transitionLocked(fsm.EventFail)
		ve := voiceerr.New(voiceerr.CodeNotSupported, display)
		e.voiceErr = &ve
		e.mu.Unlock()
		e.logWarn("speech capture unsupported on this host")
		return nil
	}

	e.sessionID++
	id := e.sessionID
	e.mu.Unlock()

	e.scheduler.Cancel()

	session, err := e.capability.Open(ctx, lang.Tag(display))
	if err != nil {
		code := capture.CodeOf(err)
		e.mu.Lock()
		if id == e.sessionID && !e.disposed {
			e.transitionLocked(fsm.EventFail)
			ve := voiceerr.New(code, e.display)
			e.voiceErr = &ve
		}
		e.mu.Unlock()
		e.logWarn("open capture session failed", "code", string(code), "error", err.Error())
		return nil
	}

	e.mu.Lock()
	if e.disposed || id != e.sessionID {
		// Superseded while dialing; release the orphan handle.
		e.mu.Unlock()
		_ = session.Close()
		return nil
	}
	e.transitionLocked(fsm.EventStart)
	e.session = session
	e.mu.Unlock()

	e.logInfo("capture session opened", "language", string(display))
	go e.consume(id, session)
	return nil
}

// consume drains one session's event channel until it closes.
func (e *Engine) consume(id uint64, session capture.Session) {
	for ev := range session.Events() {
		switch ev.Kind {
		case capture.EventStarted:
			// Recording state was entered when the session opened.
		case capture.EventPartial:
			e.onPartial(id, ev.Text)
		case capture.EventFinal:
			e.onFinal(id, ev.Text)
		case capture.EventError:
			e.onError(id, ev.Code)
		case capture.EventEnded:
			e.onEnded(id)
		}
	}
}

func (e *Engine) onPartial(id uint64, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != e.sessionID || e.state != fsm.StateRecording {
		return
	}
	e.transcript = text
}

func (e *Engine) onFinal(id uint64, text string) {
	e.mu.Lock()
	if id != e.sessionID || e.state != fsm.StateRecording {
		e.mu.Unlock()
		return
	}

	e.transcript = text
	detected := lang.Classify(text)
	e.detected = detected
	display := e.display
	e.transitionLocked(fsm.EventFinal)
	delay := e.opts.DispatchDelay
	e.mu.Unlock()

	e.logInfo("final transcript received",
		"length", len(text),
		"detected_language", string(detected),
	)

	if e.opts.AutoDetect && detected != display && e.opts.OnLanguageDetected != nil {
		e.opts.OnLanguageDetected(detected)
	}

	e.scheduler.Arm(delay, func() { e.fireDispatch(id, text, detected) })
}

// fireDispatch hands the final transcript downstream unless the session was
// stopped or superseded during the preview window.
func (e *Engine) fireDispatch(id uint64, text string, detected lang.Language) {
	e.mu.Lock()
	if e.disposed || id != e.sessionID || e.state != fsm.StateTranscribing {
		e.mu.Unlock()
		return
	}
	e.transitionLocked(fsm.EventDispatch)
	e.mu.Unlock()

	e.logInfo("command dispatched", "length", len(text), "language", string(detected))
	if e.opts.OnTranscriptReady != nil {
		e.opts.OnTranscriptReady(text, detected)
	}
}

func (e *Engine) onError(id uint64, code voiceerr.Code) {
	e.mu.Lock()
	if id != e.sessionID {
		e.mu.Unlock()
		return
	}
	if e.state != fsm.StateRecording && e.state != fsm.StateTranscribing {
		// The session was already stopped; a late error must not
		// resurrect it.
		e.mu.Unlock()
		return
	}
	e.transitionLocked(fsm.EventFail)
	ve := voiceerr.New(code, e.display)
	e.voiceErr = &ve
	session := e.session
	e.session = nil
	// Live transcript is kept so the host can still show what was heard.
	e.mu.Unlock()

	e.scheduler.Cancel()
	if session != nil {
		_ = session.Close()
	}
	e.logWarn("capture session failed", "code", string(code))
}

// onEnded releases the handle when the capability finishes on its own. A
// session that ends while still recording produced no final result and
// returns to idle without dispatching.
func (e *Engine) onEnded(id uint64) {
	e.mu.Lock()
	if id != e.sessionID {
		e.mu.Unlock()
		return
	}
	session := e.session
	e.session = nil
	endedWhileRecording := e.state == fsm.StateRecording
	if endedWhileRecording {
		e.transitionLocked(fsm.EventStop)
	}
	e.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
	if endedWhileRecording {
		e.logInfo("capture session ended without a final transcript")
	}
}

// Stop cancels the active session and any pending dispatch. Stop always wins
// over a pending auto-dispatch: the ready callback never fires afterwards.
// Idempotent and safe from any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	session := e.session
	e.session = nil
	wasTranscribing := e.state == fsm.StateTranscribing
	e.transitionLocked(fsm.EventStop)
	e.mu.Unlock()

	e.scheduler.Cancel()
	if session != nil {
		_ = session.Close()
	}
	if wasTranscribing {
		e.logInfo("pending dispatch cancelled by stop")
	}
}

// Reset clears the transcript and error without touching an active session.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == fsm.StateRecording || e.state == fsm.StateTranscribing {
		return
	}
	e.transitionLocked(fsm.EventReset)
	e.transcript = ""
	e.voiceErr = nil
}

// Dismiss clears a surfaced error without otherwise altering state. The
// engine leaves the error state through Reset or the next Start.
func (e *Engine) Dismiss() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voiceErr = nil
}

// Dispose tears the engine down, releasing the handle and timer even when a
// session is mid-flight. Idempotent; further starts return ErrDisposed.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	session := e.session
	e.session = nil
	e.transitionLocked(fsm.EventStop)
	e.mu.Unlock()

	e.scheduler.Cancel()
	if session != nil {
		_ = session.Close()
	}
	e.logInfo("engine disposed")
}

// SetDisplayLanguage updates the language preference for the next session.
// An open session keeps the tag it was started with.
func (e *Engine) SetDisplayLanguage(l lang.Language) {
	if !lang.Valid(l) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display = l
}

// DisplayLanguage returns the current preference.
func (e *Engine) DisplayLanguage() lang.Language {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display
}

// Snapshot returns the current state surface.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errCopy *voiceerr.VoiceError
	if e.voiceErr != nil {
		c := *e.voiceErr
		errCopy = &c
	}
	return Snapshot{
		State:            e.state,
		IsRecording:      e.state == fsm.StateRecording,
		IsTranscribing:   e.state == fsm.StateTranscribing,
		LiveTranscript:   e.transcript,
		Err:              errCopy,
		Supported:        e.capability.Supported(),
		DetectedLanguage: e.detected,
	}
}

// transitionLocked applies an FSM event; the caller holds e.mu. Transitions
// driven from internal handlers are pre-validated, so an invalid transition
// here leaves the state untouched.
func (e *Engine) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(e.state, event)
	if err != nil {
		return
	}
	e.state = next
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Info(msg, args...)
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}
