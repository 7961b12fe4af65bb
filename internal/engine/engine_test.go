package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hraza/awaaz/internal/capture"
	"github.com/hraza/awaaz/internal/fsm"
	"github.com/hraza/awaaz/internal/lang"
	"github.com/hraza/awaaz/internal/voiceerr"
)

type fakeSession struct {
	tag    string
	events chan capture.Event

	closeOnce  sync.Once
	closeCalls atomic.Int32
}

func newFakeSession(tag string) *fakeSession {
	return &fakeSession{tag: tag, events: make(chan capture.Event, 16)}
}

func (s *fakeSession) Events() <-chan capture.Event { return s.events }

func (s *fakeSession) Close() error {
	s.closeCalls.Add(1)
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

func (s *fakeSession) emit(ev capture.Event) { s.events <- ev }

type fakeCapability struct {
	unsupported bool

	mu       sync.Mutex
	sessions []*fakeSession
}

func (c *fakeCapability) Supported() bool { return !c.unsupported }

func (c *fakeCapability) Open(_ context.Context, tag string) (capture.Session, error) {
	s := newFakeSession(tag)
	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.mu.Unlock()
	return s, nil
}

func (c *fakeCapability) opened() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *fakeCapability) last() *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) == 0 {
		return nil
	}
	return c.sessions[len(c.sessions)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func checkExclusive(t *testing.T, snap Snapshot) {
	t.Helper()
	if snap.IsRecording && snap.IsTranscribing {
		t.Fatalf("recording and transcribing both true in state %s", snap.State)
	}
}

func TestStartOnUnsupportedHost(t *testing.T) {
	capability := &fakeCapability{unsupported: true}
	e := New(capability, nil, Options{DisplayLanguage: lang.English})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start returned error: %v", err)
	}

	snap := e.Snapshot()
	if snap.State != fsm.StateError {
		t.Fatalf("expected error state, got %s", snap.State)
	}
	if snap.Err == nil || snap.Err.Code != voiceerr.CodeNotSupported {
		t.Fatalf("expected not-supported error, got %+v", snap.Err)
	}
	if snap.Supported {
		t.Fatalf("expected unsupported snapshot")
	}
	if capability.opened() != 0 {
		t.Fatalf("expected no capability handle to be opened")
	}
}

func TestHappyPathDispatchesExactlyOnce(t *testing.T) {
	capability := &fakeCapability{}

	var mu sync.Mutex
	var gotText string
	var gotLang lang.Language
	var readyCalls int

	e := New(capability, nil, Options{
		DisplayLanguage: lang.English,
		DispatchDelay:   20 * time.Millisecond,
		OnTranscriptReady: func(text string, detected lang.Language) {
			mu.Lock()
			defer mu.Unlock()
			readyCalls++
			gotText = text
			gotLang = detected
		},
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	if session == nil {
		t.Fatalf("expected a capability handle")
	}
	if session.tag != "en-US" {
		t.Fatalf("unexpected capture tag: %q", session.tag)
	}

	session.emit(capture.Event{Kind: capture.EventStarted})
	session.emit(capture.Event{Kind: capture.EventPartial, Text: "show"})
	waitFor(t, "partial transcript", func() bool {
		snap := e.Snapshot()
		checkExclusive(t, snap)
		return snap.LiveTranscript == "show" && snap.IsRecording
	})

	session.emit(capture.Event{Kind: capture.EventFinal, Text: "show my tasks"})
	waitFor(t, "transcribing state", func() bool {
		snap := e.Snapshot()
		checkExclusive(t, snap)
		return snap.IsTranscribing
	})
	session.emit(capture.Event{Kind: capture.EventEnded})

	waitFor(t, "dispatch", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return readyCalls == 1
	})

	mu.Lock()
	if gotText != "show my tasks" || gotLang != lang.English {
		t.Fatalf("unexpected dispatch payload: %q %s", gotText, gotLang)
	}
	mu.Unlock()

	waitFor(t, "idle state", func() bool { return e.Snapshot().State == fsm.StateIdle })

	// No second dispatch may ever occur for the session.
	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if readyCalls != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", readyCalls)
	}
}

func TestUrduDetectionReportsBeforeDispatch(t *testing.T) {
	capability := &fakeCapability{}

	var mu sync.Mutex
	var sequence []string
	var detectedLang lang.Language

	e := New(capability, nil, Options{
		DisplayLanguage: lang.English,
		AutoDetect:      true,
		DispatchDelay:   20 * time.Millisecond,
		OnLanguageDetected: func(detected lang.Language) {
			mu.Lock()
			defer mu.Unlock()
			sequence = append(sequence, "detected")
			detectedLang = detected
		},
		OnTranscriptReady: func(string, lang.Language) {
			mu.Lock()
			defer mu.Unlock()
			sequence = append(sequence, "ready")
		},
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventFinal, Text: "میرے کام دکھائیں"})
	session.emit(capture.Event{Kind: capture.EventEnded})

	waitFor(t, "dispatch after detection", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sequence) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if sequence[0] != "detected" || sequence[1] != "ready" {
		t.Fatalf("unexpected callback order: %v", sequence)
	}
	if detectedLang != lang.Urdu {
		t.Fatalf("expected urdu detection, got %s", detectedLang)
	}
	if snap := e.Snapshot(); snap.DetectedLanguage != lang.Urdu {
		t.Fatalf("expected urdu in snapshot, got %s", snap.DetectedLanguage)
	}
}

func TestNoLanguageCallbackWhenAutoDetectOff(t *testing.T) {
	capability := &fakeCapability{}

	var detectedCalls atomic.Int32
	var readyCalls atomic.Int32

	e := New(capability, nil, Options{
		DisplayLanguage:    lang.English,
		AutoDetect:         false,
		DispatchDelay:      10 * time.Millisecond,
		OnLanguageDetected: func(lang.Language) { detectedCalls.Add(1) },
		OnTranscriptReady:  func(string, lang.Language) { readyCalls.Add(1) },
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventFinal, Text: "نیا کام"})
	session.emit(capture.Event{Kind: capture.EventEnded})

	waitFor(t, "dispatch", func() bool { return readyCalls.Load() == 1 })
	if detectedCalls.Load() != 0 {
		t.Fatalf("expected no language callback with autodetect off")
	}
}

func TestCapabilityErrorThenCleanRestart(t *testing.T) {
	capability := &fakeCapability{}
	e := New(capability, nil, Options{DisplayLanguage: lang.English})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventPartial, Text: "half heard"})
	waitFor(t, "partial transcript", func() bool { return e.Snapshot().LiveTranscript == "half heard" })

	session.emit(capture.Event{Kind: capture.EventError, Code: voiceerr.CodePermissionDenied})
	waitFor(t, "error state", func() bool { return e.Snapshot().State == fsm.StateError })

	snap := e.Snapshot()
	checkExclusive(t, snap)
	if snap.IsRecording {
		t.Fatalf("expected recording to be false after error")
	}
	if snap.Err == nil || snap.Err.Code != voiceerr.CodePermissionDenied {
		t.Fatalf("unexpected error: %+v", snap.Err)
	}
	if snap.Err.Message != voiceerr.Localize(voiceerr.CodePermissionDenied, lang.English) {
		t.Fatalf("unexpected localized message: %q", snap.Err.Message)
	}
	if snap.LiveTranscript != "half heard" {
		t.Fatalf("transcript must survive a capture error, got %q", snap.LiveTranscript)
	}
	waitFor(t, "handle release", func() bool { return session.closeCalls.Load() > 0 })

	// The engine stays usable: a fresh start opens a new handle cleanly.
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	snap = e.Snapshot()
	if !snap.IsRecording || snap.Err != nil || snap.LiveTranscript != "" {
		t.Fatalf("unexpected snapshot after restart: %+v", snap)
	}
	if capability.opened() != 2 {
		t.Fatalf("expected a second handle, got %d", capability.opened())
	}
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	capability := &fakeCapability{}
	e := New(capability, nil, Options{DisplayLanguage: lang.English})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(context.Background()); err != ErrSessionActive {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if capability.opened() != 1 {
		t.Fatalf("expected a single handle, got %d", capability.opened())
	}
	if !e.Snapshot().IsRecording {
		t.Fatalf("active session must be unaffected by the rejected start")
	}
}

func TestStopWinsOverPendingDispatch(t *testing.T) {
	capability := &fakeCapability{}

	var readyCalls atomic.Int32
	e := New(capability, nil, Options{
		DisplayLanguage:   lang.English,
		DispatchDelay:     80 * time.Millisecond,
		OnTranscriptReady: func(string, lang.Language) { readyCalls.Add(1) },
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventFinal, Text: "delete everything"})
	waitFor(t, "transcribing state", func() bool { return e.Snapshot().IsTranscribing })

	e.Stop()
	if snap := e.Snapshot(); snap.State != fsm.StateIdle {
		t.Fatalf("expected idle after stop, got %s", snap.State)
	}

	time.Sleep(200 * time.Millisecond)
	if readyCalls.Load() != 0 {
		t.Fatalf("stop must cancel the pending dispatch")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	capability := &fakeCapability{}
	e := New(capability, nil, Options{DisplayLanguage: lang.English})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()

	e.Stop()
	first := e.Snapshot()
	e.Stop()
	second := e.Snapshot()

	if first.State != fsm.StateIdle || second.State != first.State {
		t.Fatalf("stop must be idempotent: %s then %s", first.State, second.State)
	}
	if session.closeCalls.Load() == 0 {
		t.Fatalf("expected handle release on stop")
	}
}

func TestDisposeReleasesMidFlightSession(t *testing.T) {
	capability := &fakeCapability{}

	var readyCalls atomic.Int32
	e := New(capability, nil, Options{
		DisplayLanguage:   lang.English,
		DispatchDelay:     50 * time.Millisecond,
		OnTranscriptReady: func(string, lang.Language) { readyCalls.Add(1) },
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventFinal, Text: "pending"})
	waitFor(t, "transcribing state", func() bool { return e.Snapshot().IsTranscribing })

	e.Dispose()
	e.Dispose()

	if session.closeCalls.Load() == 0 {
		t.Fatalf("expected handle release on dispose")
	}
	if err := e.Start(context.Background()); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed after teardown, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if readyCalls.Load() != 0 {
		t.Fatalf("dispose must cancel the pending dispatch")
	}
}

func TestSessionEndedWithoutFinalReturnsIdle(t *testing.T) {
	capability := &fakeCapability{}

	var readyCalls atomic.Int32
	e := New(capability, nil, Options{
		DisplayLanguage:   lang.English,
		DispatchDelay:     10 * time.Millisecond,
		OnTranscriptReady: func(string, lang.Language) { readyCalls.Add(1) },
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventStarted})
	session.emit(capture.Event{Kind: capture.EventEnded})

	waitFor(t, "idle state", func() bool { return e.Snapshot().State == fsm.StateIdle })
	time.Sleep(50 * time.Millisecond)
	if readyCalls.Load() != 0 {
		t.Fatalf("a session without a final result must not dispatch")
	}
}

func TestResetClearsTranscriptAndError(t *testing.T) {
	capability := &fakeCapability{}
	e := New(capability, nil, Options{DisplayLanguage: lang.Urdu})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventPartial, Text: "کام"})
	session.emit(capture.Event{Kind: capture.EventError, Code: voiceerr.CodeNetworkFailure})
	waitFor(t, "error state", func() bool { return e.Snapshot().State == fsm.StateError })

	if msg := e.Snapshot().Err.Message; msg != voiceerr.Localize(voiceerr.CodeNetworkFailure, lang.Urdu) {
		t.Fatalf("expected urdu message, got %q", msg)
	}

	e.Reset()
	snap := e.Snapshot()
	if snap.State != fsm.StateIdle || snap.Err != nil || snap.LiveTranscript != "" {
		t.Fatalf("unexpected snapshot after reset: %+v", snap)
	}
}

func TestResetDoesNotTouchActiveSession(t *testing.T) {
	capability := &fakeCapability{}
	e := New(capability, nil, Options{DisplayLanguage: lang.English})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := capability.last()
	session.emit(capture.Event{Kind: capture.EventPartial, Text: "in flight"})
	waitFor(t, "partial transcript", func() bool { return e.Snapshot().LiveTranscript == "in flight" })

	e.Reset()
	snap := e.Snapshot()
	if !snap.IsRecording || snap.LiveTranscript != "in flight" {
		t.Fatalf("reset must not touch an active session: %+v", snap)
	}
}

func TestDismissClearsErrorOnly(t *testing.T) {
	capability := &fakeCapability{}
	e := New(capability, nil, Options{DisplayLanguage: lang.English})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	capability.last().emit(capture.Event{Kind: capture.EventError, Code: voiceerr.CodeAborted})
	waitFor(t, "error state", func() bool { return e.Snapshot().Err != nil })

	e.Dismiss()
	snap := e.Snapshot()
	if snap.Err != nil {
		t.Fatalf("expected dismissed error")
	}
	if snap.State != fsm.StateError {
		t.Fatalf("dismiss must not alter state, got %s", snap.State)
	}

	// A fresh start still works from the dismissed error state.
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start after dismiss: %v", err)
	}
}

func TestDisplayLanguageAppliesToNextSessionOnly(t *testing.T) {
	capability := &fakeCapability{}
	e := New(capability, nil, Options{DisplayLanguage: lang.English})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.SetDisplayLanguage(lang.Urdu)

	if tag := capability.last().tag; tag != "en-US" {
		t.Fatalf("open session must keep its tag, got %q", tag)
	}

	e.Stop()
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if tag := capability.last().tag; tag != "ur-PK" {
		t.Fatalf("next session must use the updated preference, got %q", tag)
	}
}
