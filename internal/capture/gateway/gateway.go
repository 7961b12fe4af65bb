// Package gateway binds the capture port to a speech-gateway service that
// streams recognition events over a websocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hraza/awaaz/internal/capture"
	"github.com/hraza/awaaz/internal/voiceerr"
)

// Config controls gateway connection settings.
type Config struct {
	URL         string
	Token       string
	DialTimeout time.Duration
}

// Capability implements capture.Capability against a speech gateway.
type Capability struct {
	cfg Config
}

func New(cfg Config) *Capability {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	return &Capability{cfg: cfg}
}

// Supported probes configuration only; it never dials.
func (c *Capability) Supported() bool {
	_, err := normalizeBaseURL(c.cfg.URL)
	return err == nil
}

// Open dials the gateway and starts one single-utterance session.
func (c *Capability) Open(ctx context.Context, languageTag string) (capture.Session, error) {
	sessionURL, err := buildSessionURL(c.cfg.URL, languageTag)
	if err != nil {
		return nil, &capture.OpenError{Code: voiceerr.CodeNotSupported, Err: err}
	}

	headers := http.Header{}
	if token := strings.TrimSpace(c.cfg.Token); token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, sessionURL, headers)
	if err != nil {
		return nil, &capture.OpenError{
			Code: voiceerr.CodeNetworkFailure,
			Err:  fmt.Errorf("dial speech gateway: %w", err),
		}
	}

	s := &session{
		conn:     conn,
		events:   make(chan capture.Event, 16),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go s.readLoop()

	return s, nil
}

type session struct {
	conn *websocket.Conn

	events   chan capture.Event
	closed   chan struct{}
	readDone chan struct{}

	closeOnce sync.Once
}

func (s *session) Events() <-chan capture.Event {
	return s.events
}

// Close releases the connection and waits for the read loop to drain.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
	<-s.readDone
	return nil
}

func (s *session) readLoop() {
	defer close(s.readDone)
	defer close(s.events)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				// Local close; the caller is done with this session.
				return
			default:
			}
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				s.emit(capture.Event{Kind: capture.EventEnded})
				return
			}
			s.emit(capture.Event{Kind: capture.EventError, Code: voiceerr.CodeNetworkFailure})
			return
		}

		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			continue
		}

		ev, terminal, ok := mapFrame(f)
		if !ok {
			continue
		}
		s.emit(ev)
		if terminal {
			return
		}
	}
}

// emit blocks until the consumer takes the event or the session closes.
func (s *session) emit(ev capture.Event) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

// frame is one gateway JSON message.
type frame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Final bool   `json:"is_final"`
	Code  string `json:"code"`
}

// mapFrame converts a gateway frame to a capture event. terminal marks events
// after which the gateway sends nothing further for this session.
func mapFrame(f frame) (ev capture.Event, terminal bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case "started":
		return capture.Event{Kind: capture.EventStarted}, false, true
	case "transcript":
		kind := capture.EventPartial
		if f.Final {
			kind = capture.EventFinal
		}
		return capture.Event{Kind: kind, Text: f.Text}, false, true
	case "error":
		return capture.Event{Kind: capture.EventError, Code: mapCode(f.Code)}, true, true
	case "ended":
		return capture.Event{Kind: capture.EventEnded}, true, true
	default:
		return capture.Event{}, false, false
	}
}

// mapCode folds gateway error names onto the closed taxonomy. The names match
// the recognition-error vocabulary most speech hosts emit.
func mapCode(raw string) voiceerr.Code {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "not-allowed", "service-not-allowed", "permission-denied":
		return voiceerr.CodePermissionDenied
	case "no-speech", "no-speech-detected":
		return voiceerr.CodeNoSpeechDetected
	case "audio-capture", "capture-device-unavailable":
		return voiceerr.CodeDeviceUnavailable
	case "network", "network-failure":
		return voiceerr.CodeNetworkFailure
	case "aborted":
		return voiceerr.CodeAborted
	case "not-supported":
		return voiceerr.CodeNotSupported
	default:
		return voiceerr.CodeNetworkFailure
	}
}

// normalizeBaseURL validates the configured gateway URL and rewrites http
// schemes to their websocket equivalents.
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("gateway URL is empty")
	}

	if strings.HasPrefix(raw, "https://") {
		raw = "wss://" + strings.TrimPrefix(raw, "https://")
	} else if strings.HasPrefix(raw, "http://") {
		raw = "ws://" + strings.TrimPrefix(raw, "http://")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported gateway URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("gateway URL has no host")
	}
	return u.String(), nil
}

// buildSessionURL appends single-utterance session parameters.
func buildSessionURL(base string, languageTag string) (string, error) {
	normalized, err := normalizeBaseURL(base)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL: %w", err)
	}

	query := u.Query()
	query.Set("language", languageTag)
	query.Set("interim", "true")
	query.Set("utterance", "single")
	query.Set("alternatives", "1")
	u.RawQuery = query.Encode()
	return u.String(), nil
}
