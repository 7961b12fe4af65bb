// Package dispatch hands finalized commands to the downstream message
// pipeline. The payload is only the text and its language tag; voice input
// stays indistinguishable from typed input past this boundary.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hraza/awaaz/internal/lang"
)

// Sender delivers one finalized command.
type Sender interface {
	Send(ctx context.Context, text string, language lang.Language) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, text string, language lang.Language) error

func (f SenderFunc) Send(ctx context.Context, text string, language lang.Language) error {
	return f(ctx, text, language)
}

// ChatSender posts commands to the assistant chat endpoint.
type ChatSender struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewChatSender(endpoint string, logger *slog.Logger) *ChatSender {
	return &ChatSender{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

type chatPayload struct {
	Message  string `json:"message"`
	Language string `json:"language"`
}

// Send posts {message, language} as JSON and treats any non-2xx as failure.
func (s *ChatSender) Send(ctx context.Context, text string, language lang.Language) error {
	if s.endpoint == "" {
		return fmt.Errorf("chat endpoint is not configured")
	}

	body, err := json.Marshal(chatPayload{Message: text, Language: string(language)})
	if err != nil {
		return fmt.Errorf("encode chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("chat endpoint returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if s.logger != nil {
		s.logger.Info("command forwarded",
			"endpoint", s.endpoint,
			"language", string(language),
			"length", len(text),
		)
	}
	return nil
}
