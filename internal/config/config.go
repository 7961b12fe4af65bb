// Package config resolves runtime configuration from defaults and AWAAZ_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hraza/awaaz/internal/lang"
)

// Config is the fully materialized runtime configuration used by awaaz.
type Config struct {
	// GatewayURL is the speech-gateway websocket endpoint.
	GatewayURL   string `env:"AWAAZ_GATEWAY_URL"`
	GatewayToken string `env:"AWAAZ_GATEWAY_TOKEN"`
	// GatewayHealth is the host:port of the gateway gRPC health service.
	GatewayHealth string `env:"AWAAZ_GATEWAY_HEALTH"`

	// ChatEndpoint receives finalized commands.
	ChatEndpoint string `env:"AWAAZ_CHAT_ENDPOINT"`

	DisplayLanguage lang.Language `env:"AWAAZ_LANGUAGE"`
	AutoDetect      bool          `env:"AWAAZ_AUTODETECT"`
	// DispatchDelay is the preview window between a final transcript and
	// the downstream hand-off.
	DispatchDelay time.Duration `env:"AWAAZ_DISPATCH_DELAY"`

	// SocketPath overrides the runtime control socket location.
	SocketPath string `env:"AWAAZ_SOCKET"`
}

// Default returns the canonical runtime configuration.
func Default() Config {
	return Config{
		GatewayURL:      "ws://127.0.0.1:9090/listen",
		GatewayHealth:   "127.0.0.1:9091",
		ChatEndpoint:    "http://127.0.0.1:8000/chat",
		DisplayLanguage: lang.English,
		AutoDetect:      true,
		DispatchDelay:   1500 * time.Millisecond,
	}
}

// Load applies environment overrides on top of defaults and validates.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if !lang.Valid(c.DisplayLanguage) {
		return fmt.Errorf("unsupported display language %q", c.DisplayLanguage)
	}
	if c.DispatchDelay <= 0 {
		return fmt.Errorf("dispatch delay must be positive, got %s", c.DispatchDelay)
	}
	return nil
}
