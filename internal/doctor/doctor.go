// Package doctor runs readiness diagnostics for config, gateway, and dispatch wiring.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/hraza/awaaz/internal/capture/gateway"
	"github.com/hraza/awaaz/internal/config"
)

// healthService is the name the speech gateway registers with its gRPC
// health server.
const healthService = "speechgateway"

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment and gateway readiness checks.
func Run(ctx context.Context, cfg config.Config) Report {
	checks := []Check{
		checkConfig(cfg),
		checkGatewayURL(cfg),
		checkChatEndpoint(cfg.ChatEndpoint),
		checkGatewayHealth(ctx, cfg.GatewayHealth),
	}
	return Report{Checks: checks}
}

// checkConfig surfaces validation failures with the offending value.
func checkConfig(cfg config.Config) Check {
	if err := cfg.Validate(); err != nil {
		return Check{Name: "config", Pass: false, Message: err.Error()}
	}
	return Check{
		Name: "config",
		Pass: true,
		Message: fmt.Sprintf("language=%s autodetect=%t dispatch_delay=%s",
			cfg.DisplayLanguage, cfg.AutoDetect, cfg.DispatchDelay),
	}
}

// checkGatewayURL runs the same pure capability probe the engine uses.
func checkGatewayURL(cfg config.Config) Check {
	capability := gateway.New(gateway.Config{URL: cfg.GatewayURL, Token: cfg.GatewayToken})
	if !capability.Supported() {
		return Check{
			Name:    "gateway.url",
			Pass:    false,
			Message: fmt.Sprintf("speech capture unsupported with gateway URL %q", cfg.GatewayURL),
		}
	}
	return Check{Name: "gateway.url", Pass: true, Message: fmt.Sprintf("capability configured at %q", cfg.GatewayURL)}
}

// checkChatEndpoint validates the dispatch target without sending a command.
func checkChatEndpoint(endpoint string) Check {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Check{Name: "chat.endpoint", Pass: false, Message: "chat endpoint is empty"}
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return Check{Name: "chat.endpoint", Pass: false, Message: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Check{Name: "chat.endpoint", Pass: false, Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return Check{Name: "chat.endpoint", Pass: false, Message: "endpoint has no host"}
	}
	return Check{Name: "chat.endpoint", Pass: true, Message: fmt.Sprintf("dispatch target %q", endpoint)}
}

// checkGatewayHealth probes the gateway's gRPC health service.
func checkGatewayHealth(ctx context.Context, target string) Check {
	target = strings.TrimSpace(target)
	if target == "" {
		return Check{Name: "gateway.health", Pass: false, Message: "gateway health address is empty"}
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return Check{Name: "gateway.health", Pass: false, Message: fmt.Sprintf("dial %q: %v", target, err)}
	}
	defer conn.Close()

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	conn.Connect()
	if err := waitForReady(probeCtx, conn); err != nil {
		return Check{Name: "gateway.health", Pass: false, Message: fmt.Sprintf("gateway grpc not ready: %v", err)}
	}

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(
		probeCtx,
		&grpc_health_v1.HealthCheckRequest{Service: healthService},
	)
	if err != nil {
		return Check{Name: "gateway.health", Pass: false, Message: fmt.Sprintf("health check failed: %v", err)}
	}

	detail, _ := protojson.Marshal(resp)
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return Check{Name: "gateway.health", Pass: false, Message: fmt.Sprintf("gateway not serving: %s", detail)}
	}
	return Check{Name: "gateway.health", Pass: true, Message: fmt.Sprintf("serving at %s: %s", target, detail)}
}

// waitForReady blocks until the gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
