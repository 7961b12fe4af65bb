package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hraza/awaaz/internal/capture/gateway"
	"github.com/hraza/awaaz/internal/cli"
	"github.com/hraza/awaaz/internal/config"
	"github.com/hraza/awaaz/internal/dispatch"
	"github.com/hraza/awaaz/internal/doctor"
	"github.com/hraza/awaaz/internal/engine"
	"github.com/hraza/awaaz/internal/ipc"
	"github.com/hraza/awaaz/internal/lang"
	"github.com/hraza/awaaz/internal/logging"
	"github.com/hraza/awaaz/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("awaaz"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("awaaz"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}

	explicitSocket := parsed.SocketPath
	if explicitSocket == "" {
		explicitSocket = cfg.SocketPath
	}

	logger.Info("command start",
		"command", parsed.Command,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfg)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandRun:
		return r.commandRun(ctx, cfg, explicitSocket, logger)
	case cli.CommandStart, cli.CommandStop, cli.CommandReset, cli.CommandDismiss:
		return r.forwardOrFail(ctx, explicitSocket, string(parsed.Command))
	case cli.CommandStatus:
		return r.commandStatus(ctx, explicitSocket)
	case cli.CommandTranscript:
		return r.commandTranscript(ctx, explicitSocket)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandRun hosts the engine and serves the control socket until ctx ends.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, explicitSocket string, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath(explicitSocket)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	capability := gateway.New(gateway.Config{
		URL:   cfg.GatewayURL,
		Token: cfg.GatewayToken,
	})
	sender := dispatch.NewChatSender(cfg.ChatEndpoint, logger)

	var eng *engine.Engine
	eng = engine.New(capability, logger, engine.Options{
		DisplayLanguage: cfg.DisplayLanguage,
		AutoDetect:      cfg.AutoDetect,
		DispatchDelay:   cfg.DispatchDelay,
		OnTranscriptReady: func(text string, detected lang.Language) {
			sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := sender.Send(sendCtx, text, detected); err != nil {
				logger.Error("forward command failed", "error", err.Error())
			}
		},
		OnLanguageDetected: func(detected lang.Language) {
			logger.Info("display language switched", "language", string(detected))
			eng.SetDisplayLanguage(detected)
		},
	})
	defer eng.Dispose()

	if !capability.Supported() {
		fmt.Fprintln(r.Stderr, "warning: speech gateway is not configured; voice commands will report not-supported")
	}

	fmt.Fprintf(r.Stdout, "awaaz listening on %s\n", socketPath)
	if err := ipc.Serve(ctx, listener, newEngineHandler(eng)); err != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context, explicitSocket string) int {
	socketPath, err := ipc.RuntimeSocketPath(explicitSocket)
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		if resp.ErrorCode != "" {
			fmt.Fprintf(r.Stdout, "%s: %s\n", resp.ErrorCode, resp.Error)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) commandTranscript(ctx context.Context, explicitSocket string) int {
	socketPath, err := ipc.RuntimeSocketPath(explicitSocket)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, "transcript")
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running awaaz daemon")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Transcript != "" {
		fmt.Fprintln(r.Stdout, resp.Transcript)
	}
	if resp.Language != "" {
		fmt.Fprintf(r.Stdout, "language: %s\n", resp.Language)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, explicitSocket string, command string) int {
	socketPath, err := ipc.RuntimeSocketPath(explicitSocket)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running awaaz daemon")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.IsSocketMissing(err) || ipc.IsConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
