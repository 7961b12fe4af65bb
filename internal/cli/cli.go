package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun        Command = "run"
	CommandStart      Command = "start"
	CommandStop       Command = "stop"
	CommandReset      Command = "reset"
	CommandDismiss    Command = "dismiss"
	CommandStatus     Command = "status"
	CommandTranscript Command = "transcript"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:        {},
	CommandStart:      {},
	CommandStop:       {},
	CommandReset:      {},
	CommandDismiss:    {},
	CommandStatus:     {},
	CommandTranscript: {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

type Parsed struct {
	Command    Command
	SocketPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--socket":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--socket requires a path")
			}
			parsed.SocketPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--socket PATH] <command>

Commands:
  run         Host the voice engine and its control socket
  start       Begin a capture session
  stop        Cancel the active session and any pending dispatch
  reset       Clear transcript and error state
  dismiss     Dismiss a surfaced voice error
  status      Print current engine state
  transcript  Print the live transcript
  doctor      Run configuration and gateway readiness checks
  version     Print version information
  help        Show this help

Flags:
  --socket PATH   Control socket path (default: $XDG_RUNTIME_DIR/awaaz.sock)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
