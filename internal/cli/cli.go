// Package cli parses signflow's global flags and command line.
package cli

import (
	"fmt"
	"strconv"

	"github.com/jessevdk/go-flags"
	"github.com/rbright/signflow/internal/language"
)

type Command string

const (
	CommandServe     Command = "serve"
	CommandRun       Command = "run"
	CommandStart     Command = "start"
	CommandStop      Command = "stop"
	CommandLanguage  Command = "language"
	CommandStatus    Command = "status"
	CommandLanguages Command = "languages"
	CommandDevices   Command = "devices"
	CommandHistory   Command = "history"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandServe:     {},
	CommandRun:       {},
	CommandStart:     {},
	CommandStop:      {},
	CommandLanguage:  {},
	CommandStatus:    {},
	CommandLanguages: {},
	CommandDevices:   {},
	CommandHistory:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

// options are the global flags. The struct tags are read by go-flags.
type options struct {
	Config   string `long:"config" value-name:"PATH" description:"Config file path"`
	Language string `short:"l" long:"language" value-name:"CODE" description:"Source language for serve and run"`
	Help     bool   `short:"h" long:"help" description:"Show help"`
	Version  bool   `long:"version" description:"Show version"`
}

type Parsed struct {
	Command    Command
	ConfigPath string
	// Language is the argument of `language CODE` or the --language override.
	Language language.Code
	// Limit is the optional row count of `history N`.
	Limit    int
	ShowHelp bool
}

func Parse(args []string) (Parsed, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.PassDoubleDash)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return Parsed{}, err
	}

	parsed := Parsed{ConfigPath: opts.Config}
	if opts.Language != "" {
		code, err := language.Parse(opts.Language)
		if err != nil {
			return Parsed{}, fmt.Errorf("--language: %w", err)
		}
		parsed.Language = code
	}

	switch {
	case opts.Help:
		parsed.Command, parsed.ShowHelp = CommandHelp, true
		return parsed, nil
	case len(rest) == 0 && opts.Version:
		parsed.Command = CommandVersion
		return parsed, nil
	case len(rest) == 0:
		parsed.Command, parsed.ShowHelp = CommandHelp, true
		return parsed, nil
	}

	cmd := Command(rest[0])
	if _, ok := validCommands[cmd]; !ok {
		return Parsed{}, fmt.Errorf("unknown command: %s", rest[0])
	}
	parsed.Command = cmd
	parsed.ShowHelp = cmd == CommandHelp
	operands := rest[1:]

	switch cmd {
	case CommandLanguage:
		if len(operands) != 1 {
			return Parsed{}, fmt.Errorf("command %q requires exactly one language code", cmd)
		}
		code, err := language.Parse(operands[0])
		if err != nil {
			return Parsed{}, err
		}
		parsed.Language = code
	case CommandHistory:
		if len(operands) > 1 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", cmd)
		}
		if len(operands) == 1 {
			n, err := strconv.Atoi(operands[0])
			if err != nil || n <= 0 {
				return Parsed{}, fmt.Errorf("history limit must be a positive integer (got %q)", operands[0])
			}
			parsed.Limit = n
		}
	default:
		if len(operands) != 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", cmd)
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--language CODE] <command>

Commands:
  serve           Run the daemon (IPC socket, websocket presenter, cues, history)
  run             Capture one utterance, convert it, print the result, and exit
  start           Start listening in the running daemon
  stop            Stop listening in the running daemon
  language CODE   Switch the source language of the running daemon
  status          Print the daemon's current session state
  languages       List supported source languages
  devices         List available input devices
  history [N]     Show the last N finished conversions
  doctor          Run configuration, remote, and audio checks
  version         Print version information
  help            Show this help

Flags:
  --config PATH       Config file path (default: $XDG_CONFIG_HOME/signflow/config.jsonc)
  -l, --language CODE Source language for serve and run (default: config "language")
  -h, --help          Show help
  --version           Show version
`, binaryName)
}
