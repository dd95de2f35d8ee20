package cli

import (
	"errors"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/rbright/signflow/internal/language"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/signflow.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/signflow.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   string
		wantCmd   Command
		wantHelp  bool
		wantPath  string
		wantLang  language.Code
		wantLimit int
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help wins over command", args: []string{"serve", "--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantCmd: CommandStatus, wantPath: "/tmp/cfg"},
		{name: "config with equals", args: []string{"--config=/tmp/cfg", "run"}, wantCmd: CommandRun, wantPath: "/tmp/cfg"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "expected argument"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"toggle"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unexpected arguments"},
		{name: "language command", args: []string{"language", "ta_in"}, wantCmd: CommandLanguage, wantLang: "ta-IN"},
		{name: "language command missing code", args: []string{"language"}, wantErr: "exactly one language code"},
		{name: "language command unsupported", args: []string{"language", "xx"}, wantErr: "unsupported language"},
		{name: "language flag on run", args: []string{"-l", "hi-IN", "run"}, wantCmd: CommandRun, wantLang: "hi-IN"},
		{name: "language flag unsupported", args: []string{"--language", "zz", "serve"}, wantErr: "--language"},
		{name: "history default limit", args: []string{"history"}, wantCmd: CommandHistory},
		{name: "history with limit", args: []string{"history", "5"}, wantCmd: CommandHistory, wantLimit: 5},
		{name: "history bad limit", args: []string{"history", "zero"}, wantErr: "positive integer"},
		{name: "double dash ends flags", args: []string{"--", "languages"}, wantCmd: CommandLanguages},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantLang, parsed.Language)
			require.Equal(t, tc.wantLimit, parsed.Limit)
		})
	}
}

func TestParseFlagErrorsAreTyped(t *testing.T) {
	_, err := Parse([]string{"--nope"})
	var flagErr *flags.Error
	require.True(t, errors.As(err, &flagErr))
	require.Equal(t, flags.ErrUnknownFlag, flagErr.Type)
}

func TestHelpTextListsEveryCommand(t *testing.T) {
	help := HelpText("signflow")
	for cmd := range validCommands {
		require.Contains(t, help, "  "+string(cmd))
	}
}
