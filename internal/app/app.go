// Package app dispatches parsed commands to the daemon, the one-shot runner,
// and the local inspection commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/signflow/internal/audio"
	"github.com/rbright/signflow/internal/cli"
	"github.com/rbright/signflow/internal/config"
	"github.com/rbright/signflow/internal/doctor"
	"github.com/rbright/signflow/internal/history"
	"github.com/rbright/signflow/internal/ipc"
	"github.com/rbright/signflow/internal/language"
	"github.com/rbright/signflow/internal/logging"
	"github.com/rbright/signflow/internal/version"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	forwardTimeout = 2 * time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Build overrides capture and converter construction; nil uses the live
	// microphone and remote client.
	Build BuildFunc
	// Interrupts overrides the signal subscription run uses to abandon on a
	// second Ctrl-C; nil listens for SIGINT and SIGTERM.
	Interrupts func() (<-chan os.Signal, func())
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("signflow"))
		return exitUsage
	}

	switch parsed.Command {
	case cli.CommandHelp:
		fmt.Fprint(r.Stdout, cli.HelpText("signflow"))
		return exitOK
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	case cli.CommandLanguages:
		for _, info := range language.Catalog() {
			mark := " "
			if info.Code.IsPivot() {
				mark = "*"
			}
			fmt.Fprintf(r.Stdout, "%s %-6s %s\n", mark, info.Code, info.Name)
		}
		return exitOK
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	logRuntime, err := logging.New(loaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range loaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"log", logRuntime.Path,
	)

	cfg := loaded.Config
	if parsed.Language != "" && parsed.Command != cli.CommandLanguage {
		cfg.Language = parsed.Language
	}

	switch parsed.Command {
	case cli.CommandServe:
		return r.commandServe(ctx, cfg, logger)
	case cli.CommandRun:
		return r.commandRun(ctx, cfg, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded, doctor.Probes{}, logger)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return exitOK
		}
		return exitFailure
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfg.History, parsed.Limit)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStart:
		return r.forward(ctx, ipc.Request{Command: ipc.CommandStart})
	case cli.CommandStop:
		return r.forward(ctx, ipc.Request{Command: ipc.CommandStop})
	case cli.CommandLanguage:
		return r.forward(ctx, ipc.Request{Command: ipc.CommandLanguage, Language: parsed.Language.String()})
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return exitUsage
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return exitFailure
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark, device.ID, device.Description, device.State, yesNo(device.Available), yesNo(device.Muted))
	}
	return exitOK
}

func (r Runner) commandHistory(ctx context.Context, hc config.HistoryConfig, limit int) int {
	if !hc.Enable {
		fmt.Fprintln(r.Stderr, "error: history is disabled (history.enable=false)")
		return exitFailure
	}
	if limit <= 0 {
		limit = hc.Limit
	}

	path, err := history.ResolvePath(hc.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer store.Close()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.Stdout, "no finished runs")
		return exitOK
	}
	for _, e := range entries {
		fmt.Fprintln(r.Stdout, formatEntry(e))
	}
	return exitOK
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, err := send(ctx, ipc.Request{Command: ipc.CommandStatus})
	switch {
	case errors.Is(err, ipc.ErrNotRunning):
		fmt.Fprintln(r.Stdout, "idle (daemon not running)")
		return exitOK
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if resp.Session != nil {
		fmt.Fprint(r.Stdout, formatView(*resp.Session))
		return exitOK
	}
	fmt.Fprintln(r.Stdout, orDefault(resp.State, "idle"))
	return exitOK
}

func (r Runner) forward(ctx context.Context, req ipc.Request) int {
	resp, err := send(ctx, req)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return exitOK
}

// send forwards req to the daemon socket. A reply with ok=false becomes an error.
func send(ctx context.Context, req ipc.Request) (ipc.Response, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, fmt.Errorf("%w: %w", ipc.ErrNotRunning, err)
	}
	resp, err := ipc.Send(ctx, socketPath, req, forwardTimeout)
	if err != nil {
		if errors.Is(err, ipc.ErrNotRunning) {
			return ipc.Response{}, err
		}
		return ipc.Response{}, fmt.Errorf("forward command %q: %w", req.Command, err)
	}
	if !resp.OK {
		return resp, errors.New(orDefault(resp.Error, "daemon rejected "+req.Command))
	}
	return resp, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
