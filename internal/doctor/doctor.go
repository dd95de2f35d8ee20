// Package doctor runs readiness diagnostics for config, the conversion service, audio, and local state.
package doctor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/signflow/internal/audio"
	"github.com/rbright/signflow/internal/config"
	"github.com/rbright/signflow/internal/history"
	"github.com/rbright/signflow/internal/remote"
)

const probeTimeout = 3 * time.Second

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
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Probes are the live checks. Zero fields use the real implementations.
type Probes struct {
	Remote func(context.Context, remote.Config) error
	Audio  func(ctx context.Context, input, fallback string) (audio.Selection, error)
}

// Run executes environment, config, and runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, probes Probes, logger *slog.Logger) Report {
	if probes.Remote == nil {
		probes.Remote = func(ctx context.Context, cfg remote.Config) error { return probeRemote(ctx, cfg, logger) }
	}
	if probes.Audio == nil {
		probes.Audio = audio.SelectDevice
	}
	cfg := loaded.Config

	checks := []Check{checkConfig(loaded)}
	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "IPC socket directory available", "XDG_RUNTIME_DIR is empty; start/stop/status cannot reach the daemon"))
	checks = append(checks, checkRemote(ctx, cfg.Remote, probes.Remote))
	checks = append(checks, checkAudioSelection(ctx, cfg.Audio, probes.Audio))
	if cfg.History.Enable {
		checks = append(checks, checkHistory(ctx, cfg.History))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warnings)", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func checkRemote(ctx context.Context, rc config.RemoteConfig, probe func(context.Context, remote.Config) error) Check {
	cfg := remote.FromConfig(rc)
	name := "remote." + cfg.Transport

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := probe(ctx, cfg); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("ready at %s", cfg.Endpoint())}
}

func probeRemote(ctx context.Context, cfg remote.Config, logger *slog.Logger) error {
	client, err := remote.New(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ready(ctx)
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	ac config.AudioConfig,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, ac.Input, ac.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkHistory(ctx context.Context, hc config.HistoryConfig) Check {
	path, err := history.ResolvePath(hc.Path)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	defer store.Close()

	n, err := store.Count(ctx)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	return Check{Name: "history", Pass: true, Message: fmt.Sprintf("%d runs in %s", n, path)}
}
