package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rbright/signflow/internal/language"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	if _, err := language.Parse(string(cfg.Language)); err != nil {
		return nil, fmt.Errorf("language: %w", err)
	}

	if err := validateRemote(cfg.Remote); err != nil {
		return nil, err
	}

	if cfg.Audio.MaxSeconds <= 0 {
		return nil, errors.New("audio.max_seconds must be > 0")
	}
	if cfg.Audio.MaxSeconds > 60 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.max_seconds=%d uploads large clips; consider <= 15", cfg.Audio.MaxSeconds)})
	}
	if cfg.Audio.SilenceLevel < 0 || cfg.Audio.SilenceLevel >= 1 {
		return nil, errors.New("audio.silence_level must be in [0,1)")
	}

	if cfg.Server.EnableWebsocket {
		host, _, err := net.SplitHostPort(cfg.Server.Websocket)
		if err != nil {
			return nil, fmt.Errorf("server.websocket: %w", err)
		}
		if !isLoopback(host) {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("server.websocket %q accepts commands from other hosts", cfg.Server.Websocket)})
		}
		if cfg.Server.CommandsPerSecond <= 0 {
			return nil, errors.New("server.commands_per_second must be > 0")
		}
	}

	if cfg.History.Enable && cfg.History.Limit <= 0 {
		return nil, errors.New("history.limit must be > 0")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}

	return warnings, nil
}

func validateRemote(r RemoteConfig) error {
	switch r.Transport {
	case "http":
		u, err := url.Parse(r.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("remote.base_url %q must be an http(s) URL", r.BaseURL)
		}
		paths := []struct{ key, value string }{
			{"remote.translate_path", r.TranslatePath},
			{"remote.classify_path", r.ClassifyPath},
			{"remote.transcribe_path", r.TranscribePath},
			{"remote.health_path", r.HealthPath},
		}
		for _, path := range paths {
			if !strings.HasPrefix(path.value, "/") {
				return fmt.Errorf("%s must start with '/'", path.key)
			}
		}
	case "grpc":
		if r.GRPC == "" {
			return errors.New("remote.grpc must not be empty when remote.transport=grpc")
		}
	default:
		return fmt.Errorf("remote.transport must be one of: http, grpc (got %q)", r.Transport)
	}

	if r.TimeoutMS <= 0 {
		return errors.New("remote.timeout_ms must be > 0")
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
