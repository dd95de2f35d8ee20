package app

import (
	"context"
	"log/slog"

	"github.com/rbright/signflow/internal/audio"
	"github.com/rbright/signflow/internal/config"
	"github.com/rbright/signflow/internal/remote"
	"github.com/rbright/signflow/internal/session"
	"github.com/rbright/signflow/internal/speech"
)

// Pipeline is the orchestrator's capture device and conversion service.
type Pipeline struct {
	Capture   session.CaptureSource
	Converter session.Converter
	Close     func() error
}

// BuildFunc constructs the pipeline collaborators for cfg.
type BuildFunc func(cfg config.Config, logger *slog.Logger) (Pipeline, error)

// buildLive wires the Pulse microphone and the configured remote transport.
// Transcription goes through the same client as translate and classify.
func buildLive(cfg config.Config, logger *slog.Logger) (Pipeline, error) {
	client, err := remote.New(remote.FromConfig(cfg.Remote), logger)
	if err != nil {
		return Pipeline{}, err
	}

	recorder := audio.Recorder{
		Input:       cfg.Audio.Input,
		Fallback:    cfg.Audio.Fallback,
		MaxDuration: cfg.Audio.MaxDuration(),
	}
	open := func(ctx context.Context) (speech.Clip, error) {
		rec, warning, err := recorder.Start(ctx)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			logger.Warn("audio fallback", "warning", warning, "device", rec.Device().ID)
		}
		return rec, nil
	}

	return Pipeline{
		Capture:   speech.NewSource(open, client, logger, cfg.Audio.SilenceLevel),
		Converter: client,
		Close:     client.Close,
	}, nil
}
