// Package indicator plays audio cues as the conversion session changes phase.
package indicator

import (
	"context"
	"log/slog"

	"github.com/rbright/signflow/internal/config"
	"github.com/rbright/signflow/internal/fsm"
	"github.com/rbright/signflow/internal/session"
)

// Cues maps session transitions to sounds.
type Cues struct {
	enabled bool
	logger  *slog.Logger
	play    func(cue) error
}

func New(cfg config.IndicatorConfig, logger *slog.Logger) *Cues {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cues{enabled: cfg.SoundEnable, logger: logger, play: playPulse}
}

// Run plays a cue for each relevant transition in updates until it closes or
// ctx ends. Playback failures are logged and otherwise ignored.
func (c *Cues) Run(ctx context.Context, updates <-chan session.Snapshot) error {
	var prev session.Snapshot
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if first {
				prev, first = snap, false
				continue
			}
			next, ok := cueFor(prev, snap)
			prev = snap
			if !ok || !c.enabled {
				continue
			}
			if err := c.play(next); err != nil {
				c.logger.Debug("indicator cue failed", "cue", next.String(), "error", err.Error())
			}
		}
	}
}

// cueFor picks the sound for prev -> next. Repeated snapshots of one phase in
// one generation (capturing flag changes) stay silent.
func cueFor(prev, next session.Snapshot) (cue, bool) {
	if prev.Generation == next.Generation && prev.Phase() == next.Phase() {
		return 0, false
	}
	switch next.Phase() {
	case fsm.PhaseListening:
		return cueListen, true
	case fsm.PhaseReady:
		return cueReady, true
	case fsm.PhaseFailed:
		return cueFailed, true
	case fsm.PhaseIdle:
		if prev.Phase() == fsm.PhaseListening && prev.Generation == next.Generation {
			return cueStopped, true
		}
	}
	return 0, false
}
