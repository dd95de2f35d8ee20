package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rbright/signflow/internal/config"
	"github.com/rbright/signflow/internal/fsm"
	"github.com/rbright/signflow/internal/history"
	"github.com/rbright/signflow/internal/session"
)

// commandRun captures one utterance, waits for it to settle, and prints the
// outcome. Interrupting while listening stops the recording and converts what
// was heard; interrupting later, or a second time, abandons the run.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	o, closePipeline, err := r.orchestrator(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer closePipeline()
	defer o.Close()

	o.StartCapture()
	gen := o.Snapshot().Generation
	fmt.Fprintf(r.Stderr, "listening (%s)...\n", cfg.Language)

	awaitCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()
	go func() {
		select {
		case <-ctx.Done():
		case <-awaitCtx.Done():
			return
		}
		if o.Snapshot().Phase() != fsm.PhaseListening {
			abandon()
			return
		}

		more, stop := r.interrupts()
		defer stop()
		fmt.Fprintln(r.Stderr, "stopping; interrupt again to abandon")
		o.StopCapture()
		select {
		case <-more:
			abandon()
		case <-awaitCtx.Done():
		}
	}()

	snap, err := o.Await(awaitCtx, session.Settled(gen))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	if cfg.History.Enable {
		r.recordRun(ctx, cfg.History, snap, logger)
	}

	logRun(logger, snap)
	fmt.Fprint(r.Stdout, formatView(snap.View()))
	if snap.Phase() == fsm.PhaseFailed {
		return exitFailure
	}
	return exitOK
}

// interrupts subscribes to signals arriving after the command context has
// already been cancelled.
func (r Runner) interrupts() (<-chan os.Signal, func()) {
	if r.Interrupts != nil {
		return r.Interrupts()
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

func (r Runner) recordRun(ctx context.Context, hc config.HistoryConfig, snap session.Snapshot, logger *slog.Logger) {
	entry, ok := history.EntryFrom(snap, time.Now())
	if !ok {
		return
	}
	store, err := openHistory(context.WithoutCancel(ctx), hc)
	if err != nil {
		logger.Warn("history unavailable", "error", err.Error())
		return
	}
	defer store.Close()
	if err := store.Append(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("history append failed", "run_id", entry.RunID, "error", err.Error())
	}
}

func logRun(logger *slog.Logger, snap session.Snapshot) {
	fields := []any{
		"generation", snap.Generation,
		"run_id", snap.RunID,
		"language", snap.Language.String(),
		"phase", snap.Phase(),
	}
	if u, ok := snap.Utterance(); ok {
		fields = append(fields, "utterance_length", len(u.RawText), "captured_at", u.CapturedAt.Format(time.RFC3339Nano))
	}
	if res, ok := snap.Result(); ok {
		fields = append(fields, "emotion", string(res.Emotion), "confidence", res.Confidence, "video", res.HasVideo())
	}
	if e, ok := snap.Err(); ok {
		logger.Error("run failed", append(fields, "kind", string(e.Kind), "detail", e.Detail)...)
		return
	}
	logger.Info("run complete", fields...)
}
