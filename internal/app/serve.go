package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rbright/signflow/internal/config"
	"github.com/rbright/signflow/internal/history"
	"github.com/rbright/signflow/internal/indicator"
	"github.com/rbright/signflow/internal/ipc"
	"github.com/rbright/signflow/internal/language"
	"github.com/rbright/signflow/internal/presenter"
	"github.com/rbright/signflow/internal/session"
	"golang.org/x/sync/errgroup"
)

const subscriberBuffer = 16

// commandServe owns the IPC socket and runs the daemon until ctx ends.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	o, closePipeline, err := r.orchestrator(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer closePipeline()
	defer o.Close()

	if err := r.supervise(ctx, cfg, o, listener, logger); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon failed", "error", err.Error())
		return exitFailure
	}
	logger.Info("daemon stopped")
	return exitOK
}

// supervise runs the IPC server and every enabled companion loop; the first
// failure stops them all. Listeners and stores open before any loop starts.
func (r Runner) supervise(
	ctx context.Context,
	cfg config.Config,
	o *session.Orchestrator,
	ipcListener net.Listener,
	logger *slog.Logger,
) error {
	var ws *presenter.Server
	var wsListener net.Listener
	if cfg.Server.EnableWebsocket {
		l, err := net.Listen("tcp", cfg.Server.Websocket)
		if err != nil {
			return fmt.Errorf("listen websocket %s: %w", cfg.Server.Websocket, err)
		}
		defer l.Close()
		ws, wsListener = presenter.New(o, cfg.Server.CommandsPerSecond, logger), l
	}

	var store *history.Store
	if cfg.History.Enable {
		s, err := openHistory(ctx, cfg.History)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(gctx, ipcListener, Router(o), logger)
	})
	if ws != nil {
		g.Go(func() error { return ws.Serve(gctx, wsListener) })
	}
	if cfg.Indicator.SoundEnable {
		updates, unsubscribe := o.Subscribe(subscriberBuffer)
		defer unsubscribe()
		cues := indicator.New(cfg.Indicator, logger)
		g.Go(func() error { return cues.Run(gctx, updates) })
	}
	if store != nil {
		updates, unsubscribe := o.Subscribe(subscriberBuffer)
		defer unsubscribe()
		g.Go(func() error { return history.Record(gctx, store, updates, logger) })
	}

	logger.Info("daemon ready",
		"language", o.Snapshot().Language.String(),
		"websocket", cfg.Server.EnableWebsocket,
		"history", cfg.History.Enable,
	)
	return g.Wait()
}

// Router maps IPC commands onto the orchestrator entry points. Every reply
// carries the snapshot taken right after the command.
func Router(o *session.Orchestrator) ipc.Router {
	return ipc.Router{
		ipc.CommandStart: func(context.Context, ipc.Request) ipc.Response {
			o.StartCapture()
			return ipc.SnapshotResponse(o.Snapshot(), "listening")
		},
		ipc.CommandStop: func(context.Context, ipc.Request) ipc.Response {
			o.StopCapture()
			return ipc.SnapshotResponse(o.Snapshot(), "stopped")
		},
		ipc.CommandLanguage: func(_ context.Context, req ipc.Request) ipc.Response {
			code, err := language.Parse(req.Language)
			if err != nil {
				return ipc.Failure(err.Error())
			}
			o.SetLanguage(code)
			return ipc.SnapshotResponse(o.Snapshot(), "language set to "+code.String())
		},
		ipc.CommandStatus: func(context.Context, ipc.Request) ipc.Response {
			return ipc.SnapshotResponse(o.Snapshot(), "")
		},
	}
}

func (r Runner) orchestrator(cfg config.Config, logger *slog.Logger) (*session.Orchestrator, func(), error) {
	build := r.Build
	if build == nil {
		build = buildLive
	}
	p, err := build(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	closePipeline := func() {
		if p.Close != nil {
			if err := p.Close(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("pipeline close failed", "error", err.Error())
			}
		}
	}
	return session.NewOrchestrator(logger, p.Capture, p.Converter, cfg.Language), closePipeline, nil
}

func openHistory(ctx context.Context, hc config.HistoryConfig) (*history.Store, error) {
	path, err := history.ResolvePath(hc.Path)
	if err != nil {
		return nil, err
	}
	return history.Open(ctx, path)
}
