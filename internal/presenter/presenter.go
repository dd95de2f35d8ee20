// Package presenter streams session snapshots to websocket clients and
// accepts start/stop/language commands from them.
package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/signflow/internal/language"
	"github.com/rbright/signflow/internal/session"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxCommandSize = 4 << 10
	snapshotBuffer = 4
)

// Controller is the orchestrator surface the presenter drives.
type Controller interface {
	Snapshot() session.Snapshot
	Subscribe(buffer int) (<-chan session.Snapshot, func())
	StartCapture()
	StopCapture()
	SetLanguage(code language.Code)
}

// Command is one client request.
type Command struct {
	Command  string `json:"command"`
	Language string `json:"language,omitempty"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// Server serves GET /ws and GET /state.
type Server struct {
	ctl      Controller
	logger   *slog.Logger
	limit    rate.Limit
	burst    int
	upgrader websocket.Upgrader
	conns    sync.WaitGroup
}

// New builds a presenter allowing commandsPerSecond commands per connection.
func New(ctl Controller, commandsPerSecond float64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if commandsPerSecond <= 0 {
		commandsPerSecond = 1
	}
	return &Server{
		ctl:    ctl,
		logger: logger,
		limit:  rate.Limit(commandsPerSecond),
		burst:  max(1, int(commandsPerSecond)),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /state", s.serveState)
	return mux
}

// Serve runs the HTTP server on listener until ctx ends, then waits for open
// websocket connections to finish.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("presenter listening", "addr", listener.Addr().String())
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		s.conns.Wait()
		return nil
	}
	return fmt.Errorf("presenter serve: %w", err)
}

func (s *Server) serveState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.ctl.Snapshot().View())
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	c := &client{
		conn:    conn,
		ctl:     s.ctl,
		logger:  s.logger.With("remote", r.RemoteAddr),
		limiter: rate.NewLimiter(s.limit, s.burst),
		errs:    make(chan string, 4),
	}
	c.logger.Debug("websocket connected")
	c.run(r.Context())
	c.logger.Debug("websocket disconnected")
}

// client is one websocket connection. Only the write loop writes to conn.
type client struct {
	conn    *websocket.Conn
	ctl     Controller
	logger  *slog.Logger
	limiter *rate.Limiter
	errs    chan string
}

func (c *client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := c.ctl.Subscribe(snapshotBuffer)
	defer unsubscribe()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		c.readLoop()
	}()

	c.writeLoop(ctx, updates)
	_ = c.conn.Close()
	<-readDone
}

func (c *client) writeLoop(ctx context.Context, updates <-chan session.Snapshot) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeNormal()
			return
		case snap, ok := <-updates:
			if !ok {
				c.closeNormal()
				return
			}
			if err := c.write(snap.View()); err != nil {
				return
			}
		case msg := <-c.errs:
			if err := c.write(errorMessage{Error: msg}); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *client) write(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.logger.Debug("websocket write failed", "error", err.Error())
		return err
	}
	return nil
}

func (c *client) closeNormal() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (c *client) readLoop() {
	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read failed", "error", err.Error())
			}
			return
		}
		// Transport errors end the connection; anything that arrived intact
		// but fails to decode is answered and skipped.
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			c.reportError(fmt.Sprintf("decode command: %v", err))
			continue
		}
		if !c.limiter.Allow() {
			c.reportError("rate limited: too many commands")
			continue
		}
		if err := apply(c.ctl, cmd); err != nil {
			c.reportError(err.Error())
			continue
		}
		c.logger.Debug("websocket command", "command", cmd.Command, "language", cmd.Language)
	}
}

// reportError queues msg for the write loop, dropping it if the queue is full.
func (c *client) reportError(msg string) {
	select {
	case c.errs <- msg:
	default:
	}
}

// apply runs one client command against ctl.
func apply(ctl Controller, cmd Command) error {
	switch cmd.Command {
	case "start":
		ctl.StartCapture()
	case "stop":
		ctl.StopCapture()
	case "language":
		code, err := language.Parse(cmd.Language)
		if err != nil {
			return err
		}
		ctl.SetLanguage(code)
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
	return nil
}
