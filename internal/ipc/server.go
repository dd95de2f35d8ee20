package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// requestTimeout bounds how long one client may take to send its request line.
const requestTimeout = 2 * time.Second

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Router dispatches requests by command name.
type Router map[string]HandlerFunc

func (r Router) Handle(ctx context.Context, req Request) Response {
	h, ok := r[req.Command]
	if !ok {
		return Failure(fmt.Sprintf("unknown command %q", req.Command))
	}
	return h(ctx, req)
}

// Serve answers one request per connection until ctx ends or listener is
// closed, then waits for in-progress replies.
func Serve(ctx context.Context, listener net.Listener, handler Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()
	for {
		conn, err := listener.Accept()
		switch {
		case err == nil:
		case errors.Is(err, net.ErrClosed), ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		inflight.Go(func() {
			defer conn.Close()
			answer(ctx, conn, handler, logger)
		})
	}
}

// answer reads one request line from c and writes the handler's reply.
func answer(ctx context.Context, c net.Conn, handler Handler, logger *slog.Logger) {
	_ = c.SetReadDeadline(time.Now().Add(requestTimeout))

	var resp Response
	line, err := bufio.NewReader(c).ReadBytes('\n')
	if err != nil {
		resp = Failure(fmt.Sprintf("read request: %v", err))
	} else {
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = Failure(fmt.Sprintf("decode request: %v", err))
		} else {
			resp = handler.Handle(ctx, req)
			logger.Debug("ipc request", "command", req.Command, "ok", resp.OK, "state", resp.State)
		}
	}
	_ = json.NewEncoder(c).Encode(resp)
}
