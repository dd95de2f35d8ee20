package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/signflow/internal/fsm"
	"github.com/rbright/signflow/internal/session"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler Handler) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "signflow.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- Serve(ctx, listener, handler, nil) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
	})
	return socketPath
}

func TestSendRoundTripThroughRouter(t *testing.T) {
	snap := session.Snapshot{Generation: 3, Language: "hi-IN", State: session.Listening{Language: "hi-IN"}}
	got := make(chan Request, 1)
	socketPath := serve(t, Router{
		CommandLanguage: func(_ context.Context, req Request) Response {
			got <- req
			return SnapshotResponse(snap, "language set")
		},
	})

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandLanguage, Language: "hi-IN"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "hi-IN", (<-got).Language)
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.PhaseListening), resp.State)
	require.Equal(t, uint64(3), resp.Generation)
	require.Equal(t, "language set", resp.Message)
	require.NotNil(t, resp.Session)
	require.Equal(t, "hi-IN", resp.Session.Language)
}

func TestRouterRejectsUnknownCommand(t *testing.T) {
	socketPath := serve(t, Router{})

	resp, err := Send(context.Background(), socketPath, Request{Command: "toggle"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, `unknown command "toggle"`)
}

func TestSendMissingSocketIsNotRunning(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "absent.sock"), Request{Command: CommandStatus}, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestSendDecodeResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "signflow.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.ErrorContains(t, err, "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "signflow.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.ErrorContains(t, err, "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	socketPath := serve(t, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestProbe(t *testing.T) {
	socketPath := serve(t, Router{
		CommandStatus: func(context.Context, Request) Response { return Response{OK: true, State: "idle"} },
	})

	alive, err := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	alive, err = Probe(context.Background(), filepath.Join(t.TempDir(), "none.sock"), 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}
