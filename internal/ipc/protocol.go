package ipc

import "github.com/rbright/signflow/internal/session"

// Commands accepted by the daemon socket.
const (
	CommandStart    = "start"
	CommandStop     = "stop"
	CommandLanguage = "language"
	CommandStatus   = "status"
)

type Request struct {
	Command  string `json:"command"`
	Language string `json:"language,omitempty"`
}

type Response struct {
	OK         bool          `json:"ok"`
	State      string        `json:"state,omitempty"`
	Generation uint64        `json:"generation,omitempty"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	Session    *session.View `json:"session,omitempty"`
}

// SnapshotResponse reports snap as a successful reply.
func SnapshotResponse(snap session.Snapshot, message string) Response {
	view := snap.View()
	return Response{
		OK:         true,
		State:      string(view.Phase),
		Generation: view.Generation,
		Message:    message,
		Session:    &view,
	}
}

// Failure builds an error reply.
func Failure(msg string) Response {
	return Response{OK: false, Error: msg}
}
