package protocol

import "encoding/json"

// Client → server frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// Server → client frame types.
const (
	FrameMessages        = "messages"
	FrameSessionStarted  = "session:started"
	FrameSessionStopped  = "session:stopped"
	FrameSessionError    = "session:error"
	FrameSessionActivity = "session:activity"
	FrameError           = "error"
)

// Stop reasons for a session:stopped frame.
const (
	StopReasonUser      = "user"
	StopReasonCompleted = "completed"
	StopReasonErrored   = "errored"
)

// ByteRange describes the [start, end) byte span a MessageBatch covers.
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// ClientFrame is a frame sent from a WebSocket client to the server.
type ClientFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

// ServerFrame is a frame sent from the server to a WebSocket client.
// Exactly one of the payload fields is populated per Type.
type ServerFrame struct {
	Type string `json:"type"`

	// messages
	SessionID string          `json:"sessionId,omitempty"`
	Messages  []ParsedMessage `json:"messages,omitempty"`
	ByteRange *ByteRange      `json:"byteRange,omitempty"`

	// session:started
	ProjectID string `json:"projectId,omitempty"`
	CWD       string `json:"cwd,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`

	// session:stopped / session:error / session:activity
	Reason     string `json:"reason,omitempty"`
	StoppedAt  string `json:"stoppedAt,omitempty"`
	Error      string `json:"error,omitempty"`
	OccurredAt string `json:"occurredAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// MessageBatch is the tailer's output unit: newly parsed records plus the
// byte range of the file they came from.
type MessageBatch struct {
	SessionID string          `json:"sessionId"`
	Messages  []ParsedMessage `json:"messages"`
	ByteRange ByteRange       `json:"byteRange"`
}

// NewMessagesFrame builds a "messages" server frame from a MessageBatch.
func NewMessagesFrame(b MessageBatch) ServerFrame {
	return ServerFrame{
		Type:      FrameMessages,
		SessionID: b.SessionID,
		Messages:  b.Messages,
		ByteRange: &ByteRange{Start: b.ByteRange.Start, End: b.ByteRange.End},
	}
}

// NewErrorFrame builds an "error" server frame.
func NewErrorFrame(code, message string) ServerFrame {
	return ServerFrame{Type: FrameError, Code: code, Message: message}
}

// ParseClientFrame decodes a raw WebSocket text message into a ClientFrame.
func ParseClientFrame(raw []byte) (ClientFrame, error) {
	var f ClientFrame
	err := json.Unmarshal(raw, &f)
	return f, err
}
