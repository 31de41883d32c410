package realtime

import "errors"

// Event names written on the push channel.
const (
	EventInit      = "init"
	EventPresence  = "presence"
	EventDocument  = "document"
	EventHeartbeat = "heartbeat"
)

var (
	ErrHubClosed = errors.New("realtime hub is shut down")

	errConnectionClosed = errors.New("connection closed")
	errQueueFull        = errors.New("outbound queue full")
)

// Frame is one named event with its JSON encoded payload.
type Frame struct {
	Event string
	Data  []byte
}

// Sink is the transport side of a push channel (an SSE response, a websocket).
// Send is only ever called from the connection's single writer goroutine.
type Sink interface {
	Send(frame Frame) error
	Close() error
}
