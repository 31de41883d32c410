package websocket

import (
	"encoding/json"
	"time"

	"document-service/internal/realtime"

	"github.com/gorilla/websocket"
)

// envelope is the text frame sent to websocket viewers.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Sink writes frames to one websocket connection.
type Sink struct {
	conn         wsConn
	writeTimeout time.Duration
}

func NewSink(conn *websocket.Conn, writeTimeout time.Duration) *Sink {
	return &Sink{conn: conn, writeTimeout: writeTimeout}
}

func (s *Sink) Send(frame realtime.Frame) error {
	deadline := time.Time{}
	if s.writeTimeout > 0 {
		deadline = time.Now().Add(s.writeTimeout)
	}

	if frame.Event == realtime.EventHeartbeat {
		return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(envelope{Event: frame.Event, Data: frame.Data})
}

// Close may run concurrently with Send; gorilla allows Close alongside writers.
func (s *Sink) Close() error {
	return s.conn.Close()
}
