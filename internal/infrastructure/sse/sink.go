package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"document-service/internal/realtime"
)

var ErrSinkClosed = errors.New("event stream closed")

// Sink writes frames as a text/event-stream response.
type Sink struct {
	w            io.Writer
	rc           *http.ResponseController
	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func NewSink(w http.ResponseWriter, writeTimeout time.Duration) *Sink {
	return &Sink{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

// PrepareHeaders sets the event stream headers and flushes them so the client
// sees the stream open before the first event.
func PrepareHeaders(w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return http.NewResponseController(w).Flush()
}

func (s *Sink) Send(frame realtime.Frame) error {
	select {
	case <-s.closed:
		return ErrSinkClosed
	default:
	}

	if s.writeTimeout > 0 {
		// Not every ResponseWriter supports deadlines; writing still works without one.
		_ = s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteFrame(s.w, frame); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *Sink) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// WriteFrame encodes one frame. Heartbeats are comment lines, which clients ignore.
func WriteFrame(w io.Writer, frame realtime.Frame) error {
	var buf bytes.Buffer
	if frame.Event == realtime.EventHeartbeat {
		buf.WriteString(": heartbeat\n\n")
	} else {
		fmt.Fprintf(&buf, "event: %s\n", frame.Event)
		for _, line := range bytes.Split(frame.Data, []byte("\n")) {
			buf.WriteString("data: ")
			buf.Write(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}
