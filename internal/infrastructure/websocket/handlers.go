package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"document-service/internal/domain"
	"document-service/internal/realtime"
	"document-service/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const maxClientMessageSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin checks are done by the gateway in front
	},
}

type Options struct {
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type WebSocketHandler struct {
	hub       *realtime.Hub
	documents realtime.DocumentReader
	opts      Options
	log       logger.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, documents realtime.DocumentReader, opts Options, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		documents: documents,
		opts:      opts,
		log:       log,
	}
}

// HandleConnection serves /ws/documents/{documentID}?userId=.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	documentID, err := strconv.ParseInt(mux.Vars(r)["documentID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	var userID *int64
	if raw := r.URL.Query().Get("userId"); raw != "" {
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid userId", http.StatusBadRequest)
			return
		}
		userID = &uid
	}

	// Check the document exists before holding a connection open for it
	if _, err := h.documents.GetDocument(r.Context(), documentID); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load document", "error", err, "document_id", documentID)
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	// The request context ends with the handler; the connection outlives it.
	viewer, err := h.hub.OnConnect(context.Background(), documentID, userID, NewSink(conn, h.opts.WriteTimeout))
	if err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	go h.readLoop(conn, viewer)
}

// readLoop only watches for the client going away. Every write goes through
// the viewer's writer goroutine.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, viewer *realtime.Connection) {
	defer func() {
		h.hub.OnDisconnect(viewer)
		_ = conn.Close()
	}()

	if h.opts.IdleTimeout > 0 {
		timer := time.AfterFunc(h.opts.IdleTimeout, func() {
			h.log.Info("Closing idle connection", "connection_id", viewer.ID())
			h.hub.OnDisconnect(viewer)
			_ = conn.Close()
		})
		defer timer.Stop()
	}

	conn.SetReadLimit(maxClientMessageSize)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "connection_id", viewer.ID(), "error", err)
			}
			return
		}
	}
}
