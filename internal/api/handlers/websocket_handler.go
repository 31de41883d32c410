package handlers

import (
	"net/http"

	"document-service/internal/infrastructure/websocket"
	"document-service/internal/realtime"
	"document-service/pkg/logger"

	"github.com/gorilla/mux"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(hub *realtime.Hub, documents realtime.DocumentReader,
	opts websocket.Options, log logger.Logger) *WebSocketHandlers {
	wsHandler := websocket.NewWebSocketHandler(hub, documents, opts, log)
	return &WebSocketHandlers{
		wsHandler: wsHandler,
	}
}

// Register mounts the viewer socket on the gateway router.
func (h *WebSocketHandlers) Register(r *mux.Router) {
	r.HandleFunc("/ws/documents/{documentID:[0-9]+}", h.HandleConnection).Methods(http.MethodGet)
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
