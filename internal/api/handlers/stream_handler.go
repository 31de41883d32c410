package handlers

import (
	"errors"
	"net/http"
	"time"

	"document-service/internal/domain"
	"document-service/internal/infrastructure/sse"
	"document-service/internal/realtime"
	"document-service/pkg/logger"

	"github.com/labstack/echo/v4"
)

type StreamOptions struct {
	WriteTimeout time.Duration
	// IdleTimeout ends a stream after this long; zero leaves it open.
	IdleTimeout time.Duration
}

// StreamHandler serves the server-sent event stream of a document.
type StreamHandler struct {
	hub       *realtime.Hub
	documents realtime.DocumentReader
	opts      StreamOptions
	log       logger.Logger
}

func NewStreamHandler(hub *realtime.Hub, documents realtime.DocumentReader, opts StreamOptions, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub:       hub,
		documents: documents,
		opts:      opts,
		log:       log,
	}
}

// Stream handles GET /api/documents/:documentId/stream?userId=. It returns
// once the client leaves, the idle timeout fires, or the hub drops the viewer.
func (h *StreamHandler) Stream(c echo.Context) error {
	documentID, err := parseID(c.Param("documentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid document id"))
	}
	userID, err := optionalID(c.QueryParam("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid userId"))
	}

	ctx := c.Request().Context()
	if _, err := h.documents.GetDocument(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("Document not found"))
		}
		h.log.Error("Failed to load document", "error", err, "document_id", documentID)
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to load document"))
	}

	w := c.Response()
	if err := sse.PrepareHeaders(w); err != nil {
		h.log.Error("Streaming not supported", "error", err)
		return nil
	}

	sink := sse.NewSink(w, h.opts.WriteTimeout)
	conn, err := h.hub.OnConnect(ctx, documentID, userID, sink)
	if err != nil {
		h.log.Warn("Stream rejected", "document_id", documentID, "error", err)
		return nil
	}

	var idle <-chan time.Time
	if h.opts.IdleTimeout > 0 {
		timer := time.NewTimer(h.opts.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	select {
	case <-ctx.Done():
	case <-idle:
		h.log.Info("Closing idle stream", "connection_id", conn.ID())
	case <-conn.Done():
	}

	h.hub.OnDisconnect(conn)
	_ = sink.Close()
	// The response writer must not be touched after the handler returns.
	<-conn.Stopped()
	return nil
}
