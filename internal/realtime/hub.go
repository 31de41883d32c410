package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"document-service/internal/domain"
	"document-service/pkg/logger"
	"document-service/pkg/utils"
)

const (
	reasonDisconnected   = "disconnected"
	reasonDeliveryFailed = "delivery_failed"
	reasonQueueOverflow  = "queue_overflow"
	reasonShutdown       = "shutdown"
)

// DocumentReader loads the snapshot sent to a viewer when it connects.
type DocumentReader interface {
	GetDocument(ctx context.Context, documentID int64) (*domain.Document, error)
}

type Options struct {
	// OutboundQueueSize is the backlog a viewer may carry before it counts as lagging.
	OutboundQueueSize int
	// OverflowGrace is how long a viewer may stay lagging before it is dropped.
	OverflowGrace   time.Duration
	InitLoadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.OutboundQueueSize <= 0 {
		o.OutboundQueueSize = 64
	}
	if o.OverflowGrace <= 0 {
		o.OverflowGrace = 2 * time.Second
	}
	if o.InitLoadTimeout <= 0 {
		o.InitLoadTimeout = 5 * time.Second
	}
	return o
}

type Stats struct {
	Documents    int `json:"documents"`
	Connections  int `json:"connections"`
	PresentUsers int `json:"presentUsers"`
}

// Hub owns the registry and presence tracker of one process and drives every
// connection through open, active and closed.
type Hub struct {
	registry   *Registry
	presence   *PresenceTracker
	dispatcher *Dispatcher
	documents  DocumentReader
	opts       Options
	log        logger.Logger
	closed     atomic.Bool
}

func NewHub(documents DocumentReader, opts Options, log logger.Logger) *Hub {
	h := &Hub{
		registry:  NewRegistry(),
		presence:  NewPresenceTracker(),
		documents: documents,
		opts:      opts.withDefaults(),
		log:       log,
	}
	h.dispatcher = NewDispatcher(h.registry, h.presence, h.terminate, log)
	return h
}

// OnConnect registers a new viewer of documentID writing to sink. userID is
// nil for anonymous viewers. The returned connection stays open until
// OnDisconnect, a delivery failure, or Shutdown.
func (h *Hub) OnConnect(ctx context.Context, documentID int64, userID *int64, sink Sink) (*Connection, error) {
	if h.closed.Load() {
		return nil, ErrHubClosed
	}

	conn := newConnection(utils.GenerateID("conn"), documentID, userID, sink, h.opts.OutboundQueueSize, h.opts.OverflowGrace)
	h.registry.Subscribe(documentID, conn)
	added := h.presence.OnConnectionAdded(documentID, userID)
	go conn.writeLoop(
		func(err error) { h.terminate(conn, reasonDeliveryFailed, err) },
		func(f Frame, err error) {
			h.log.Debug("Best effort send failed", "connection_id", conn.ID(), "event", f.Event, "error", err)
		},
	)

	// Shutdown may have swept the registry between the subscribe and the
	// presence add, in which case its cleanup ran first and left the user behind.
	if h.closed.Load() || conn.State() == StateClosed {
		h.terminate(conn, reasonShutdown, nil)
		if h.presence.OnConnectionRemoved(documentID, userID, h.registry) {
			h.dispatcher.BroadcastPresence(documentID)
		}
		return nil, ErrHubClosed
	}

	// Frames broadcast while the snapshot loads are held and follow init.
	h.sendInit(ctx, conn)

	if added {
		h.dispatcher.BroadcastPresence(documentID)
	} else {
		h.dispatcher.SendPresence(conn)
	}

	h.log.Info("Viewer connected", "connection_id", conn.ID(), "document_id", documentID, "user_id", userIDField(userID))
	return conn, nil
}

// OnDisconnect is called by the transport on completion, timeout or error.
// Calling it more than once, or after the hub already closed the connection, is a no-op.
func (h *Hub) OnDisconnect(conn *Connection) {
	if conn == nil {
		return
	}
	h.terminate(conn, reasonDisconnected, nil)
}

// BroadcastChange fans a persisted change out to the document's viewers and
// returns the number of connections it was queued for.
func (h *Hub) BroadcastChange(documentID int64, doc *domain.Document, change *domain.DocumentChange) int {
	return h.dispatcher.BroadcastChange(documentID, doc, change)
}

func (h *Hub) BroadcastPresence(documentID int64) int {
	return h.dispatcher.BroadcastPresence(documentID)
}

func (h *Hub) Presence(documentID int64) []int64 {
	return h.presence.Presence(documentID)
}

// Heartbeat queues a keep-alive frame on every open connection.
func (h *Hub) Heartbeat() int {
	return h.dispatcher.Heartbeat()
}

func (h *Hub) Stats() Stats {
	return Stats{
		Documents:    len(h.registry.Documents()),
		Connections:  h.registry.Len(),
		PresentUsers: h.presence.Count(),
	}
}

// Shutdown refuses new connections and closes every open one.
func (h *Hub) Shutdown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	for _, documentID := range h.registry.Documents() {
		for _, conn := range h.registry.Snapshot(documentID) {
			h.terminate(conn, reasonShutdown, nil)
		}
	}
	h.log.Info("Realtime hub stopped")
}

func (h *Hub) sendInit(ctx context.Context, conn *Connection) {
	if h.documents == nil {
		conn.activate(nil)
		return
	}
	loadCtx, cancel := context.WithTimeout(ctx, h.opts.InitLoadTimeout)
	defer cancel()

	doc, err := h.documents.GetDocument(loadCtx, conn.DocumentID())
	if err != nil {
		h.log.Warn("Skipping init event, document unavailable",
			"connection_id", conn.ID(), "document_id", conn.DocumentID(), "error", err)
		conn.activate(nil)
		return
	}
	h.dispatcher.SendInit(conn, doc)
}

// terminate is the single cleanup path for a connection, whatever closed it.
func (h *Hub) terminate(conn *Connection, reason string, cause error) {
	if !conn.markClosed() {
		return
	}

	documentID := conn.DocumentID()
	h.registry.Unsubscribe(documentID, conn)
	if h.presence.OnConnectionRemoved(documentID, conn.userID, h.registry) {
		h.dispatcher.BroadcastPresence(documentID)
	}

	// The transport already knows when the client went away; otherwise unblock it.
	if reason != reasonDisconnected {
		if err := conn.sink.Close(); err != nil {
			h.log.Debug("Failed to close sink", "connection_id", conn.ID(), "error", err)
		}
	}

	connectedFor := time.Since(conn.OpenedAt())
	if cause != nil {
		h.log.Warn("Viewer disconnected", "connection_id", conn.ID(), "document_id", documentID,
			"reason", reason, "connected_for", connectedFor, "error", cause)
		return
	}
	h.log.Info("Viewer disconnected", "connection_id", conn.ID(), "document_id", documentID,
		"reason", reason, "connected_for", connectedFor)
}

func userIDField(userID *int64) interface{} {
	if userID == nil {
		return "anonymous"
	}
	return *userID
}
