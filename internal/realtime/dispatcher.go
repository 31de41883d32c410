package realtime

import (
	"encoding/json"
	"errors"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

type terminateFunc func(conn *Connection, reason string, cause error)

// Dispatcher fans events out to a document's subscribers. It holds no lock of
// its own: it takes a registry snapshot and queues one frame per connection.
type Dispatcher struct {
	registry  *Registry
	presence  *PresenceTracker
	terminate terminateFunc
	log       logger.Logger
}

func NewDispatcher(registry *Registry, presence *PresenceTracker, terminate terminateFunc, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		presence:  presence,
		terminate: terminate,
		log:       log,
	}
}

type changePayload struct {
	Document *domain.Document       `json:"document"`
	Change   *domain.DocumentChange `json:"change"`
}

// BroadcastChange queues a document event for every current subscriber and
// returns how many accepted it. It never waits for delivery.
func (d *Dispatcher) BroadcastChange(documentID int64, doc *domain.Document, change *domain.DocumentChange) int {
	subs := d.registry.Snapshot(documentID)
	if len(subs) == 0 {
		return 0
	}

	data, err := json.Marshal(changePayload{Document: doc, Change: change})
	if err != nil {
		d.log.Error("Failed to encode document event", "document_id", documentID, "error", err)
		return 0
	}
	return d.fanOut(subs, Frame{Event: EventDocument, Data: data})
}

// BroadcastPresence queues the document's full presence list for every subscriber.
func (d *Dispatcher) BroadcastPresence(documentID int64) int {
	subs := d.registry.Snapshot(documentID)
	if len(subs) == 0 {
		return 0
	}

	frame, err := d.presenceFrame(documentID)
	if err != nil {
		d.log.Error("Failed to encode presence event", "document_id", documentID, "error", err)
		return 0
	}
	return d.fanOut(subs, frame)
}

// SendInit activates a connection with the document snapshot as its first
// frame. Unlike the broadcasts, a failure here leaves the connection open.
func (d *Dispatcher) SendInit(conn *Connection, doc *domain.Document) {
	data, err := json.Marshal(doc)
	if err != nil {
		d.log.Warn("Failed to encode init event", "connection_id", conn.ID(), "error", err)
		conn.activate(nil)
		return
	}
	if !conn.activate(&outboundFrame{frame: Frame{Event: EventInit, Data: data}, bestEffort: true}) {
		d.log.Debug("Init event not queued", "connection_id", conn.ID(), "state", conn.State())
	}
}

// SendPresence gives a single connection the current presence list, best effort.
func (d *Dispatcher) SendPresence(conn *Connection) {
	frame, err := d.presenceFrame(conn.DocumentID())
	if err != nil {
		d.log.Warn("Failed to encode presence event", "connection_id", conn.ID(), "error", err)
		return
	}
	if err := conn.enqueue(outboundFrame{frame: frame, bestEffort: true}); err != nil {
		d.log.Debug("Presence event not queued", "connection_id", conn.ID(), "error", err)
	}
}

// Heartbeat queues a keep-alive frame on every connection of every document.
// A connection that can no longer be written to is terminated by its writer.
func (d *Dispatcher) Heartbeat() int {
	n := 0
	for _, documentID := range d.registry.Documents() {
		n += d.fanOut(d.registry.Snapshot(documentID), Frame{Event: EventHeartbeat})
	}
	return n
}

func (d *Dispatcher) presenceFrame(documentID int64) (Frame, error) {
	data, err := json.Marshal(d.presence.Presence(documentID))
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: EventPresence, Data: data}, nil
}

func (d *Dispatcher) fanOut(subs []*Connection, frame Frame) int {
	queued := 0
	for _, conn := range subs {
		err := conn.enqueue(outboundFrame{frame: frame})
		switch {
		case err == nil:
			queued++
		case errors.Is(err, errQueueFull):
			// Terminating runs its own presence broadcast; keep it off the caller's path.
			go d.terminate(conn, reasonQueueOverflow, err)
		}
	}
	return queued
}
