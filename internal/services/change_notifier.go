package services

import (
	"context"
	"time"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

// ChangeBroadcaster delivers a change to the viewers connected to this process.
type ChangeBroadcaster interface {
	BroadcastChange(documentID int64, doc *domain.Document, change *domain.DocumentChange) int
}

// LocalChangeNotifier hands changes straight to the local hub.
type LocalChangeNotifier struct {
	broadcaster ChangeBroadcaster
	log         logger.Logger
}

func NewLocalChangeNotifier(broadcaster ChangeBroadcaster, log logger.Logger) *LocalChangeNotifier {
	return &LocalChangeNotifier{broadcaster: broadcaster, log: log}
}

func (n *LocalChangeNotifier) NotifyChange(_ context.Context, doc *domain.Document, change *domain.DocumentChange) {
	queued := n.broadcaster.BroadcastChange(doc.ID, doc, change)
	n.log.Debug("Change broadcast", "document_id", doc.ID, "change_id", change.ID, "viewers", queued)
}

// RelayChangeNotifier publishes changes so every instance (this one included)
// broadcasts them to its own viewers. If publishing fails the change is at
// least delivered locally.
type RelayChangeNotifier struct {
	publisher domain.ChangePublisher
	fallback  ChangeBroadcaster
	origin    string
	timeout   time.Duration
	log       logger.Logger
}

func NewRelayChangeNotifier(publisher domain.ChangePublisher, fallback ChangeBroadcaster, origin string,
	timeout time.Duration, log logger.Logger) *RelayChangeNotifier {
	return &RelayChangeNotifier{
		publisher: publisher,
		fallback:  fallback,
		origin:    origin,
		timeout:   timeout,
		log:       log,
	}
}

func (n *RelayChangeNotifier) NotifyChange(ctx context.Context, doc *domain.Document, change *domain.DocumentChange) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	event := &domain.ChangeEvent{Origin: n.origin, Document: doc, Change: change}
	if err := n.publisher.PublishChange(pubCtx, event); err != nil {
		n.log.Error("Failed to publish change, broadcasting locally", "document_id", doc.ID, "error", err)
		n.fallback.BroadcastChange(doc.ID, doc, change)
	}
}
