package services

import (
	"context"
	"fmt"
	"time"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

// ChangeListener feeds relayed changes into the local hub.
type ChangeListener struct {
	broadcaster ChangeBroadcaster
	log         logger.Logger
	retryMin    time.Duration
	retryMax    time.Duration
}

func NewChangeListener(broadcaster ChangeBroadcaster, log logger.Logger) *ChangeListener {
	return &ChangeListener{
		broadcaster: broadcaster,
		log:         log,
		retryMin:    time.Second,
		retryMax:    30 * time.Second,
	}
}

// Start keeps a subscription open until ctx is done, resubscribing with
// exponential backoff whenever it fails or ends.
func (l *ChangeListener) Start(ctx context.Context, subscriber domain.ChangeSubscriber) error {
	l.log.Info("Starting change listener")

	backoff := l.retryMin
	for {
		started := time.Now()
		err := subscriber.SubscribeToChanges(ctx, l.handleChange)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A subscription that held for a while was healthy; start over.
		if time.Since(started) > l.retryMax {
			backoff = l.retryMin
		}
		l.log.Error("Change subscription ended, retrying", "error", err, "retry_in", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > l.retryMax {
			backoff = l.retryMax
		}
	}
}

func (l *ChangeListener) handleChange(event *domain.ChangeEvent) error {
	if event.Document == nil || event.Change == nil {
		return fmt.Errorf("incomplete change event from %q", event.Origin)
	}
	queued := l.broadcaster.BroadcastChange(event.Document.ID, event.Document, event.Change)
	l.log.Debug("Relayed change broadcast", "document_id", event.Document.ID, "origin", event.Origin, "viewers", queued)
	return nil
}
