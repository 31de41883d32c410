package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"document-service/internal/domain"
	"document-service/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// RedisChangeRelay carries persisted changes to every instance holding viewers,
// including the one that published them.
type RedisChangeRelay struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisChangeRelay(client *redis.Client, channel string, log logger.Logger) *RedisChangeRelay {
	return &RedisChangeRelay{
		client:  client,
		channel: channel,
		log:     log,
	}
}

func (r *RedisChangeRelay) PublishChange(ctx context.Context, event *domain.ChangeEvent) error {
	payload, err := encodeChangeEvent(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// SubscribeToChanges blocks, handing every relayed change to handler until ctx is done.
func (r *RedisChangeRelay) SubscribeToChanges(ctx context.Context, handler domain.ChangeHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()

	r.log.Info("Subscribed to document events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}
			event, err := decodeChangeEvent(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse document event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle document event", "document_id", event.Document.ID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Document event subscriber stopped")
			return ctx.Err()
		}
	}
}

func encodeChangeEvent(event *domain.ChangeEvent) (string, error) {
	if event == nil || event.Document == nil || event.Change == nil {
		return "", fmt.Errorf("incomplete change event: %w", domain.ErrInvalidRequest)
	}
	b, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeChangeEvent(payload string) (*domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("invalid event format: %w", err)
	}
	if event.Document == nil || event.Change == nil {
		return nil, fmt.Errorf("invalid event format: missing document or change")
	}
	return &event, nil
}
