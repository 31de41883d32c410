package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"document-service/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisDocumentCache keeps recent document snapshots so that a burst of
// viewers opening the same document does not all hit MySQL.
type RedisDocumentCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDocumentCache(client *redis.Client, ttl time.Duration) *RedisDocumentCache {
	return &RedisDocumentCache{client: client, ttl: ttl}
}

func documentKey(documentID int64) string {
	return fmt.Sprintf("document:%d:snapshot", documentID)
}

func (r *RedisDocumentCache) GetDocument(ctx context.Context, documentID int64) (*domain.Document, error) {
	data, err := r.client.Get(ctx, documentKey(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *RedisDocumentCache) SetDocument(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, documentKey(doc.ID), data, r.ttl).Err()
}

func (r *RedisDocumentCache) InvalidateDocument(ctx context.Context, documentID int64) error {
	return r.client.Del(ctx, documentKey(documentID)).Err()
}
