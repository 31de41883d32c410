package services

import (
	"context"
	"errors"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

// DocumentReader loads document snapshots, reading through the redis cache
// when one is configured. The realtime hub uses it for init events.
type DocumentReader struct {
	documents domain.DocumentRepository
	cache     domain.DocumentCache
	log       logger.Logger
}

// NewDocumentReader accepts a nil cache.
func NewDocumentReader(documents domain.DocumentRepository, cache domain.DocumentCache, log logger.Logger) *DocumentReader {
	return &DocumentReader{documents: documents, cache: cache, log: log}
}

func (r *DocumentReader) GetDocument(ctx context.Context, documentID int64) (*domain.Document, error) {
	if r.cache != nil {
		doc, err := r.cache.GetDocument(ctx, documentID)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			r.log.Warn("Document cache read failed", "document_id", documentID, "error", err)
		}
	}

	doc, err := r.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	r.Store(ctx, doc)
	return doc, nil
}

// Store replaces the cached snapshot after a write.
func (r *DocumentReader) Store(ctx context.Context, doc *domain.Document) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetDocument(ctx, doc); err != nil {
		r.log.Warn("Failed to cache document", "document_id", doc.ID, "error", err)
		// A stale snapshot is worse than none.
		if err := r.cache.InvalidateDocument(ctx, doc.ID); err != nil {
			r.log.Error("Failed to drop cached document", "document_id", doc.ID, "error", err)
		}
	}
}
