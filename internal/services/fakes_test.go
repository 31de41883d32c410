package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"document-service/internal/domain"
)

type memoryDocuments struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]domain.Document
	reads  int
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{docs: make(map[int64]domain.Document)}
}

func (m *memoryDocuments) CreateDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	doc.ID = m.nextID
	doc.CreatedAt = time.Now()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memoryDocuments) GetDocument(_ context.Context, id int64) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &doc, nil
}

func (m *memoryDocuments) UpdateDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	now := time.Now()
	doc.UpdatedAt = &now
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memoryDocuments) GetDocumentsByOwner(_ context.Context, ownerID int64) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Document
	for id := int64(1); id <= m.nextID; id++ {
		if doc, ok := m.docs[id]; ok && doc.OwnerID == ownerID {
			out = append(out, &doc)
		}
	}
	return out, nil
}

func (m *memoryDocuments) GetDocumentsByIDs(_ context.Context, ids []int64) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Document
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			out = append(out, &doc)
		}
	}
	return out, nil
}

func (m *memoryDocuments) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

type memoryChanges struct {
	mu      sync.Mutex
	changes []*domain.DocumentChange
	err     error
}

func (m *memoryChanges) SaveChange(_ context.Context, change *domain.DocumentChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	change.ID = int64(len(m.changes) + 1)
	m.changes = append(m.changes, change)
	return nil
}

func (m *memoryChanges) GetChanges(_ context.Context, documentID int64) ([]*domain.DocumentChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DocumentChange
	for _, c := range m.changes {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memoryShares struct {
	mu     sync.Mutex
	shares []*domain.DocumentShare
}

func (m *memoryShares) FindShare(_ context.Context, documentID, userID int64) (*domain.DocumentShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shares {
		if s.DocumentID == documentID && s.UserID == userID {
			return s, nil
		}
	}
	return nil, domain.ErrShareNotFound
}

func (m *memoryShares) CreateShare(_ context.Context, share *domain.DocumentShare) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	share.ID = int64(len(m.shares) + 1)
	m.shares = append(m.shares, share)
	return nil
}

func (m *memoryShares) GetSharesForUser(_ context.Context, userID int64) ([]*domain.DocumentShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DocumentShare
	for _, s := range m.shares {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryShares) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shares)
}

type memoryCache struct {
	mu   sync.Mutex
	docs map[int64]domain.Document
	err  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{docs: make(map[int64]domain.Document)}
}

func (c *memoryCache) GetDocument(_ context.Context, id int64) (*domain.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &doc, nil
}

func (c *memoryCache) SetDocument(_ context.Context, doc *domain.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.ID] = *doc
	return nil
}

func (c *memoryCache) InvalidateDocument(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
	return nil
}

type staticUsers map[string]int64

func (u staticUsers) FindUserIDByEmail(_ context.Context, email string) (int64, error) {
	id, ok := u[email]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return id, nil
}

type broadcastCall struct {
	documentID int64
	doc        *domain.Document
	change     *domain.DocumentChange
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcaster) BroadcastChange(documentID int64, doc *domain.Document, change *domain.DocumentChange) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{documentID: documentID, doc: doc, change: change})
	return 1
}

func (b *recordingBroadcaster) snapshot() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastCall(nil), b.calls...)
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []*domain.DocumentChange
}

func (n *recordingNotifier) NotifyChange(_ context.Context, _ *domain.Document, change *domain.DocumentChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.ChangeEvent
	err    error
}

func (p *fakePublisher) PublishChange(ctx context.Context, event *domain.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

var errBoom = errors.New("boom")
