package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

var errSinkBroken = errors.New("broken pipe")

// recordingSink keeps every frame written to it. failOn makes Send fail for
// matching frames; block makes Send wait until the sink is closed.
type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
	failOn func(Frame) bool
	block  bool

	closeOnce sync.Once
	closedCh  chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{closedCh: make(chan struct{})}
}

func (s *recordingSink) Send(f Frame) error {
	if s.block {
		<-s.closedCh
		return errSinkBroken
	}
	if s.failOn != nil && s.failOn(f) {
		return errSinkBroken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) Close() error {
	s.closeOnce.Do(func() { close(s.closedCh) })
	return nil
}

func (s *recordingSink) isClosed() bool {
	select {
	case <-s.closedCh:
		return true
	default:
		return false
	}
}

func (s *recordingSink) events(name string) []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Frame
	for _, f := range s.frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (s *recordingSink) all() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

func failOnEvent(name string) func(Frame) bool {
	return func(f Frame) bool { return f.Event == name }
}

type fakeDocuments struct {
	mu   sync.Mutex
	docs map[int64]*domain.Document
}

func newFakeDocuments(docs ...*domain.Document) *fakeDocuments {
	f := &fakeDocuments{docs: make(map[int64]*domain.Document)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocuments) GetDocument(_ context.Context, documentID int64) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func newTestHub(t *testing.T, queueSize int, docs ...*domain.Document) *Hub {
	t.Helper()
	return newTestHubWithReader(t, newFakeDocuments(docs...), Options{OutboundQueueSize: queueSize})
}

func newTestHubWithOptions(t *testing.T, opts Options, docs ...*domain.Document) *Hub {
	t.Helper()
	return newTestHubWithReader(t, newFakeDocuments(docs...), opts)
}

func newTestHubWithReader(t *testing.T, reader DocumentReader, opts Options) *Hub {
	t.Helper()
	h := NewHub(reader, opts, logger.NewNop())
	t.Cleanup(h.Shutdown)
	return h
}

// gatedDocuments holds every lookup until the gate is opened. Each lookup
// signals loading when it starts.
type gatedDocuments struct {
	*fakeDocuments
	loading chan struct{}

	mu   sync.Mutex
	gate chan struct{}
}

func newGatedDocuments(docs ...*domain.Document) *gatedDocuments {
	return &gatedDocuments{
		fakeDocuments: newFakeDocuments(docs...),
		loading:       make(chan struct{}, 1),
		gate:          make(chan struct{}),
	}
}

func (g *gatedDocuments) GetDocument(ctx context.Context, documentID int64) (*domain.Document, error) {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()

	g.loading <- struct{}{}
	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeDocuments.GetDocument(ctx, documentID)
}

func (g *gatedDocuments) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gate)
}

// close installs a fresh gate for the lookups that follow.
func (g *gatedDocuments) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
}

func connect(t *testing.T, h *Hub, documentID int64, userID *int64, sink Sink) *Connection {
	t.Helper()
	conn, err := h.OnConnect(context.Background(), documentID, userID, sink)
	if err != nil {
		t.Fatalf("OnConnect(%d) error = %v", documentID, err)
	}
	return conn
}

func user(id int64) *int64 {
	return &id
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func decodePresence(t *testing.T, f Frame) []int64 {
	t.Helper()
	var users []int64
	if err := json.Unmarshal(f.Data, &users); err != nil {
		t.Fatalf("decode presence %s: %v", f.Data, err)
	}
	return users
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
