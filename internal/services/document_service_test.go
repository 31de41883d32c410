package services

import (
	"context"
	"errors"
	"testing"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

type serviceFixture struct {
	svc      *DocumentService
	docs     *memoryDocuments
	changes  *memoryChanges
	shares   *memoryShares
	cache    *memoryCache
	notifier *recordingNotifier
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		docs:     newMemoryDocuments(),
		changes:  &memoryChanges{},
		shares:   &memoryShares{},
		cache:    newMemoryCache(),
		notifier: &recordingNotifier{},
	}
	users := staticUsers{"bob@example.com": 7}
	log := logger.NewNop()
	f.svc = NewDocumentService(f.docs, f.changes, f.shares, NewDocumentReader(f.docs, f.cache, log), users, f.notifier, log)
	return f
}

func TestCreateDocument(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	doc, err := f.svc.CreateDocument(ctx, "  Notes  ", 1)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if doc.ID == 0 || doc.Title != "Notes" || doc.OwnerID != 1 || doc.Content != "" {
		t.Errorf("CreateDocument() = %+v", doc)
	}

	if _, err := f.svc.CreateDocument(ctx, "   ", 1); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("CreateDocument(blank) error = %v, want ErrInvalidRequest", err)
	}
}

func TestEditDocument_PersistsRecordsAndNotifies(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	doc, _ := f.svc.CreateDocument(ctx, "Notes", 1)

	edited, err := f.svc.EditDocument(ctx, doc.ID, 2, EditRequest{Content: "hello", OperationType: domain.OperationInsert})
	if err != nil {
		t.Fatalf("EditDocument() error = %v", err)
	}
	if edited.Content != "hello" {
		t.Errorf("Content = %q, want hello", edited.Content)
	}

	stored, _ := f.docs.GetDocument(ctx, doc.ID)
	if stored.Content != "hello" {
		t.Errorf("stored Content = %q, want hello", stored.Content)
	}

	changes, err := f.svc.GetDocumentChanges(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentChanges() error = %v", err)
	}
	if len(changes) != 1 || changes[0].UserID != 2 || changes[0].OperationType != domain.OperationInsert {
		t.Errorf("changes = %+v", changes)
	}
	if f.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.count())
	}

	cached, err := f.cache.GetDocument(ctx, doc.ID)
	if err != nil || cached.Content != "hello" {
		t.Errorf("cache = %+v, %v; want fresh snapshot", cached, err)
	}
}

func TestEditDocument_DefaultsToUpdate(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	doc, _ := f.svc.CreateDocument(ctx, "Notes", 1)

	if _, err := f.svc.EditDocument(ctx, doc.ID, 1, EditRequest{Content: "x"}); err != nil {
		t.Fatalf("EditDocument() error = %v", err)
	}
	changes, _ := f.svc.GetDocumentChanges(ctx, doc.ID)
	if changes[0].OperationType != domain.OperationUpdate {
		t.Errorf("OperationType = %q, want UPDATE", changes[0].OperationType)
	}
}

func TestEditDocument_Errors(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	doc, _ := f.svc.CreateDocument(ctx, "Notes", 1)

	if _, err := f.svc.EditDocument(ctx, doc.ID, 1, EditRequest{Content: "x", OperationType: "MERGE"}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("unknown operation error = %v, want ErrInvalidRequest", err)
	}
	if _, err := f.svc.EditDocument(ctx, 999, 1, EditRequest{Content: "x"}); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("missing document error = %v, want ErrDocumentNotFound", err)
	}

	f.changes.err = errBoom
	if _, err := f.svc.EditDocument(ctx, doc.ID, 1, EditRequest{Content: "x"}); !errors.Is(err, errBoom) {
		t.Errorf("save change error = %v, want errBoom", err)
	}
	if f.notifier.count() != 0 {
		t.Errorf("notifications = %d, want none for failed edits", f.notifier.count())
	}
}

func TestGetDocument_ReadsThroughCache(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	doc, _ := f.svc.CreateDocument(ctx, "Notes", 1)

	for i := 0; i < 3; i++ {
		got, err := f.svc.GetDocument(ctx, doc.ID)
		if err != nil {
			t.Fatalf("GetDocument() error = %v", err)
		}
		if got.ID != doc.ID {
			t.Fatalf("GetDocument() ID = %d, want %d", got.ID, doc.ID)
		}
	}
	if reads := f.docs.readCount(); reads != 1 {
		t.Errorf("repository reads = %d, want 1", reads)
	}

	if _, err := f.svc.GetDocument(ctx, 404); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("GetDocument(404) error = %v, want ErrDocumentNotFound", err)
	}
}

func TestGetDocument_CacheFailureFallsBack(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	doc, _ := f.svc.CreateDocument(ctx, "Notes", 1)
	f.cache.err = errBoom

	got, err := f.svc.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if got.Title != "Notes" {
		t.Errorf("Title = %q, want Notes", got.Title)
	}
}

func TestGetDocument_WithoutCache(t *testing.T) {
	docs := newMemoryDocuments()
	log := logger.NewNop()
	svc := NewDocumentService(docs, &memoryChanges{}, &memoryShares{}, NewDocumentReader(docs, nil, log), staticUsers{}, &recordingNotifier{}, log)
	ctx := context.Background()
	doc, _ := svc.CreateDocument(ctx, "Notes", 1)

	if _, err := svc.GetDocument(ctx, doc.ID); err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if _, err := svc.EditDocument(ctx, doc.ID, 1, EditRequest{Content: "x"}); err != nil {
		t.Fatalf("EditDocument() error = %v", err)
	}
}

func TestInviteUserByEmail(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	doc, _ := f.svc.CreateDocument(ctx, "Notes", 1)
	owner := int64(1)

	shared, err := f.svc.InviteUserByEmail(ctx, doc.ID, "bob@example.com", &owner)
	if err != nil {
		t.Fatalf("InviteUserByEmail() error = %v", err)
	}
	if !shared.IsShared {
		t.Error("IsShared = false, want true")
	}

	// inviting twice keeps a single share
	if _, err := f.svc.InviteUserByEmail(ctx, doc.ID, "bob@example.com", &owner); err != nil {
		t.Fatalf("second InviteUserByEmail() error = %v", err)
	}
	if n := f.shares.count(); n != 1 {
		t.Errorf("shares = %d, want 1", n)
	}

	docs, err := f.svc.GetSharedDocuments(ctx, 7)
	if err != nil {
		t.Fatalf("GetSharedDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Errorf("GetSharedDocuments() = %+v", docs)
	}
}

func TestInviteUserByEmail_Errors(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	doc, _ := f.svc.CreateDocument(ctx, "Notes", 1)

	tests := []struct {
		name    string
		docID   int64
		email   string
		wantErr error
	}{
		{name: "blank email", docID: doc.ID, email: " ", wantErr: domain.ErrInvalidRequest},
		{name: "unknown user", docID: doc.ID, email: "nobody@example.com", wantErr: domain.ErrUserNotFound},
		{name: "missing document", docID: 999, email: "bob@example.com", wantErr: domain.ErrDocumentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.InviteUserByEmail(ctx, tt.docID, tt.email, nil); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestListsAreNeverNil(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	owned, err := f.svc.GetUserDocuments(ctx, 42)
	if err != nil || owned == nil {
		t.Errorf("GetUserDocuments() = %v, %v; want empty slice", owned, err)
	}
	shared, err := f.svc.GetSharedDocuments(ctx, 42)
	if err != nil || shared == nil {
		t.Errorf("GetSharedDocuments() = %v, %v; want empty slice", shared, err)
	}

	doc, _ := f.svc.CreateDocument(ctx, "Notes", 42)
	changes, err := f.svc.GetDocumentChanges(ctx, doc.ID)
	if err != nil || changes == nil {
		t.Errorf("GetDocumentChanges() = %v, %v; want empty slice", changes, err)
	}
}
