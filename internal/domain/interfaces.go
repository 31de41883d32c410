package domain

import (
	"context"
)

// Repository interfaces
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, documentID int64) (*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	GetDocumentsByOwner(ctx context.Context, ownerID int64) ([]*Document, error)
	GetDocumentsByIDs(ctx context.Context, documentIDs []int64) ([]*Document, error)
}

type ChangeRepository interface {
	SaveChange(ctx context.Context, change *DocumentChange) error
	GetChanges(ctx context.Context, documentID int64) ([]*DocumentChange, error)
}

type ShareRepository interface {
	FindShare(ctx context.Context, documentID, userID int64) (*DocumentShare, error)
	CreateShare(ctx context.Context, share *DocumentShare) error
	GetSharesForUser(ctx context.Context, userID int64) ([]*DocumentShare, error)
}

// Cache interfaces
type DocumentCache interface {
	GetDocument(ctx context.Context, documentID int64) (*Document, error)
	SetDocument(ctx context.Context, doc *Document) error
	InvalidateDocument(ctx context.Context, documentID int64) error
}

// Event interfaces
type ChangePublisher interface {
	PublishChange(ctx context.Context, event *ChangeEvent) error
}

type ChangeSubscriber interface {
	SubscribeToChanges(ctx context.Context, handler ChangeHandler) error
}

type ChangeHandler func(event *ChangeEvent) error

// Notification interfaces
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, doc *Document, change *DocumentChange)
}

// User directory, backed by the user management service
type UserDirectory interface {
	FindUserIDByEmail(ctx context.Context, email string) (int64, error)
}
