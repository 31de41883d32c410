package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"document-service/internal/domain"
	"document-service/pkg/logger"
)

type EditRequest struct {
	Content       string               `json:"content"`
	OperationType domain.OperationType `json:"operationType"`
}

// DocumentService is the persistence side of the editor. Every successful
// edit is handed to the change notifier after it has been stored.
type DocumentService struct {
	documents domain.DocumentRepository
	changes   domain.ChangeRepository
	shares    domain.ShareRepository
	reader    *DocumentReader
	users     domain.UserDirectory
	notifier  domain.ChangeNotifier
	log       logger.Logger
}

func NewDocumentService(
	documents domain.DocumentRepository,
	changes domain.ChangeRepository,
	shares domain.ShareRepository,
	reader *DocumentReader,
	users domain.UserDirectory,
	notifier domain.ChangeNotifier,
	log logger.Logger,
) *DocumentService {
	return &DocumentService{
		documents: documents,
		changes:   changes,
		shares:    shares,
		reader:    reader,
		users:     users,
		notifier:  notifier,
		log:       log,
	}
}

func (s *DocumentService) CreateDocument(ctx context.Context, title string, ownerID int64) (*domain.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrInvalidRequest)
	}

	doc := &domain.Document{
		Title:   title,
		Content: "",
		OwnerID: ownerID,
	}
	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.log.Info("Document created", "document_id", doc.ID, "owner_id", ownerID)
	return doc, nil
}

// EditDocument replaces the document content (last write wins), records the
// change and notifies viewers. Notification problems never fail the edit.
func (s *DocumentService) EditDocument(ctx context.Context, documentID, userID int64, req EditRequest) (*domain.Document, error) {
	if req.OperationType == "" {
		req.OperationType = domain.OperationUpdate
	}
	if !req.OperationType.Valid() {
		return nil, fmt.Errorf("unknown operation type %q: %w", req.OperationType, domain.ErrInvalidRequest)
	}

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	doc.Content = req.Content
	if err := s.documents.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	change := &domain.DocumentChange{
		DocumentID:    documentID,
		UserID:        userID,
		ChangeContent: req.Content,
		OperationType: req.OperationType,
	}
	if err := s.changes.SaveChange(ctx, change); err != nil {
		return nil, err
	}

	s.reader.Store(ctx, doc)
	s.notifier.NotifyChange(ctx, doc, change)

	s.log.Info("Document edited", "document_id", documentID, "user_id", userID, "change_id", change.ID)
	return doc, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, documentID int64) (*domain.Document, error) {
	return s.reader.GetDocument(ctx, documentID)
}

func (s *DocumentService) GetDocumentChanges(ctx context.Context, documentID int64) ([]*domain.DocumentChange, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	changes, err := s.changes.GetChanges(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if changes == nil {
		changes = []*domain.DocumentChange{}
	}
	return changes, nil
}

func (s *DocumentService) GetUserDocuments(ctx context.Context, userID int64) ([]*domain.Document, error) {
	docs, err := s.documents.GetDocumentsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	return docs, nil
}

// GetSharedDocuments lists documents other users explicitly shared with userID.
func (s *DocumentService) GetSharedDocuments(ctx context.Context, userID int64) ([]*domain.Document, error) {
	shares, err := s.shares.GetSharesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return []*domain.Document{}, nil
	}

	ids := make([]int64, 0, len(shares))
	for _, share := range shares {
		ids = append(ids, share.DocumentID)
	}
	docs, err := s.documents.GetDocumentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	return docs, nil
}

// InviteUserByEmail shares the document with the user registered under email.
func (s *DocumentService) InviteUserByEmail(ctx context.Context, documentID int64, email string, invitedBy *int64) (*domain.Document, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrInvalidRequest)
	}

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	userID, err := s.users.FindUserIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	_, err = s.shares.FindShare(ctx, documentID, userID)
	switch {
	case errors.Is(err, domain.ErrShareNotFound):
		share := &domain.DocumentShare{DocumentID: documentID, UserID: userID, InvitedBy: invitedBy}
		if err := s.shares.CreateShare(ctx, share); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	doc.IsShared = true
	if err := s.documents.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	s.reader.Store(ctx, doc)

	s.log.Info("User invited", "document_id", documentID, "user_id", userID)
	return doc, nil
}
