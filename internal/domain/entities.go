package domain

import (
	"time"
)

// Document is the snapshot sent to viewers and returned by the REST API.
type Document struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	OwnerID   int64      `json:"ownerId"`
	IsShared  bool       `json:"isShared"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// DocumentChange is one recorded edit. Content is the full text after the edit.
type DocumentChange struct {
	ID            int64         `json:"id"`
	DocumentID    int64         `json:"documentId"`
	UserID        int64         `json:"userId"`
	ChangeContent string        `json:"changeContent"`
	OperationType OperationType `json:"operationType"`
	CreatedAt     time.Time     `json:"-"`
}

type OperationType string

const (
	OperationInsert  OperationType = "INSERT"
	OperationDelete  OperationType = "DELETE"
	OperationReplace OperationType = "REPLACE"
	OperationUpdate  OperationType = "UPDATE"
)

func (o OperationType) Valid() bool {
	switch o {
	case OperationInsert, OperationDelete, OperationReplace, OperationUpdate:
		return true
	default:
		return false
	}
}

type DocumentShare struct {
	ID         int64
	DocumentID int64
	UserID     int64
	InvitedBy  *int64
	CreatedAt  time.Time
}

// ChangeEvent is what travels between instances when the relay is enabled.
type ChangeEvent struct {
	Origin   string          `json:"origin"`
	Document *Document       `json:"document"`
	Change   *DocumentChange `json:"change"`
}
