package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"document-service/internal/domain"
)

type MySQLChangeRepository struct {
	db *sql.DB
}

func NewMySQLChangeRepository(db *sql.DB) *MySQLChangeRepository {
	return &MySQLChangeRepository{db: db}
}

func (r *MySQLChangeRepository) SaveChange(ctx context.Context, change *domain.DocumentChange) error {
	query := `
        INSERT INTO document_changes (document_id, user_id, change_content, operation_type, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		change.DocumentID, change.UserID, change.ChangeContent,
		string(change.OperationType), now)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("change id: %w", err)
	}
	change.ID = id
	change.CreatedAt = now
	return nil
}

func (r *MySQLChangeRepository) GetChanges(ctx context.Context, documentID int64) ([]*domain.DocumentChange, error) {
	query := `
        SELECT id, document_id, user_id, change_content, operation_type, created_at
        FROM document_changes
        WHERE document_id = ?
        ORDER BY id ASC
    `

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list changes of document %d: %w", documentID, err)
	}
	defer rows.Close()

	var changes []*domain.DocumentChange
	for rows.Next() {
		var change domain.DocumentChange
		var opType string

		err := rows.Scan(&change.ID, &change.DocumentID, &change.UserID,
			&change.ChangeContent, &opType, &change.CreatedAt)
		if err != nil {
			return nil, err
		}

		change.OperationType = domain.OperationType(opType)
		changes = append(changes, &change)
	}

	return changes, rows.Err()
}
