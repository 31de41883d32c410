package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"document-service/internal/domain"
)

type MySQLShareRepository struct {
	db *sql.DB
}

func NewMySQLShareRepository(db *sql.DB) *MySQLShareRepository {
	return &MySQLShareRepository{db: db}
}

func (r *MySQLShareRepository) FindShare(ctx context.Context, documentID, userID int64) (*domain.DocumentShare, error) {
	query := `
        SELECT id, document_id, user_id, invited_by, created_at
        FROM document_shares WHERE document_id = ? AND user_id = ?
    `

	share, err := scanShare(r.db.QueryRowContext(ctx, query, documentID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find share: %w", err)
	}
	return share, nil
}

func (r *MySQLShareRepository) CreateShare(ctx context.Context, share *domain.DocumentShare) error {
	query := `
        INSERT INTO document_shares (document_id, user_id, invited_by, created_at)
        VALUES (?, ?, ?, ?)
    `
	var invitedBy sql.NullInt64
	if share.InvitedBy != nil {
		invitedBy = sql.NullInt64{Int64: *share.InvitedBy, Valid: true}
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, share.DocumentID, share.UserID, invitedBy, now)
	if err != nil {
		return fmt.Errorf("insert share: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("share id: %w", err)
	}
	share.ID = id
	share.CreatedAt = now
	return nil
}

func (r *MySQLShareRepository) GetSharesForUser(ctx context.Context, userID int64) ([]*domain.DocumentShare, error) {
	query := `
        SELECT id, document_id, user_id, invited_by, created_at
        FROM document_shares WHERE user_id = ?
        ORDER BY created_at DESC
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list shares of user %d: %w", userID, err)
	}
	defer rows.Close()

	var shares []*domain.DocumentShare
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func scanShare(row rowScanner) (*domain.DocumentShare, error) {
	var share domain.DocumentShare
	var invitedBy sql.NullInt64

	if err := row.Scan(&share.ID, &share.DocumentID, &share.UserID, &invitedBy, &share.CreatedAt); err != nil {
		return nil, err
	}
	if invitedBy.Valid {
		v := invitedBy.Int64
		share.InvitedBy = &v
	}
	return &share, nil
}
