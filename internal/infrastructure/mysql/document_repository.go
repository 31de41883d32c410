package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"document-service/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLDocumentRepository struct {
	db *sql.DB
}

func NewMySQLDocumentRepository(db *sql.DB) *MySQLDocumentRepository {
	return &MySQLDocumentRepository{db: db}
}

const documentColumns = `id, title, content, owner_id, is_shared, created_at, updated_at`

func (r *MySQLDocumentRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	query := `
        INSERT INTO documents (title, content, owner_id, is_shared, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		doc.Title, doc.Content, doc.OwnerID, doc.IsShared, now, now)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	doc.ID = id
	doc.CreatedAt = now
	doc.UpdatedAt = &now
	return nil
}

func (r *MySQLDocumentRepository) GetDocument(ctx context.Context, documentID int64) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", documentID, err)
	}
	return doc, nil
}

// UpdateDocument overwrites title, content and sharing. Concurrent edits are
// last write wins.
func (r *MySQLDocumentRepository) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	query := `UPDATE documents SET title = ?, content = ?, is_shared = ?, updated_at = ? WHERE id = ?`

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, doc.Title, doc.Content, doc.IsShared, now, doc.ID)
	if err != nil {
		return fmt.Errorf("update document %d: %w", doc.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for unchanged rows too; confirm the row exists.
		if _, err := r.GetDocument(ctx, doc.ID); err != nil {
			return err
		}
	}
	doc.UpdatedAt = &now
	return nil
}

func (r *MySQLDocumentRepository) GetDocumentsByOwner(ctx context.Context, ownerID int64) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = ? ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents of owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *MySQLDocumentRepository) GetDocumentsByIDs(ctx context.Context, documentIDs []int64) ([]*domain.Document, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(documentIDs)), ",")
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id IN (` + placeholders + `) ORDER BY updated_at DESC`

	args := make([]interface{}, len(documentIDs))
	for i, id := range documentIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents by id: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var updatedAt sql.NullTime

	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID,
		&doc.IsShared, &doc.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		doc.UpdatedAt = &t
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
