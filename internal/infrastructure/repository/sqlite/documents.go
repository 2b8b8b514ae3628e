package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `hash, name, type, created_at, updated_at, version, status,
	modification_note, creator, area, reviewer, approver, nonconformance, audit`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, documentArgs(doc)...)
	if err != nil {
		if isConstraintError(err) {
			return domain.WrapError(domain.ErrDuplicateDocument, "create document", err)
		}
		return classify("insert document", err)
	}
	return nil
}

func (r *DocumentRepository) GetByHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE hash = ?`, hash)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
ORDER BY position ASC`)
	if err != nil {
		return nil, classify("list documents", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Update rewrites the row keyed by previousHash in place, so the registry
// position survives a content change.
func (r *DocumentRepository) Update(ctx context.Context, previousHash string, doc *domain.Document) error {
	args := append(documentArgs(doc), previousHash)
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET hash = ?, name = ?, type = ?, created_at = ?, updated_at = ?, version = ?, status = ?,
	modification_note = ?, creator = ?, area = ?, reviewer = ?, approver = ?, nonconformance = ?, audit = ?
WHERE hash = ?`, args...)
	if err != nil {
		if isConstraintError(err) {
			return domain.WrapError(domain.ErrDuplicateDocument, "update document", err)
		}
		return classify("update document", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("hash %s", previousHash))
	}
	return nil
}

func documentArgs(doc *domain.Document) []any {
	return []any{
		doc.Hash, doc.Name, doc.Type, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt), doc.Version,
		string(doc.Status), doc.ModificationNote, doc.Creator, doc.Area, doc.Reviewer, doc.Approver,
		doc.Nonconformance, doc.Audit,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc              domain.Document
		created, updated string
		status           string
	)
	err := row.Scan(
		&doc.Hash, &doc.Name, &doc.Type, &created, &updated, &doc.Version, &status,
		&doc.ModificationNote, &doc.Creator, &doc.Area, &doc.Reviewer, &doc.Approver, &doc.Nonconformance, &doc.Audit,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "get document", err)
		}
		return domain.Document{}, fmt.Errorf("scan document: %w", err)
	}
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return domain.Document{}, err
	}
	if doc.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Document{}, err
	}
	doc.Status = domain.DocumentStatus(status)
	return doc, nil
}
