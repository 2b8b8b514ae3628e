package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

const uniqueViolation = "23505"

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the registry, chain and activity tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025061801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	position BIGSERIAL,
	hash TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version TEXT NOT NULL,
	status TEXT NOT NULL,
	modification_note TEXT NOT NULL DEFAULT '',
	creator TEXT NOT NULL DEFAULT '',
	area TEXT NOT NULL DEFAULT '',
	reviewer TEXT NOT NULL DEFAULT '',
	approver TEXT NOT NULL DEFAULT '',
	nonconformance TEXT NOT NULL DEFAULT '',
	audit TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_documents_position ON documents(position);

CREATE TABLE IF NOT EXISTS chain_blocks (
	chain_id TEXT NOT NULL,
	sequence BIGINT NOT NULL,
	document_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version TEXT NOT NULL,
	status TEXT NOT NULL,
	modification_note TEXT NOT NULL DEFAULT '',
	creator TEXT NOT NULL DEFAULT '',
	area TEXT NOT NULL DEFAULT '',
	reviewer TEXT NOT NULL DEFAULT '',
	approver TEXT NOT NULL DEFAULT '',
	nonconformance TEXT NOT NULL DEFAULT '',
	audit TEXT NOT NULL DEFAULT '',
	previous_block_hash TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	action TEXT NOT NULL,
	block_hash TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (chain_id, sequence)
);

CREATE TABLE IF NOT EXISTS activity (
	id BIGSERIAL PRIMARY KEY,
	document_hash TEXT NOT NULL,
	at TEXT NOT NULL,
	actor TEXT NOT NULL,
	role TEXT NOT NULL,
	action TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_activity_document ON activity(document_hash, at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `hash, name, type, created_at, updated_at, version, status,
	modification_note, creator, area, reviewer, approver, nonconformance, audit`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`, documentArgs(doc)...)
	if err != nil {
		if isUniqueViolation(err) {
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
WHERE hash = $1
`, hash)

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
ORDER BY position ASC
`)
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

func (r *DocumentRepository) Update(ctx context.Context, previousHash string, doc *domain.Document) error {
	args := append([]any{previousHash}, documentArgs(doc)...)
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET hash = $2, name = $3, type = $4, created_at = $5, updated_at = $6, version = $7, status = $8,
	modification_note = $9, creator = $10, area = $11, reviewer = $12, approver = $13,
	nonconformance = $14, audit = $15
WHERE hash = $1
`, args...)
	if err != nil {
		if isUniqueViolation(err) {
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
		doc.Hash, doc.Name, doc.Type, domain.FormatTimestamp(doc.CreatedAt), domain.FormatTimestamp(doc.UpdatedAt),
		doc.Version, string(doc.Status), doc.ModificationNote, doc.Creator, doc.Area, doc.Reviewer,
		doc.Approver, doc.Nonconformance, doc.Audit,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var created, updated, status string

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
	if doc.CreatedAt, err = domain.ParseTimestamp(created); err != nil {
		return domain.Document{}, fmt.Errorf("parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = domain.ParseTimestamp(updated); err != nil {
		return domain.Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return doc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// classify marks lost connections as temporary so callers can retry.
func classify(op string, err error) error {
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
