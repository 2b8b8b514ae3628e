// Package sqlite is the embedded single-file backend for the registry, the
// activity log and the block chains.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	hash TEXT NOT NULL UNIQUE,
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

CREATE TABLE IF NOT EXISTS chain_blocks (
	chain_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
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
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_hash TEXT NOT NULL,
	at TEXT NOT NULL,
	actor TEXT NOT NULL,
	role TEXT NOT NULL,
	action TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_activity_document ON activity(document_hash, at DESC);
`

// Store owns the database handle shared by the three repositories.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Documents() *DocumentRepository { return &DocumentRepository{db: s.sqlDB} }

func (s *Store) Chains() *ChainRepository { return &ChainRepository{db: s.sqlDB} }

func (s *Store) Activity() *ActivityRepository { return &ActivityRepository{db: s.sqlDB} }

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// classify maps driver errors onto domain kinds.
func classify(op string, err error) error {
	if isBusyError(err) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func formatTime(t time.Time) string {
	return domain.FormatTimestamp(t.UTC())
}

func parseTime(raw string) (time.Time, error) {
	t, err := domain.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}
