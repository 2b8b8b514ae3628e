package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Record(ctx context.Context, entry domain.ActivityEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO activity (document_hash, at, actor, role, action, comment)
VALUES ($1,$2,$3,$4,$5,$6)
`, entry.DocumentHash, domain.FormatTimestamp(entry.At), entry.Actor, string(entry.Role), string(entry.Action), entry.Comment)
	if err != nil {
		return classify("insert activity", err)
	}
	return nil
}

func (r *ActivityRepository) List(ctx context.Context, documentHash string) ([]domain.ActivityEntry, error) {
	query := `
SELECT document_hash, at, actor, role, action, comment
FROM activity
`
	var args []any
	if documentHash != "" {
		query += "WHERE document_hash = $1\n"
		args = append(args, documentHash)
	}
	query += "ORDER BY at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list activity", err)
	}
	defer rows.Close()

	out := make([]domain.ActivityEntry, 0)
	for rows.Next() {
		var e domain.ActivityEntry
		var at, role, action string
		if err := rows.Scan(&e.DocumentHash, &at, &e.Actor, &role, &action, &e.Comment); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if e.At, err = domain.ParseTimestamp(at); err != nil {
			return nil, fmt.Errorf("parse activity time: %w", err)
		}
		e.Role = domain.Role(role)
		e.Action = domain.Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}
