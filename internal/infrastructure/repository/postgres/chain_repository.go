package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

type ChainRepository struct {
	db *sql.DB
}

func NewChainRepository(db *sql.DB) *ChainRepository {
	return &ChainRepository{db: db}
}

const blockColumns = `sequence, document_hash, name, type, created_at, updated_at, version, status,
	modification_note, creator, area, reviewer, approver, nonconformance, audit,
	previous_block_hash, timestamp, action, block_hash, actor`

const insertBlock = `
INSERT INTO chain_blocks (chain_id, ` + blockColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
`

func (r *ChainRepository) Load(ctx context.Context, documentHash string) (domain.Chain, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+blockColumns+`
FROM chain_blocks
WHERE chain_id = $1
ORDER BY sequence ASC
`, domain.ChainID(documentHash))
	if err != nil {
		return domain.Chain{}, classify("load chain", err)
	}
	defer rows.Close()

	blocks := make([]domain.Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return domain.Chain{}, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return domain.Chain{}, fmt.Errorf("iterate blocks: %w", err)
	}
	if len(blocks) == 0 {
		return domain.Chain{}, domain.WrapError(domain.ErrChainNotFound, "load chain", fmt.Errorf("chain %s", domain.ChainID(documentHash)))
	}
	return domain.Chain{DocumentHash: documentHash, Blocks: blocks}, nil
}

func (r *ChainRepository) Create(ctx context.Context, genesis domain.Block) error {
	if _, err := r.db.ExecContext(ctx, insertBlock, blockArgs(genesis)...); err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrChainExists, "create chain", err)
		}
		return classify("create chain", err)
	}
	return nil
}

// Append checks the chain head and inserts in one transaction. The
// (chain_id, sequence) primary key turns a lost race into a sequence conflict.
func (r *ChainRepository) Append(ctx context.Context, block domain.Block) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin append tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	chainID := domain.ChainID(block.DocumentHash)
	var head sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(sequence) FROM chain_blocks WHERE chain_id = $1`, chainID).Scan(&head); err != nil {
		return classify("read chain head", err)
	}
	if !head.Valid {
		return domain.WrapError(domain.ErrChainNotFound, "append block", fmt.Errorf("chain %s", chainID))
	}
	if block.Sequence != head.Int64+1 {
		return domain.WrapError(domain.ErrSequenceConflict, "append block",
			fmt.Errorf("expected sequence %d, got %d", head.Int64+1, block.Sequence))
	}

	if _, err := tx.ExecContext(ctx, insertBlock, blockArgs(block)...); err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrSequenceConflict, "append block", err)
		}
		return classify("append block", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("commit append tx", err)
	}
	return nil
}

func blockArgs(b domain.Block) []any {
	m := b.Snapshot
	return []any{
		domain.ChainID(b.DocumentHash),
		b.Sequence, b.DocumentHash, m.Name, m.Type,
		domain.FormatTimestamp(m.CreatedAt), domain.FormatTimestamp(m.UpdatedAt),
		m.Version, string(m.Status), m.ModificationNote, m.Creator, m.Area, m.Reviewer, m.Approver,
		m.Nonconformance, m.Audit, b.PreviousHash, domain.FormatTimestamp(b.Timestamp),
		string(b.Action), b.Hash, b.Actor,
	}
}

func scanBlock(rows *sql.Rows) (domain.Block, error) {
	var b domain.Block
	var created, updated, ts, status, action string
	m := &b.Snapshot

	err := rows.Scan(
		&b.Sequence, &b.DocumentHash, &m.Name, &m.Type, &created, &updated, &m.Version, &status,
		&m.ModificationNote, &m.Creator, &m.Area, &m.Reviewer, &m.Approver, &m.Nonconformance, &m.Audit,
		&b.PreviousHash, &ts, &action, &b.Hash, &b.Actor,
	)
	if err != nil {
		return domain.Block{}, fmt.Errorf("scan block: %w", err)
	}
	if m.CreatedAt, err = domain.ParseTimestamp(created); err != nil {
		return domain.Block{}, fmt.Errorf("parse created_at: %w", err)
	}
	if m.UpdatedAt, err = domain.ParseTimestamp(updated); err != nil {
		return domain.Block{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if b.Timestamp, err = domain.ParseTimestamp(ts); err != nil {
		return domain.Block{}, fmt.Errorf("parse timestamp: %w", err)
	}
	m.Status = domain.DocumentStatus(status)
	b.Action = domain.Action(action)
	return b, nil
}
