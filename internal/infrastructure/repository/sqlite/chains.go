package sqlite

import (
	"context"
	"database/sql"
	"errors"
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
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

func (r *ChainRepository) Load(ctx context.Context, documentHash string) (domain.Chain, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+blockColumns+`
FROM chain_blocks
WHERE chain_id = ?
ORDER BY sequence ASC`, domain.ChainID(documentHash))
	if err != nil {
		return domain.Chain{}, classify("load chain", err)
	}
	defer rows.Close()

	var blocks []domain.Block
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
	_, err := r.db.ExecContext(ctx, insertBlock, blockArgs(genesis)...)
	if err != nil {
		if isConstraintError(err) {
			return domain.WrapError(domain.ErrChainExists, "create chain", err)
		}
		return classify("create chain", err)
	}
	return nil
}

// Append inserts block after checking, inside one transaction, that it
// directly follows the current head. The primary key rejects a racing
// writer that passed the same check.
func (r *ChainRepository) Append(ctx context.Context, block domain.Block) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin append tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var head sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT MAX(sequence) FROM chain_blocks WHERE chain_id = ?`,
		domain.ChainID(block.DocumentHash)).Scan(&head)
	if err != nil {
		return classify("read chain head", err)
	}
	if !head.Valid {
		return domain.WrapError(domain.ErrChainNotFound, "append block", fmt.Errorf("chain %s", domain.ChainID(block.DocumentHash)))
	}
	if block.Sequence != head.Int64+1 {
		return domain.WrapError(domain.ErrSequenceConflict, "append block",
			fmt.Errorf("expected sequence %d, got %d", head.Int64+1, block.Sequence))
	}

	if _, err := tx.ExecContext(ctx, insertBlock, blockArgs(block)...); err != nil {
		if isConstraintError(err) {
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
		b.Sequence, b.DocumentHash, m.Name, m.Type, formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		m.Version, string(m.Status), m.ModificationNote, m.Creator, m.Area, m.Reviewer, m.Approver,
		m.Nonconformance, m.Audit, b.PreviousHash, formatTime(b.Timestamp), string(b.Action), b.Hash, b.Actor,
	}
}

func scanBlock(rows *sql.Rows) (domain.Block, error) {
	var (
		b                    domain.Block
		created, updated, ts string
		status, action       string
	)
	m := &b.Snapshot
	err := rows.Scan(
		&b.Sequence, &b.DocumentHash, &m.Name, &m.Type, &created, &updated, &m.Version, &status,
		&m.ModificationNote, &m.Creator, &m.Area, &m.Reviewer, &m.Approver, &m.Nonconformance, &m.Audit,
		&b.PreviousHash, &ts, &action, &b.Hash, &b.Actor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Block{}, domain.WrapError(domain.ErrChainNotFound, "scan block", err)
		}
		return domain.Block{}, fmt.Errorf("scan block: %w", err)
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return domain.Block{}, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Block{}, err
	}
	if b.Timestamp, err = parseTime(ts); err != nil {
		return domain.Block{}, err
	}
	m.Status = domain.DocumentStatus(status)
	b.Action = domain.Action(action)
	return b, nil
}
