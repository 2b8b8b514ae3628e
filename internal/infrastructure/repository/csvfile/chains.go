package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

var chainHeader = []string{
	"sequence_number", "document_hash", "name", "type", "created_at", "updated_at",
	"version", "status", "modification_note", "creator", "area", "reviewer",
	"approver", "nonconformance", "audit", "previous_block_hash", "timestamp",
	"action", "block_hash", "actor",
}

// legacyChainColumns maps the Spanish column names of older chain files.
var legacyChainColumns = map[string]string{
	"numero_bloque":        "sequence_number",
	"hash_documento":       "document_hash",
	"nombre_documento":     "name",
	"tipo":                 "type",
	"fecha_creacion":       "created_at",
	"fecha_actualizacion":  "updated_at",
	"estatus":              "status",
	"modificacion":         "modification_note",
	"creador":              "creator",
	"revisor":              "reviewer",
	"aprobador":            "approver",
	"no_conformidad":       "nonconformance",
	"auditoria":            "audit",
	"hash_bloque_anterior": "previous_block_hash",
	"accion":               "action",
	"hash_bloque":          "block_hash",
	"usuario_accion":       "actor",
}

// ChainStore keeps one blockchain_<chain id>.csv file per document.
type ChainStore struct {
	dir string
	mu  sync.Mutex
}

func NewChainStore(dir string) (*ChainStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chain directory: %w", err)
	}
	return &ChainStore{dir: dir}, nil
}

func (s *ChainStore) path(documentHash string) string {
	return filepath.Join(s.dir, "blockchain_"+domain.ChainID(documentHash)+".csv")
}

func (s *ChainStore) Load(ctx context.Context, documentHash string) (domain.Chain, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chain{}, err
	}
	f, err := os.Open(s.path(documentHash))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Chain{}, domain.WrapError(domain.ErrChainNotFound, "load chain", err)
	}
	if err != nil {
		return domain.Chain{}, fmt.Errorf("open chain: %w", err)
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return domain.Chain{}, fmt.Errorf("lock chain: %w", err)
	}
	defer unlockFile(f)

	blocks, err := readBlocks(f)
	if err != nil {
		return domain.Chain{}, fmt.Errorf("decode chain %s: %w", domain.ChainID(documentHash), err)
	}
	return domain.Chain{DocumentHash: documentHash, Blocks: blocks}, nil
}

func (s *ChainStore) Create(ctx context.Context, genesis domain.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(genesis.DocumentHash), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return domain.WrapError(domain.ErrChainExists, "create chain", err)
	}
	if err != nil {
		return fmt.Errorf("create chain: %w", err)
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return fmt.Errorf("lock chain: %w", err)
	}
	defer unlockFile(f)

	if err := writeRecords(f, chainHeader, [][]string{encodeBlock(genesis)}); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}
	return f.Sync()
}

// Append writes block at the end of its chain file. The expected sequence
// is checked under an exclusive flock so concurrent writers in other
// processes cannot interleave.
func (s *ChainStore) Append(ctx context.Context, block domain.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(block.DocumentHash), os.O_RDWR|os.O_APPEND, 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.WrapError(domain.ErrChainNotFound, "append block", err)
	}
	if err != nil {
		return fmt.Errorf("open chain: %w", err)
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return fmt.Errorf("lock chain: %w", err)
	}
	defer unlockFile(f)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind chain: %w", err)
	}
	existing, err := readBlocks(f)
	if err != nil {
		return fmt.Errorf("decode chain %s: %w", domain.ChainID(block.DocumentHash), err)
	}

	next := int64(0)
	for _, b := range existing {
		if b.Sequence >= next {
			next = b.Sequence + 1
		}
	}
	if block.Sequence != next {
		return domain.WrapError(domain.ErrSequenceConflict, "append block",
			fmt.Errorf("expected sequence %d, got %d", next, block.Sequence))
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat chain: %w", err)
	}
	var header []string
	if info.Size() == 0 {
		header = chainHeader
	}
	if err := writeRecords(f, header, [][]string{encodeBlock(block)}); err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	return f.Sync()
}

func readBlocks(r io.Reader) ([]domain.Block, error) {
	t, err := readTable(r, legacyChainColumns)
	if err != nil {
		return nil, err
	}
	blocks := make([]domain.Block, 0, len(t.rows))
	for i, row := range t.rows {
		b, err := decodeBlock(t, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func encodeBlock(b domain.Block) []string {
	m := b.Snapshot
	return []string{
		strconv.FormatInt(b.Sequence, 10),
		b.DocumentHash,
		m.Name,
		m.Type,
		domain.FormatTimestamp(m.CreatedAt),
		domain.FormatTimestamp(m.UpdatedAt),
		m.Version,
		string(m.Status),
		m.ModificationNote,
		m.Creator,
		m.Area,
		m.Reviewer,
		m.Approver,
		m.Nonconformance,
		m.Audit,
		b.PreviousHash,
		domain.FormatTimestamp(b.Timestamp),
		string(b.Action),
		b.Hash,
		b.Actor,
	}
}

func decodeBlock(t table, row []string) (domain.Block, error) {
	seq, err := parseSequence(t.get(row, "sequence_number"))
	if err != nil {
		return domain.Block{}, err
	}
	ts, err := domain.ParseTimestamp(t.get(row, "timestamp"))
	if err != nil {
		return domain.Block{}, fmt.Errorf("parse timestamp: %w", err)
	}
	created, err := parseTime("created_at", t.get(row, "created_at"))
	if err != nil {
		return domain.Block{}, err
	}
	updated, err := parseTime("updated_at", t.get(row, "updated_at"))
	if err != nil {
		return domain.Block{}, err
	}
	return domain.Block{
		Sequence:     seq,
		DocumentHash: t.get(row, "document_hash"),
		Snapshot: domain.Metadata{
			Name:             t.get(row, "name"),
			Type:             t.get(row, "type"),
			CreatedAt:        created,
			UpdatedAt:        updated,
			Version:          t.get(row, "version"),
			Status:           domain.DocumentStatus(t.get(row, "status")),
			ModificationNote: t.get(row, "modification_note"),
			Creator:          t.get(row, "creator"),
			Area:             t.get(row, "area"),
			Reviewer:         t.get(row, "reviewer"),
			Approver:         t.get(row, "approver"),
			Nonconformance:   t.get(row, "nonconformance"),
			Audit:            t.get(row, "audit"),
		},
		PreviousHash: t.get(row, "previous_block_hash"),
		Timestamp:    ts,
		Action:       domain.Action(t.get(row, "action")),
		Actor:        t.get(row, "actor"),
		Hash:         t.get(row, "block_hash"),
	}, nil
}

// parseSequence also accepts integral floats ("3.0") written by
// spreadsheet tools.
func parseSequence(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("parse sequence_number %q", raw)
	}
	return int64(f), nil
}
