package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

var registryHeader = []string{
	"HASH", "NOMBRE", "TIPO", "FECHA_CREACION", "FECHA_ACTUALIZACION", "VERSION",
	"ESTATUS", "MODIFICACION", "CREADOR", "AREA", "REVISOR", "APROBADOR",
	"NO_CONFORMIDAD", "AUDITORIA",
}

// DocumentStore is the registry: one CSV row per document, rewritten
// atomically on every change.
type DocumentStore struct {
	path string
	mu   sync.Mutex
}

func NewDocumentStore(path string) *DocumentStore {
	return &DocumentStore{path: path}
}

func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mutate(func(docs []domain.Document) ([]domain.Document, error) {
		if indexOf(docs, doc.Hash) >= 0 {
			return nil, domain.WrapError(domain.ErrDuplicateDocument, "create document", fmt.Errorf("hash %s", doc.Hash))
		}
		return append(docs, *doc), nil
	})
}

func (s *DocumentStore) GetByHash(ctx context.Context, hash string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	if err != nil {
		return nil, err
	}
	i := indexOf(docs, hash)
	if i < 0 {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("hash %s", hash))
	}
	doc := docs[i]
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Update replaces the record stored under previousHash. doc.Hash may differ
// from previousHash when the content changed.
func (s *DocumentStore) Update(ctx context.Context, previousHash string, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mutate(func(docs []domain.Document) ([]domain.Document, error) {
		i := indexOf(docs, previousHash)
		if i < 0 {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("hash %s", previousHash))
		}
		if doc.Hash != previousHash && indexOf(docs, doc.Hash) >= 0 {
			return nil, domain.WrapError(domain.ErrDuplicateDocument, "update document", fmt.Errorf("hash %s", doc.Hash))
		}
		docs[i] = *doc
		return docs, nil
	})
}

// mutate runs fn over the current registry while holding both the
// in-process mutex and an exclusive flock on a sidecar lock file.
func (s *DocumentStore) mutate(fn func([]domain.Document) ([]domain.Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := os.OpenFile(s.path+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open registry lock: %w", err)
	}
	defer lock.Close()
	if err := lockFile(lock, true); err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	defer unlockFile(lock)

	docs, err := s.read()
	if err != nil {
		return err
	}
	docs, err = fn(docs)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, encodeDocument(d))
	}
	return rewriteFile(s.path, registryHeader, rows)
}

func (s *DocumentStore) read() ([]domain.Document, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	t, err := readTable(f, nil)
	if err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	docs := make([]domain.Document, 0, len(t.rows))
	for i, row := range t.rows {
		d, err := decodeDocument(t, row)
		if err != nil {
			return nil, fmt.Errorf("decode registry row %d: %w", i+1, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func indexOf(docs []domain.Document, hash string) int {
	for i := range docs {
		if docs[i].Hash == hash {
			return i
		}
	}
	return -1
}

func encodeDocument(d domain.Document) []string {
	return []string{
		d.Hash,
		d.Name,
		d.Type,
		domain.FormatTimestamp(d.CreatedAt),
		domain.FormatTimestamp(d.UpdatedAt),
		d.Version,
		string(d.Status),
		d.ModificationNote,
		d.Creator,
		d.Area,
		d.Reviewer,
		d.Approver,
		d.Nonconformance,
		d.Audit,
	}
}

func decodeDocument(t table, row []string) (domain.Document, error) {
	created, err := parseTime("FECHA_CREACION", t.get(row, "FECHA_CREACION"))
	if err != nil {
		return domain.Document{}, err
	}
	updated, err := parseTime("FECHA_ACTUALIZACION", t.get(row, "FECHA_ACTUALIZACION"))
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		Hash: t.get(row, "HASH"),
		Metadata: domain.Metadata{
			Name:             t.get(row, "NOMBRE"),
			Type:             t.get(row, "TIPO"),
			CreatedAt:        created,
			UpdatedAt:        updated,
			Version:          t.get(row, "VERSION"),
			Status:           domain.DocumentStatus(t.get(row, "ESTATUS")),
			ModificationNote: t.get(row, "MODIFICACION"),
			Creator:          t.get(row, "CREADOR"),
			Area:             t.get(row, "AREA"),
			Reviewer:         t.get(row, "REVISOR"),
			Approver:         t.get(row, "APROBADOR"),
			Nonconformance:   t.get(row, "NO_CONFORMIDAD"),
			Audit:            t.get(row, "AUDITORIA"),
		},
	}, nil
}
