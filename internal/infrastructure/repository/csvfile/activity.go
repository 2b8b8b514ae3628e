package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

var activityHeader = []string{"hash", "fecha_hora", "usuario", "rol", "accion", "comentario_opcional"}

// ActivityStore appends workflow events to the bitacora file.
type ActivityStore struct {
	path string
	mu   sync.Mutex
}

func NewActivityStore(path string) *ActivityStore {
	return &ActivityStore{path: path}
}

func (s *ActivityStore) Record(ctx context.Context, entry domain.ActivityEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()

	if err := lockFile(f, true); err != nil {
		return fmt.Errorf("lock activity log: %w", err)
	}
	defer unlockFile(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat activity log: %w", err)
	}
	var header []string
	if info.Size() == 0 {
		header = activityHeader
	}
	row := []string{
		entry.DocumentHash,
		domain.FormatTimestamp(entry.At),
		entry.Actor,
		string(entry.Role),
		string(entry.Action),
		entry.Comment,
	}
	if err := writeRecords(f, header, [][]string{row}); err != nil {
		return fmt.Errorf("write activity: %w", err)
	}
	return nil
}

// List returns entries newest first. An empty documentHash returns all.
func (s *ActivityStore) List(ctx context.Context, documentHash string) ([]domain.ActivityEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	defer f.Close()

	if err := lockFile(f, false); err != nil {
		return nil, fmt.Errorf("lock activity log: %w", err)
	}
	defer unlockFile(f)

	t, err := readTable(f, nil)
	if err != nil {
		return nil, fmt.Errorf("decode activity log: %w", err)
	}

	var entries []domain.ActivityEntry
	for i, row := range t.rows {
		hash := t.get(row, "hash")
		if documentHash != "" && hash != documentHash {
			continue
		}
		at, err := parseTime("fecha_hora", t.get(row, "fecha_hora"))
		if err != nil {
			return nil, fmt.Errorf("decode activity row %d: %w", i+1, err)
		}
		entries = append(entries, domain.ActivityEntry{
			DocumentHash: hash,
			At:           at,
			Actor:        t.get(row, "usuario"),
			Role:         domain.Role(t.get(row, "rol")),
			Action:       domain.Action(t.get(row, "accion")),
			Comment:      t.get(row, "comentario_opcional"),
		})
	}

	// Rows are appended in time order; reversing before the stable sort
	// keeps later rows first within the same second.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.After(entries[j].At)
	})
	return entries, nil
}
