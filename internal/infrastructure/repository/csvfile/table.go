// Package csvfile persists the registry, the activity log and the per
// document chains as CSV files compatible with the legacy layout.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

// table is a decoded CSV file: rows addressed by column name.
type table struct {
	index map[string]int
	rows  [][]string
}

// readTable decodes a CSV stream whose first record is the header. aliases
// maps legacy column names to canonical ones. An empty stream yields an
// empty table.
func readTable(r io.Reader, aliases map[string]string) (table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table{index: map[string]int{}}, nil
	}
	if err != nil {
		return table{}, fmt.Errorf("read header: %w", err)
	}

	t := table{index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		t.index[name] = i
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, fmt.Errorf("read row: %w", err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// get returns the named column of row, or "" when the column is absent.
func (t table) get(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func writeRecords(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// rewriteFile replaces path with header and rows via a temp file and rename.
func rewriteFile(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRecords(tmp, header, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace csv: %w", err)
	}
	return nil
}

var timestampLayouts = []string{domain.TimestampLayout, "2006-01-02", time.RFC3339}

// parseTime accepts the canonical layout plus the date-only and RFC 3339
// forms found in hand-edited registries.
func parseTime(column, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse %s %q", column, raw)
}
