// Package localfs walks a directory tree and hashes the files eligible for
// reconciliation.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-ledger/internal/core/digest"
	"github.com/kirillkom/document-ledger/internal/core/domain"
)

const (
	DefaultMaxFiles     = 100
	DefaultMaxSizeBytes = 50 << 20
)

// DefaultExtensions covers documents, spreadsheets, presentations, images
// and plain text.
var DefaultExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".txt", ".jpg", ".png", ".ppt", ".pptx",
}

type Scanner struct {
	extensions map[string]struct{}
	hash       func(path string) (string, int64, error)
}

// New builds a scanner for the given extensions. Matching is case
// insensitive and a missing leading dot is added. An empty list selects
// DefaultExtensions.
func New(extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &Scanner{extensions: set, hash: hashFile}
}

// Scan enumerates root recursively in lexical order. Files above
// MaxSizeBytes are counted and skipped. Every eligible file that is opened
// for hashing takes one of the MaxFiles slots, whether hashing succeeds or
// not. Once the slots are used the walk stops at the next eligible file and
// the summary is marked truncated. Unreadable entries are recorded as
// failures and never abort the walk.
func (s *Scanner) Scan(ctx context.Context, req domain.ScanRequest) (domain.ScanSummary, error) {
	info, err := os.Stat(req.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ScanSummary{}, domain.WrapError(domain.ErrPathNotFound, "scan", err)
	}
	if err != nil {
		return domain.ScanSummary{}, fmt.Errorf("scan: stat root: %w", err)
	}
	if !info.IsDir() {
		return domain.ScanSummary{}, domain.WrapError(domain.ErrNotADirectory, "scan", fmt.Errorf("%s", req.Root))
	}

	maxFiles := req.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	maxSize := req.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeBytes
	}

	summary := domain.ScanSummary{Files: make([]domain.ScanResult, 0)}
	gathered := 0
	fail := func(path string, err error) {
		slog.Warn("scan_file_failed", "path", path, "error", err)
		summary.Failures = append(summary.Failures, domain.ScanFailure{Path: path, Error: err.Error()})
	}

	walkErr := filepath.WalkDir(req.Root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == req.Root {
				return err
			}
			fail(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := s.extensions[ext]; !ok {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			fail(path, err)
			return nil
		}
		if fi.Size() > maxSize {
			summary.SkippedOversize++
			return nil
		}
		if gathered >= maxFiles {
			summary.Truncated = true
			return filepath.SkipAll
		}
		gathered++

		hash, size, err := s.hash(path)
		if err != nil {
			fail(path, err)
			return nil
		}
		summary.Files = append(summary.Files, domain.ScanResult{
			Path:      path,
			Name:      d.Name(),
			Extension: ext,
			Size:      size,
			Hash:      hash,
			ParentDir: filepath.Dir(path),
		})
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return domain.ScanSummary{}, walkErr
		}
		return domain.ScanSummary{}, fmt.Errorf("scan %s: %w", req.Root, walkErr)
	}
	return summary, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return digest.SHA256Reader(f)
}
