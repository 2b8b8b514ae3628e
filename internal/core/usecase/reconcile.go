package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/naming"
	"github.com/kirillkom/document-ledger/internal/core/ports"
)

type Reconciler struct {
	scanner ports.FileScanner
	repo    ports.DocumentRepository
	ledger  *LedgerService

	now func() time.Time
}

func NewReconciler(scanner ports.FileScanner, repo ports.DocumentRepository, ledger *LedgerService) *Reconciler {
	return &Reconciler{
		scanner: scanner,
		repo:    repo,
		ledger:  ledger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile scans req.Root and classifies every retained file against the
// registry and the latest hash recorded in the matched document's chain.
func (r *Reconciler) Reconcile(ctx context.Context, req domain.ScanRequest) (domain.ReconciliationReport, error) {
	report := domain.ReconciliationReport{
		ID:          uuid.NewString(),
		Root:        req.Root,
		StartedAt:   r.now(),
		ByExtension: make(map[string]domain.VerdictCounts),
	}

	summary, err := r.scanner.Scan(ctx, req)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	registry, err := r.repo.List(ctx)
	if err != nil {
		return domain.ReconciliationReport{}, fmt.Errorf("list documents: %w", err)
	}

	report.SkippedOversize = summary.SkippedOversize
	report.Truncated = summary.Truncated
	report.Failures = append(report.Failures, summary.Failures...)
	report.Entries = make([]domain.ReconciliationEntry, 0, len(summary.Files))

	for _, file := range summary.Files {
		if err := ctx.Err(); err != nil {
			return domain.ReconciliationReport{}, err
		}
		entry := domain.ReconciliationEntry{File: file}

		matched, _ := naming.MatchByName(file.Name, registry)
		chainHash := ""
		if matched != nil {
			chainHash, err = r.ledger.LatestDocumentHash(ctx, matched.Hash)
			if err != nil {
				slog.Warn("chain_lookup_failed",
					"path", file.Path,
					"document_hash", matched.Hash,
					"error", err.Error(),
				)
				report.Failures = append(report.Failures, domain.ScanFailure{Path: file.Path, Error: err.Error()})
				chainHash = ""
			}
			entry.MatchedHash = matched.Hash
			entry.MatchedName = matched.Name
			entry.MatchedVersion = matched.Version
			entry.MatchedStatus = matched.Status
			entry.ChainHash = firstNonEmpty(chainHash, matched.Hash)
		}
		entry.Verdict = Classify(file.Hash, matched, chainHash)

		report.Entries = append(report.Entries, entry)
		report.Counts.Add(entry.Verdict)
		ext := report.ByExtension[file.Extension]
		ext.Add(entry.Verdict)
		report.ByExtension[file.Extension] = ext
	}

	report.FinishedAt = r.now()
	return report, nil
}

// Classify assigns the verdict of one file. chainLatestHash is the document
// hash of the newest block in the matched record's chain, or "".
func Classify(fileHash string, matched *domain.Document, chainLatestHash string) domain.Verdict {
	switch {
	case matched == nil:
		return domain.VerdictUnregistered
	case fileHash == matched.Hash:
		return domain.VerdictIntact
	case chainLatestHash != "" && fileHash == chainLatestHash:
		return domain.VerdictIntactViaChain
	default:
		return domain.VerdictModified
	}
}
