package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

// ChainService is the inbound contract for hash chain operations.
type ChainService interface {
	Append(ctx context.Context, documentHash string, action domain.Action, snapshot domain.Metadata, actor string) (domain.Block, error)
	Verify(ctx context.Context, documentHash string) (domain.Verification, error)
	History(ctx context.Context, documentHash string) (domain.Chain, error)
	VerifyAll(ctx context.Context) ([]domain.ChainStatus, error)
}

// Upload carries a new document and the optional metadata overrides typed
// by the uploader. Empty fields are derived from the file name.
type Upload struct {
	Filename       string
	Body           io.Reader
	Name           string
	Type           string
	Version        string
	Note           string
	Reviewer       string
	Approver       string
	Nonconformance string
	Audit          string
}

// Change carries an update request. Body is nil when only metadata changes.
type Change struct {
	Filename       string
	Body           io.Reader
	Name           string
	Type           string
	Area           string
	Nonconformance string
	Audit          string
	Comment        string
}

// DocumentWorkflow is the inbound contract for registry state transitions.
// Guarded transitions report refusal through domain.Outcome; a non-nil
// error means an infrastructure failure.
type DocumentWorkflow interface {
	Register(ctx context.Context, actor domain.Actor, upload Upload) (domain.Outcome, error)
	Review(ctx context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error)
	Approve(ctx context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error)
	Reject(ctx context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error)
	Update(ctx context.Context, actor domain.Actor, hash string, change Change) (domain.Outcome, error)
	Get(ctx context.Context, hash string) (*domain.Document, error)
	List(ctx context.Context, actor domain.Actor) ([]domain.Document, error)
	Activity(ctx context.Context, actor domain.Actor, hash string) ([]domain.ActivityEntry, error)
}

// Reconciliation is the inbound contract for disk-versus-registry checks.
type Reconciliation interface {
	Reconcile(ctx context.Context, req domain.ScanRequest) (domain.ReconciliationReport, error)
}
