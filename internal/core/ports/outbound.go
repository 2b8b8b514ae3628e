package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

// DocumentRepository persists the document registry keyed by content hash.
type DocumentRepository interface {
	// Create fails with domain.ErrDuplicateDocument when the hash exists.
	Create(ctx context.Context, doc *domain.Document) error
	// GetByHash fails with domain.ErrDocumentNotFound.
	GetByHash(ctx context.Context, hash string) (*domain.Document, error)
	// List returns records in registry order.
	List(ctx context.Context) ([]domain.Document, error)
	// Update replaces the record stored under previousHash. doc.Hash may
	// differ from previousHash when the content was replaced.
	Update(ctx context.Context, previousHash string, doc *domain.Document) error
}

// ActivityLog stores the per-action audit trail shown to supervisors.
type ActivityLog interface {
	Record(ctx context.Context, entry domain.ActivityEntry) error
	// List returns entries newest first. An empty hash lists everything.
	List(ctx context.Context, documentHash string) ([]domain.ActivityEntry, error)
}

// ChainStore persists one append-only chain per document.
type ChainStore interface {
	// Load fails with domain.ErrChainNotFound when no chain exists.
	Load(ctx context.Context, documentHash string) (domain.Chain, error)
	// Create stores a genesis block and fails with domain.ErrChainExists.
	Create(ctx context.Context, genesis domain.Block) error
	// Append stores a successor block. It fails with
	// domain.ErrSequenceConflict when block.Sequence is not the next free
	// sequence number of the stored chain.
	Append(ctx context.Context, block domain.Block) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// BlockEventPublisher announces durable appends.
type BlockEventPublisher interface {
	PublishBlockAppended(ctx context.Context, event domain.BlockEvent) error
}

// BlockEventQueue publishes and consumes block events.
type BlockEventQueue interface {
	BlockEventPublisher
	SubscribeBlockAppended(ctx context.Context, handler func(context.Context, domain.BlockEvent) error) error
}

// FileScanner enumerates and hashes candidate files under a root.
type FileScanner interface {
	Scan(ctx context.Context, req domain.ScanRequest) (domain.ScanSummary, error)
}

// ReportExporter writes a reconciliation report in a flat tabular format.
type ReportExporter interface {
	ContentType() string
	Export(ctx context.Context, w io.Writer, report domain.ReconciliationReport) error
}

// LedgerObserver receives chain lifecycle signals, typically for metrics.
type LedgerObserver interface {
	BlockAppended(action domain.Action)
	ChainReinitialized(chainID string)
}
