package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/ledger"
	"github.com/kirillkom/document-ledger/internal/core/ports"
)

// maxAppendAttempts bounds reload-and-retry when another process appended
// to the same chain between our load and our write.
const maxAppendAttempts = 3

type LedgerService struct {
	chains    ports.ChainStore
	registry  ports.DocumentRepository
	publisher ports.BlockEventPublisher
	observer  ports.LedgerObserver

	now   func() time.Time
	locks *chainLocks
}

// NewLedgerService wires the chain store. publisher and observer may be nil.
func NewLedgerService(
	chains ports.ChainStore,
	registry ports.DocumentRepository,
	publisher ports.BlockEventPublisher,
	observer ports.LedgerObserver,
) *LedgerService {
	return &LedgerService{
		chains:    chains,
		registry:  registry,
		publisher: publisher,
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     newChainLocks(),
	}
}

// Initialize creates the genesis block of a newly registered document. When
// a chain already exists for the hash, the content was registered before and
// later replaced; the existing chain is continued with a "Documento Subido"
// block and never truncated.
func (s *LedgerService) Initialize(ctx context.Context, documentHash string, meta domain.Metadata) (domain.Block, error) {
	genesis := ledger.NewGenesis(documentHash, meta, s.now())

	unlock := s.locks.lock(domain.ChainID(documentHash))
	err := s.chains.Create(ctx, genesis)
	unlock()

	switch {
	case err == nil:
		s.afterAppend(ctx, genesis, false)
		return genesis, nil
	case domain.IsKind(err, domain.ErrChainExists):
		slog.Info("chain_resumed",
			"chain_id", domain.ChainID(documentHash),
			"document_hash", documentHash,
			"actor", meta.Creator,
		)
		return s.append(ctx, documentHash, domain.ActionUploaded, meta, meta.Creator, true)
	default:
		return domain.Block{}, fmt.Errorf("create chain: %w", err)
	}
}

// Append adds a block to the chain of documentHash. A missing chain is
// re-created with the requested event as its genesis block; that path is
// logged and flagged on the published event so it is never mistaken for a
// normal append. An unreadable chain is returned as an error and left
// untouched.
func (s *LedgerService) Append(
	ctx context.Context,
	documentHash string,
	action domain.Action,
	snapshot domain.Metadata,
	actor string,
) (domain.Block, error) {
	return s.append(ctx, documentHash, action, snapshot, actor, false)
}

// Fork records the first event of a content replacement on the chain of the
// new hash. Starting a chain here is the expected path, not a self-heal.
func (s *LedgerService) Fork(
	ctx context.Context,
	newHash string,
	snapshot domain.Metadata,
	actor string,
) (domain.Block, error) {
	return s.append(ctx, newHash, domain.ActionUpdatedWithNewFile, snapshot, actor, true)
}

func (s *LedgerService) append(
	ctx context.Context,
	documentHash string,
	action domain.Action,
	snapshot domain.Metadata,
	actor string,
	expectNew bool,
) (domain.Block, error) {
	block, created, err := s.appendLocked(ctx, documentHash, action, snapshot, actor)
	if err != nil {
		return domain.Block{}, err
	}

	reinitialized := created && !expectNew
	if reinitialized {
		slog.Warn("chain_reinitialized",
			"chain_id", domain.ChainID(documentHash),
			"document_hash", documentHash,
			"action", string(action),
			"actor", actor,
		)
		if s.observer != nil {
			s.observer.ChainReinitialized(domain.ChainID(documentHash))
		}
	}
	// Publishing may wait on broker retries, so it runs after the chain
	// lock is released.
	s.afterAppend(ctx, block, reinitialized)
	return block, nil
}

// appendLocked holds the chain lock for the load-and-write cycle only.
func (s *LedgerService) appendLocked(
	ctx context.Context,
	documentHash string,
	action domain.Action,
	snapshot domain.Metadata,
	actor string,
) (domain.Block, bool, error) {
	unlock := s.locks.lock(domain.ChainID(documentHash))
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		block, created, err := s.appendOnce(ctx, documentHash, action, snapshot, actor)
		if err == nil {
			return block, created, nil
		}
		if !domain.IsKind(err, domain.ErrSequenceConflict) && !domain.IsKind(err, domain.ErrChainExists) {
			return domain.Block{}, false, err
		}
		lastErr = err
	}
	return domain.Block{}, false, fmt.Errorf("append after %d attempts: %w", maxAppendAttempts, lastErr)
}

func (s *LedgerService) appendOnce(
	ctx context.Context,
	documentHash string,
	action domain.Action,
	snapshot domain.Metadata,
	actor string,
) (domain.Block, bool, error) {
	chain, err := s.chains.Load(ctx, documentHash)
	if err != nil {
		if !domain.IsKind(err, domain.ErrChainNotFound) {
			return domain.Block{}, false, fmt.Errorf("load chain: %w", err)
		}
		genesis := ledger.NewGenesisWithAction(documentHash, action, snapshot, actor, s.now())
		if err := s.chains.Create(ctx, genesis); err != nil {
			return domain.Block{}, false, fmt.Errorf("create chain: %w", err)
		}
		return genesis, true, nil
	}

	prev, ok := chain.Latest()
	var block domain.Block
	if ok {
		block = ledger.NextBlock(prev, documentHash, action, snapshot, actor, s.now())
	} else {
		block = ledger.NewGenesisWithAction(documentHash, action, snapshot, actor, s.now())
	}
	if err := s.chains.Append(ctx, block); err != nil {
		return domain.Block{}, false, fmt.Errorf("append block: %w", err)
	}
	return block, !ok, nil
}

func (s *LedgerService) afterAppend(ctx context.Context, block domain.Block, reinitialized bool) {
	if s.observer != nil {
		s.observer.BlockAppended(block.Action)
	}
	if s.publisher == nil {
		return
	}
	event := domain.BlockEvent{
		DocumentHash:  block.DocumentHash,
		ChainID:       domain.ChainID(block.DocumentHash),
		Sequence:      block.Sequence,
		Action:        block.Action,
		Actor:         block.Actor,
		BlockHash:     block.Hash,
		Reinitialized: reinitialized,
		OccurredAt:    block.Timestamp,
	}
	if err := s.publisher.PublishBlockAppended(ctx, event); err != nil {
		slog.Warn("block_event_publish_failed",
			"chain_id", event.ChainID,
			"sequence", event.Sequence,
			"error", err.Error(),
		)
	}
}

// Verify replays the stored chain of documentHash.
func (s *LedgerService) Verify(ctx context.Context, documentHash string) (domain.Verification, error) {
	chain, err := s.chains.Load(ctx, documentHash)
	if err != nil {
		if domain.IsKind(err, domain.ErrChainNotFound) {
			return ledger.NotFound(documentHash), nil
		}
		return domain.Verification{}, fmt.Errorf("load chain: %w", err)
	}
	return ledger.Verify(ctx, chain)
}

// History returns the chain in ascending sequence order.
func (s *LedgerService) History(ctx context.Context, documentHash string) (domain.Chain, error) {
	chain, err := s.chains.Load(ctx, documentHash)
	if err != nil {
		return domain.Chain{}, err
	}
	return chain.Sorted(), nil
}

// LatestDocumentHash returns the document hash carried by the highest
// sequence block of the chain addressed by documentHash, or "" when the
// chain does not exist.
func (s *LedgerService) LatestDocumentHash(ctx context.Context, documentHash string) (string, error) {
	chain, err := s.chains.Load(ctx, documentHash)
	if err != nil {
		if domain.IsKind(err, domain.ErrChainNotFound) {
			return "", nil
		}
		return "", err
	}
	latest, ok := chain.Latest()
	if !ok {
		return "", nil
	}
	return latest.DocumentHash, nil
}

// VerifyAll verifies the chain of every registered document.
func (s *LedgerService) VerifyAll(ctx context.Context) ([]domain.ChainStatus, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	out := make([]domain.ChainStatus, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status := domain.ChainStatus{
			DocumentHash: doc.Hash,
			Name:         doc.Name,
			Type:         doc.Type,
			Status:       doc.Status,
		}

		chain, err := s.chains.Load(ctx, doc.Hash)
		switch {
		case domain.IsKind(err, domain.ErrChainNotFound):
			status.Integrity = domain.IntegrityMissing
			status.Reason = ledger.ReasonChainNotFound
			out = append(out, status)
			continue
		case err != nil:
			status.Integrity = domain.IntegrityCompromised
			status.Reason = err.Error()
			out = append(out, status)
			continue
		}

		res, err := ledger.Verify(ctx, chain)
		if err != nil {
			return nil, err
		}
		status.Blocks = res.Blocks
		if latest, ok := chain.Latest(); ok {
			status.LastAction = latest.Action
			status.LastTimestamp = latest.Timestamp
		}
		status.Reason = res.Reason
		status.Integrity = domain.IntegrityIntact
		if !res.OK {
			status.Integrity = domain.IntegrityCompromised
		}
		out = append(out, status)
	}
	return out, nil
}

// chainLocks hands out one mutex per chain id and forgets it once unused.
type chainLocks struct {
	mu    sync.Mutex
	locks map[string]*chainLock
}

type chainLock struct {
	mu   sync.Mutex
	refs int
}

func newChainLocks() *chainLocks {
	return &chainLocks{locks: make(map[string]*chainLock)}
}

func (l *chainLocks) lock(id string) func() {
	l.mu.Lock()
	cl, ok := l.locks[id]
	if !ok {
		cl = &chainLock{}
		l.locks[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
