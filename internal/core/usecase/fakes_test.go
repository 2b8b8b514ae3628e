package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

type chainStoreFake struct {
	mu       sync.Mutex
	chains   map[string][]domain.Block
	loadErr  error
	appended int
}

func newChainStoreFake() *chainStoreFake {
	return &chainStoreFake{chains: make(map[string][]domain.Block)}
}

func (f *chainStoreFake) Load(_ context.Context, documentHash string) (domain.Chain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.Chain{}, f.loadErr
	}
	blocks, ok := f.chains[domain.ChainID(documentHash)]
	if !ok {
		return domain.Chain{}, domain.WrapError(domain.ErrChainNotFound, "load chain", errors.New(documentHash))
	}
	out := make([]domain.Block, len(blocks))
	copy(out, blocks)
	return domain.Chain{DocumentHash: documentHash, Blocks: out}, nil
}

func (f *chainStoreFake) Create(_ context.Context, genesis domain.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := domain.ChainID(genesis.DocumentHash)
	if _, ok := f.chains[id]; ok {
		return domain.WrapError(domain.ErrChainExists, "create chain", errors.New(id))
	}
	f.chains[id] = []domain.Block{genesis}
	return nil
}

func (f *chainStoreFake) Append(_ context.Context, block domain.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := domain.ChainID(block.DocumentHash)
	blocks, ok := f.chains[id]
	if !ok {
		return domain.WrapError(domain.ErrChainNotFound, "append block", errors.New(id))
	}
	if int64(len(blocks)) != block.Sequence {
		return domain.WrapError(domain.ErrSequenceConflict, "append block", errors.New(id))
	}
	f.chains[id] = append(blocks, block)
	f.appended++
	return nil
}

func (f *chainStoreFake) blocks(documentHash string) []domain.Block {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chains[domain.ChainID(documentHash)]
}

type documentRepoFake struct {
	docs    []domain.Document
	listErr error
}

func (f *documentRepoFake) Create(_ context.Context, doc *domain.Document) error {
	for _, d := range f.docs {
		if d.Hash == doc.Hash {
			return domain.WrapError(domain.ErrDuplicateDocument, "create document", errors.New(doc.Hash))
		}
	}
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *documentRepoFake) GetByHash(_ context.Context, hash string) (*domain.Document, error) {
	for _, d := range f.docs {
		if d.Hash == hash {
			doc := d
			return &doc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(hash))
}

func (f *documentRepoFake) List(context.Context) ([]domain.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Document, len(f.docs))
	copy(out, f.docs)
	return out, nil
}

func (f *documentRepoFake) Update(_ context.Context, previousHash string, doc *domain.Document) error {
	for i, d := range f.docs {
		if d.Hash == previousHash {
			f.docs[i] = *doc
			return nil
		}
	}
	return domain.WrapError(domain.ErrDocumentNotFound, "update document", errors.New(previousHash))
}

type activityLogFake struct {
	entries []domain.ActivityEntry
}

func (f *activityLogFake) Record(_ context.Context, entry domain.ActivityEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *activityLogFake) List(_ context.Context, documentHash string) ([]domain.ActivityEntry, error) {
	var out []domain.ActivityEntry
	for _, e := range f.entries {
		if documentHash == "" || e.DocumentHash == documentHash {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

type storageFake struct {
	saved map[string]string
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.saved[key])), nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.BlockEvent
	err    error
	// hold, when set, blocks every publish until it is closed.
	hold    chan struct{}
	started chan struct{}
}

func (f *publisherFake) PublishBlockAppended(_ context.Context, event domain.BlockEvent) error {
	if f.hold != nil {
		f.started <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	mu            sync.Mutex
	appended      []domain.Action
	reinitialized []string
}

func (f *observerFake) BlockAppended(action domain.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, action)
}

func (f *observerFake) ChainReinitialized(chainID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reinitialized = append(f.reinitialized, chainID)
}

type scannerFake struct {
	summary domain.ScanSummary
	err     error
}

func (f *scannerFake) Scan(context.Context, domain.ScanRequest) (domain.ScanSummary, error) {
	return f.summary, f.err
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
