package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/ledger"
)

const docHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

var t0 = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func sampleMeta() domain.Metadata {
	return domain.Metadata{
		Name:      "Manual Calidad",
		Type:      "Manual",
		CreatedAt: t0,
		UpdatedAt: t0,
		Version:   "v1.0",
		Status:    domain.StatusPublished,
		Creator:   "Alice",
		Area:      "Calidad",
	}
}

func TestChainStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewChainStore(dir)
	if err != nil {
		t.Fatalf("NewChainStore() error = %v", err)
	}
	ctx := context.Background()

	genesis := ledger.NewGenesis(docHash, sampleMeta(), t0)
	if err := store.Create(ctx, genesis); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	meta := sampleMeta()
	meta.ModificationNote = "Revisado: ok, con coma"
	next := ledger.NextBlock(genesis, docHash, domain.ActionReviewed, meta, "Bob", t0.Add(time.Minute))
	if err := store.Append(ctx, next); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "blockchain_0123456789abcdef.csv")); err != nil {
		t.Fatalf("expected chain file named by chain id: %v", err)
	}

	chain, err := store.Load(ctx, docHash)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(chain.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(chain.Blocks))
	}
	if chain.Blocks[1] != next {
		t.Fatalf("expected %+v, got %+v", next, chain.Blocks[1])
	}
	v, err := ledger.Verify(ctx, chain)
	if err != nil || !v.OK {
		t.Fatalf("expected intact chain, got %+v err=%v", v, err)
	}
}

func TestChainStoreCreateTwiceConflicts(t *testing.T) {
	store, err := NewChainStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChainStore() error = %v", err)
	}
	genesis := ledger.NewGenesis(docHash, sampleMeta(), t0)
	if err := store.Create(context.Background(), genesis); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(context.Background(), genesis); !domain.IsKind(err, domain.ErrChainExists) {
		t.Fatalf("expected chain exists, got %v", err)
	}
}

func TestChainStoreMissingChain(t *testing.T) {
	store, err := NewChainStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChainStore() error = %v", err)
	}
	if _, err := store.Load(context.Background(), docHash); !domain.IsKind(err, domain.ErrChainNotFound) {
		t.Fatalf("expected chain not found, got %v", err)
	}
	block := ledger.NewGenesis(docHash, sampleMeta(), t0)
	block.Sequence = 1
	if err := store.Append(context.Background(), block); !domain.IsKind(err, domain.ErrChainNotFound) {
		t.Fatalf("expected chain not found on append, got %v", err)
	}
}

func TestChainStoreRejectsStaleSequence(t *testing.T) {
	store, err := NewChainStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChainStore() error = %v", err)
	}
	ctx := context.Background()
	genesis := ledger.NewGenesis(docHash, sampleMeta(), t0)
	if err := store.Create(ctx, genesis); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	first := ledger.NextBlock(genesis, docHash, domain.ActionReviewed, sampleMeta(), "Bob", t0)
	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	stale := ledger.NextBlock(genesis, docHash, domain.ActionApproved, sampleMeta(), "Carol", t0)
	if err := store.Append(ctx, stale); !domain.IsKind(err, domain.ErrSequenceConflict) {
		t.Fatalf("expected sequence conflict, got %v", err)
	}
}

func TestChainStoreReadsLegacyHeader(t *testing.T) {
	dir := t.TempDir()
	genesis := ledger.NewGenesis(docHash, sampleMeta(), t0)
	legacy := "numero_bloque,hash_documento,nombre_documento,tipo,fecha_creacion,fecha_actualizacion,version,estatus," +
		"modificacion,creador,area,revisor,aprobador,no_conformidad,auditoria,hash_bloque_anterior,timestamp,accion,hash_bloque,usuario_accion\n" +
		"0.0," + docHash + ",Manual Calidad,Manual,2025-03-01 09:30:00,2025-03-01 09:30:00,v1.0,Publicado,,Alice,Calidad,,,,,0," +
		"2025-03-01 09:30:00,Documento Creado," + genesis.Hash + ",Alice\n"
	path := filepath.Join(dir, "blockchain_"+domain.ChainID(docHash)+".csv")
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy chain: %v", err)
	}

	store, err := NewChainStore(dir)
	if err != nil {
		t.Fatalf("NewChainStore() error = %v", err)
	}
	chain, err := store.Load(context.Background(), docHash)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(chain.Blocks) != 1 || chain.Blocks[0].Hash != genesis.Hash || chain.Blocks[0].Actor != "Alice" {
		t.Fatalf("unexpected legacy decode: %+v", chain.Blocks)
	}
	v, err := ledger.Verify(context.Background(), chain)
	if err != nil || !v.OK {
		t.Fatalf("expected intact legacy chain, got %+v err=%v", v, err)
	}
}

func TestChainStoreSurfacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockchain_"+domain.ChainID(docHash)+".csv")
	body := strings.Join(chainHeader, ",") + "\nnot-a-number" + strings.Repeat(",", len(chainHeader)-1) + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write chain: %v", err)
	}
	store, err := NewChainStore(dir)
	if err != nil {
		t.Fatalf("NewChainStore() error = %v", err)
	}
	_, err = store.Load(context.Background(), docHash)
	if err == nil || domain.IsKind(err, domain.ErrChainNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestChainStoreConcurrentAppendsKeepOneWinnerPerSequence(t *testing.T) {
	store, err := NewChainStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChainStore() error = %v", err)
	}
	ctx := context.Background()
	genesis := ledger.NewGenesis(docHash, sampleMeta(), t0)
	if err := store.Create(ctx, genesis); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := ledger.NextBlock(genesis, docHash, domain.ActionReviewed, sampleMeta(), "Bob", t0)
			if err := store.Append(ctx, b); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one append to win, got %d", winners)
	}
	chain, err := store.Load(ctx, docHash)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(chain.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(chain.Blocks))
	}
}

func TestDocumentStoreLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registro.csv")
	store := NewDocumentStore(path)
	ctx := context.Background()

	docs, err := store.List(ctx)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected empty registry, got %v err=%v", docs, err)
	}

	doc := &domain.Document{Hash: "aaa", Metadata: sampleMeta()}
	if err := store.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, doc); !domain.IsKind(err, domain.ErrDuplicateDocument) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	second := &domain.Document{Hash: "bbb", Metadata: sampleMeta()}
	second.Name = "Procedimiento Compras"
	if err := store.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read registry: %v", err)
	}
	if !strings.HasPrefix(string(raw), strings.Join(registryHeader, ",")+"\n") {
		t.Fatalf("expected registry header, got %q", strings.SplitN(string(raw), "\n", 2)[0])
	}

	got, err := store.GetByHash(ctx, "aaa")
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if got.Metadata != doc.Metadata {
		t.Fatalf("expected %+v, got %+v", doc.Metadata, got.Metadata)
	}

	rekeyed := *got
	rekeyed.Hash = "ccc"
	rekeyed.Version = "v1.1"
	if err := store.Update(ctx, "aaa", &rekeyed); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := store.GetByHash(ctx, "aaa"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected old hash gone, got %v", err)
	}
	docs, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Hash != "ccc" || docs[1].Hash != "bbb" {
		t.Fatalf("expected registry order preserved, got %+v", docs)
	}

	clash := docs[0]
	clash.Hash = "bbb"
	if err := store.Update(ctx, "ccc", &clash); !domain.IsKind(err, domain.ErrDuplicateDocument) {
		t.Fatalf("expected duplicate on re-key clash, got %v", err)
	}
	if err := store.Update(ctx, "zzz", &clash); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDocumentStoreAcceptsDateOnlyColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registro.csv")
	body := strings.Join(registryHeader, ",") + "\n" +
		"abc,Manual,Manual,2024-05-01,2024-05-02,v1.0,Vigente,,Alice,Calidad,Bob,Bob,,\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	doc, err := NewDocumentStore(path).GetByHash(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !doc.CreatedAt.Equal(want) || doc.Status != domain.StatusApproved {
		t.Fatalf("unexpected decode: %+v", doc)
	}
}

func TestActivityStoreNewestFirst(t *testing.T) {
	store := NewActivityStore(filepath.Join(t.TempDir(), "bitacora.csv"))
	ctx := context.Background()

	entries := []domain.ActivityEntry{
		{DocumentHash: "aaa", At: t0, Actor: "Alice", Role: domain.RoleCollaborator, Action: "Subido como Publicado"},
		{DocumentHash: "bbb", At: t0.Add(time.Second), Actor: "Alice", Role: domain.RoleCollaborator, Action: "Subido como Publicado"},
		{DocumentHash: "aaa", At: t0.Add(2 * time.Second), Actor: "Bob", Role: domain.RoleApprover, Action: domain.ActionApproved, Comment: "ok, listo"},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0] != entries[2] || all[2] != entries[0] {
		t.Fatalf("expected newest first, got %+v", all)
	}

	forA, err := store.List(ctx, "aaa")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(forA) != 2 || forA[0].Comment != "ok, listo" {
		t.Fatalf("expected filtered entries, got %+v", forA)
	}
}

func TestActivityStoreMissingFileIsEmpty(t *testing.T) {
	store := NewActivityStore(filepath.Join(t.TempDir(), "bitacora.csv"))
	entries, err := store.List(context.Background(), "")
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty log, got %v err=%v", entries, err)
	}
}
