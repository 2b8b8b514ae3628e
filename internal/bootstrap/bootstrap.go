package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kirillkom/document-ledger/internal/config"
	"github.com/kirillkom/document-ledger/internal/core/ports"
	"github.com/kirillkom/document-ledger/internal/core/usecase"
	"github.com/kirillkom/document-ledger/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-ledger/internal/infrastructure/repository/csvfile"
	"github.com/kirillkom/document-ledger/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-ledger/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/document-ledger/internal/infrastructure/resilience"
	scanfs "github.com/kirillkom/document-ledger/internal/infrastructure/scanner/localfs"
	"github.com/kirillkom/document-ledger/internal/infrastructure/storage/localfs"
)

// Telemetry carries the optional observers a command wants wired into the
// core. Zero values disable them.
type Telemetry struct {
	Observer ports.LedgerObserver
	Hooks    resilience.Hooks
	// ClientName identifies the process to the broker.
	ClientName string
}

type App struct {
	Config config.Config

	Queue      ports.BlockEventQueue
	Documents  ports.DocumentRepository
	Ledger     *usecase.LedgerService
	Workflow   *usecase.WorkflowService
	Reconciler *usecase.Reconciler

	closeFn func()
}

type stores struct {
	documents ports.DocumentRepository
	activity  ports.ActivityLog
	chains    ports.ChainStore
	close     func()
}

func New(ctx context.Context, cfg config.Config, telemetry Telemetry) (*App, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var (
		queue     *nats.Queue
		eventQ    ports.BlockEventQueue
		publisher ports.BlockEventPublisher
	)
	if cfg.EventsEnabled {
		policy := resilience.DefaultPolicy()
		policy.Retry.MaxAttempts = cfg.ResilienceMaxAttempts
		policy.Breaker.Enabled = cfg.ResilienceBreakerEnable

		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ClientName:         telemetry.ClientName,
			ResilienceExecutor: resilience.NewExecutor(policy, telemetry.Hooks),
		})
		if err != nil {
			st.close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		eventQ = queue
		publisher = queue
	}

	ledger := usecase.NewLedgerService(st.chains, st.documents, publisher, telemetry.Observer)
	workflow := usecase.NewWorkflowService(st.documents, st.activity, storage, ledger)
	reconciler := usecase.NewReconciler(scanfs.New(cfg.ScanExtensions), st.documents, ledger)

	slog.Info("bootstrap_ready",
		"backend", cfg.Backend,
		"events_enabled", cfg.EventsEnabled,
		"storage_path", cfg.StoragePath,
	)

	return &App{
		Config:     cfg,
		Queue:      eventQ,
		Documents:  st.documents,
		Ledger:     ledger,
		Workflow:   workflow,
		Reconciler: reconciler,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			st.close()
		},
	}, nil
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("open sqlite: %w", err)
		}
		return stores{
			documents: store.Documents(),
			activity:  store.Activity(),
			chains:    store.Chains(),
			close:     func() { _ = store.Close() },
		}, nil

	case config.BackendPostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return stores{}, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, fmt.Errorf("ensure schema: %w", err)
		}
		return stores{
			documents: postgres.NewDocumentRepository(db),
			activity:  postgres.NewActivityRepository(db),
			chains:    postgres.NewChainRepository(db),
			close:     func() { _ = db.Close() },
		}, nil

	default:
		for _, file := range []string{cfg.RegistryFile, cfg.ActivityFile} {
			if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
				return stores{}, fmt.Errorf("create data dir: %w", err)
			}
		}
		chains, err := csvfile.NewChainStore(cfg.ChainDir)
		if err != nil {
			return stores{}, fmt.Errorf("init chain store: %w", err)
		}
		return stores{
			documents: csvfile.NewDocumentStore(cfg.RegistryFile),
			activity:  csvfile.NewActivityStore(cfg.ActivityFile),
			chains:    chains,
			close:     func() {},
		}, nil
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
