// Command reconcile scans a directory, classifies every file against the
// registry and its hash chain, and optionally writes a spreadsheet report.
// It exits with status 1 when any file is classified as modified.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kirillkom/document-ledger/internal/bootstrap"
	"github.com/kirillkom/document-ledger/internal/config"
	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/infrastructure/report"
	"github.com/kirillkom/document-ledger/internal/observability/logging"
)

const (
	exitOK       = 0
	exitModified = 1
	exitFailure  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}

	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.String("root", "", "directory to scan (required)")
	maxFiles := fs.Int("max-files", cfg.ScanMaxFiles, "maximum number of files to classify")
	maxSizeMB := fs.Int("max-size-mb", cfg.ScanMaxSizeMB, "skip files larger than this many megabytes")
	out := fs.String("out", "", "write the report to this .xlsx or .csv file")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if strings.TrimSpace(*root) == "" {
		fmt.Fprintln(stderr, "reconcile: -root is required")
		fs.Usage()
		return exitFailure
	}

	logger := logging.NewJSONLoggerTo(stderr, "reconcile", cfg.LogLevel)
	slog.SetDefault(logger)
	// A one-shot scan never publishes block events.
	cfg.EventsEnabled = false

	app, err := bootstrap.New(ctx, cfg, bootstrap.Telemetry{})
	if err != nil {
		fmt.Fprintf(stderr, "bootstrap: %v\n", err)
		return exitFailure
	}
	defer app.Close()

	result, err := app.Reconciler.Reconcile(ctx, domain.ScanRequest{
		Root:         *root,
		MaxFiles:     *maxFiles,
		MaxSizeBytes: int64(*maxSizeMB) << 20,
	})
	if err != nil {
		fmt.Fprintf(stderr, "reconcile: %v\n", err)
		return exitFailure
	}

	if *out != "" {
		if err := writeReport(ctx, *out, result); err != nil {
			fmt.Fprintf(stderr, "report: %v\n", err)
			return exitFailure
		}
		logging.Component(logger, "report").Info("report_written", "path", *out, "report_id", result.ID)
	}

	printSummary(stdout, result)
	if result.Counts.Modified > 0 {
		return exitModified
	}
	return exitOK
}

func writeReport(ctx context.Context, path string, result domain.ReconciliationReport) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	exporter, err := report.ForFormat(format)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return exporter.Export(ctx, f, result)
}

func printSummary(w io.Writer, result domain.ReconciliationReport) {
	fmt.Fprintf(w, "Raíz: %s\n", result.Root)
	fmt.Fprintf(w, "%-22s %d\n", domain.VerdictIntact.Label(), result.Counts.Intact)
	fmt.Fprintf(w, "%-22s %d\n", domain.VerdictIntactViaChain.Label(), result.Counts.IntactViaChain)
	fmt.Fprintf(w, "%-22s %d\n", domain.VerdictModified.Label(), result.Counts.Modified)
	fmt.Fprintf(w, "%-22s %d\n", domain.VerdictUnregistered.Label(), result.Counts.Unregistered)
	fmt.Fprintf(w, "%-22s %d\n", "Total archivos", result.Counts.Total())
	if result.SkippedOversize > 0 {
		fmt.Fprintf(w, "%-22s %d\n", "Omitidos por tamaño", result.SkippedOversize)
	}
	if result.Truncated {
		fmt.Fprintln(w, "Escaneo truncado al límite de archivos")
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "Error de lectura: %s: %s\n", f.Path, f.Error)
	}
}
