package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

// CSVExporter writes the flat entries table only.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string {
	return "text/csv; charset=utf-8"
}

func (e *CSVExporter) Export(ctx context.Context, w io.Writer, report domain.ReconciliationReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range report.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(entryRow(entry)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
