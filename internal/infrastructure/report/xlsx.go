package report

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

const (
	entriesSheet  = "Reconciliación"
	summarySheet  = "Resumen"
	failuresSheet = "Errores"
)

// XLSXExporter writes the report as a workbook with an entries sheet, a
// summary sheet and, when the scan hit unreadable files, a failures sheet.
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Export(ctx context.Context, w io.Writer, report domain.ReconciliationReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", entriesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, entriesSheet, 1, toAny(Columns)); err != nil {
		return err
	}
	for i, entry := range report.Entries {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := toAny(entryRow(entry))
		row[8] = entry.File.Size
		if err := writeRow(f, entriesSheet, i+2, row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(entriesSheet, "A1", lastCol+"1", header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(entriesSheet, "A", "B", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(entriesSheet, "C", "E", 66); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(entriesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if len(report.Entries) > 0 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(report.Entries)+1)
		if err := f.AutoFilter(entriesSheet, ref, nil); err != nil {
			return fmt.Errorf("set auto filter: %w", err)
		}
	}

	if err := writeSummary(f, report, header); err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		if err := writeFailures(f, report.Failures, header); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, report domain.ReconciliationReport, header int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]any{
		{"Reporte", report.ID},
		{"Carpeta", report.Root},
		{"Inicio", domain.FormatTimestamp(report.StartedAt)},
		{"Fin", domain.FormatTimestamp(report.FinishedAt)},
		{"Total archivos", report.Counts.Total()},
	}
	for _, v := range verdictOrder {
		rows = append(rows, []any{v.Label(), countFor(report.Counts, v)})
	}
	rows = append(rows,
		[]any{"Omitidos por tamaño", report.SkippedOversize},
		[]any{"Escaneo truncado", yesNo(report.Truncated)},
		[]any{"Errores de lectura", len(report.Failures)},
		[]any{},
	)

	extHeader := []any{"Extensión"}
	for _, v := range verdictOrder {
		extHeader = append(extHeader, v.Label())
	}
	extHeader = append(extHeader, "Total")
	rows = append(rows, extHeader)
	extHeaderRow := len(rows)

	exts := make([]string, 0, len(report.ByExtension))
	for ext := range report.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		counts := report.ByExtension[ext]
		row := []any{ext}
		for _, v := range verdictOrder {
			row = append(row, countFor(counts, v))
		}
		rows = append(rows, append(row, counts.Total()))
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(extHeader))
	if err := f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", extHeaderRow), fmt.Sprintf("%s%d", lastCol, extHeaderRow), header); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeFailures(f *excelize.File, failures []domain.ScanFailure, header int) error {
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return fmt.Errorf("create failures sheet: %w", err)
	}
	if err := writeRow(f, failuresSheet, 1, []any{"Ruta", "Error"}); err != nil {
		return err
	}
	for i, failure := range failures {
		if err := writeRow(f, failuresSheet, i+2, []any{failure.Path, failure.Error}); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(failuresSheet, "A1", "B1", header); err != nil {
		return fmt.Errorf("style failures: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
