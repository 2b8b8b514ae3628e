// Package report exports reconciliation reports as spreadsheets.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/ports"
)

// Columns of the flat export, one row per scanned file.
var Columns = []string{
	"Archivo",
	"Ruta",
	"Hash Calculado",
	"Hash Registrado",
	"Hash Blockchain",
	"Documento",
	"Versión",
	"Estatus",
	"Tamaño (bytes)",
	"Clasificación",
}

// ForFormat returns the exporter for "xlsx" or "csv".
func ForFormat(format string) (ports.ReportExporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "xlsx", "excel":
		return NewXLSXExporter(), nil
	case "csv":
		return NewCSVExporter(), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "report format", fmt.Errorf("unsupported format %q", format))
	}
}

func entryRow(e domain.ReconciliationEntry) []string {
	return []string{
		e.File.Name,
		e.File.Path,
		e.File.Hash,
		e.MatchedHash,
		e.ChainHash,
		e.MatchedName,
		e.MatchedVersion,
		string(e.MatchedStatus),
		strconv.FormatInt(e.File.Size, 10),
		e.Verdict.Label(),
	}
}

var verdictOrder = []domain.Verdict{
	domain.VerdictIntact,
	domain.VerdictIntactViaChain,
	domain.VerdictModified,
	domain.VerdictUnregistered,
}

func countFor(c domain.VerdictCounts, v domain.Verdict) int {
	switch v {
	case domain.VerdictIntact:
		return c.Intact
	case domain.VerdictIntactViaChain:
		return c.IntactViaChain
	case domain.VerdictModified:
		return c.Modified
	case domain.VerdictUnregistered:
		return c.Unregistered
	}
	return 0
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
