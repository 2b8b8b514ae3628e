package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/ports"
)

type verificationResponse struct {
	DocumentHash string `json:"document_hash"`
	OK           bool   `json:"ok"`
	Reason       string `json:"reason"`
	Kind         string `json:"kind,omitempty"`
	Sequence     int64  `json:"sequence,omitempty"`
	Blocks       int    `json:"blocks"`
}

func (rt *Router) chainHistory(w http.ResponseWriter, r *http.Request) {
	chain, err := rt.chains.History(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	if chain.Blocks == nil {
		chain.Blocks = []domain.Block{}
	}
	writeJSON(w, http.StatusOK, chain)
}

// verifyChain always answers 200 when verification ran; a broken chain is a
// result, not a request failure.
func (rt *Router) verifyChain(w http.ResponseWriter, r *http.Request) {
	v, err := rt.chains.Verify(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verificationResponse{
		DocumentHash: v.DocumentHash,
		OK:           v.OK,
		Reason:       v.Reason,
		Kind:         errorKindName(v.Kind),
		Sequence:     v.Sequence,
		Blocks:       v.Blocks,
	})
}

func (rt *Router) verifyAllChains(w http.ResponseWriter, r *http.Request) {
	if !rt.authorize(w, r, domain.CapabilityDashboard) {
		return
	}
	statuses, err := rt.chains.VerifyAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if statuses == nil {
		statuses = []domain.ChainStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chains": statuses})
}

func (rt *Router) reconcile(w http.ResponseWriter, r *http.Request) {
	if !rt.authorize(w, r, domain.CapabilityVerify) {
		return
	}
	var req struct {
		Root      string `json:"root"`
		MaxFiles  int    `json:"max_files"`
		MaxSizeMB int    `json:"max_size_mb"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Kind: "invalid_input"})
		return
	}
	if strings.TrimSpace(req.Root) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "root is required", Kind: "invalid_input"})
		return
	}
	if req.MaxFiles < 0 || req.MaxSizeMB < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limits must not be negative", Kind: "invalid_input"})
		return
	}

	format := strings.TrimSpace(r.URL.Query().Get("format"))
	var exporter ports.ReportExporter
	if format != "" && !strings.EqualFold(format, "json") {
		if rt.exporters == nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "report export is not configured", Kind: "invalid_input"})
			return
		}
		var err error
		if exporter, err = rt.exporters(format); err != nil {
			writeError(w, err)
			return
		}
	}

	scan := domain.ScanRequest{
		Root:         req.Root,
		MaxFiles:     req.MaxFiles,
		MaxSizeBytes: int64(req.MaxSizeMB) << 20,
	}
	if scan.MaxFiles == 0 {
		scan.MaxFiles = rt.cfg.ScanMaxFiles
	}
	if scan.MaxSizeBytes == 0 {
		scan.MaxSizeBytes = rt.cfg.ScanMaxSizeBytes()
	}

	start := time.Now()
	report, err := rt.reconciler.Reconcile(r.Context(), scan)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordReconciliation(report, time.Since(start))
	}

	if exporter == nil {
		writeJSON(w, http.StatusOK, report)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(report, format)))
	w.WriteHeader(http.StatusOK)
	if err := exporter.Export(r.Context(), w, report); err != nil {
		slog.Error("report_export_failed",
			"request_id", requestIDFromContext(r.Context()),
			"report_id", report.ID,
			"format", format,
			"error", err,
		)
	}
}

func reportFilename(report domain.ReconciliationReport, format string) string {
	ext := strings.ToLower(format)
	if ext == "excel" {
		ext = "xlsx"
	}
	stamp := report.StartedAt.UTC().Format("20060102_150405")
	return "reporte_integridad_" + stamp + "." + ext
}
