package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/ports"
)

func (rt *Router) registerDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	defer removeMultipart(r)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required", Kind: "invalid_input"})
		return
	}
	defer file.Close()

	outcome, err := rt.workflow.Register(r.Context(), actor, ports.Upload{
		Filename:       header.Filename,
		Body:           file,
		Name:           r.FormValue("name"),
		Type:           r.FormValue("type"),
		Version:        r.FormValue("version"),
		Note:           r.FormValue("note"),
		Reviewer:       r.FormValue("reviewer"),
		Approver:       r.FormValue("approver"),
		Nonconformance: r.FormValue("nonconformance"),
		Audit:          r.FormValue("audit"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusCreated, outcome)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := rt.workflow.List(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.workflow.Get(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type decisionFunc func(ctx context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error)

// decide adapts review, approve and reject, which share one request shape.
func (rt *Router) decide(fn decisionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}

		var req struct {
			Comment string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Kind: "invalid_input"})
			return
		}

		outcome, err := fn(r.Context(), actor, r.PathValue("hash"), strings.TrimSpace(req.Comment))
		if err != nil {
			writeError(w, err)
			return
		}
		writeOutcome(w, http.StatusOK, outcome)
	}
}

func (rt *Router) updateDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	defer removeMultipart(r)

	change := ports.Change{
		Name:           r.FormValue("name"),
		Type:           r.FormValue("type"),
		Area:           r.FormValue("area"),
		Nonconformance: r.FormValue("nonconformance"),
		Audit:          r.FormValue("audit"),
		Comment:        r.FormValue("comment"),
	}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		change.Filename = header.Filename
		change.Body = file
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart field 'file'", Kind: "invalid_input"})
		return
	}

	outcome, err := rt.workflow.Update(r.Context(), actor, r.PathValue("hash"), change)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, outcome)
}

func (rt *Router) activity(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := rt.workflow.Activity(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("hash")))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func removeMultipart(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		slog.Warn("multipart_cleanup_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(maxUploadBytes)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload exceeds size limit", Kind: "invalid_input"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form", Kind: "invalid_input"})
	return false
}
