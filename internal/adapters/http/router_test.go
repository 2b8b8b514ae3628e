package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/document-ledger/internal/config"
	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/observability/metrics"
)

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzEndpoint(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestRegisterDocumentPassesUploadAndActor(t *testing.T) {
	doc := &domain.Document{Hash: testHash, Metadata: domain.Metadata{Name: "Manual", Status: domain.StatusDraft}}
	wf := &workflowFake{outcome: domain.Succeeded("Documento registrado", doc)}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	body, contentType := multipartBody(t, map[string]string{"name": "Manual", "version": "2"}, "manual_calidad.pdf", "pdf-bytes")
	req := withActor(httptest.NewRequest(http.MethodPost, "/v1/documents", body), "ana", domain.RoleCollaborator)
	req.Header.Set(actorAreaHeader, "Calidad")
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if len(wf.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(wf.uploads))
	}
	up := wf.uploads[0]
	if up.Filename != "manual_calidad.pdf" || up.Name != "Manual" || up.Version != "2" || wf.bodies[0] != "pdf-bytes" {
		t.Fatalf("unexpected upload: %+v body=%q", up, wf.bodies[0])
	}
	if wf.actors[0] != (domain.Actor{Name: "ana", Role: domain.RoleCollaborator, Area: "Calidad"}) {
		t.Fatalf("unexpected actor: %+v", wf.actors[0])
	}
	out := decodeBody(t, res)
	if out["ok"] != true {
		t.Fatalf("expected ok=true, got %v", out["ok"])
	}
}

func TestRegisterDocumentRequiresActorAndFile(t *testing.T) {
	handler := newTestHandler(config.Config{})

	body, contentType := multipartBody(t, nil, "a.pdf", "x")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without actor, got %d", res.Code)
	}

	body, contentType = multipartBody(t, map[string]string{"name": "x"}, "", "")
	req = withActor(httptest.NewRequest(http.MethodPost, "/v1/documents", body), "ana", domain.RoleAdmin)
	req.Header.Set("Content-Type", contentType)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", res.Code)
	}
}

func TestRefusedOutcomesMapToStatus(t *testing.T) {
	cases := []struct {
		name     string
		kind     error
		want     int
		kindName string
	}{
		{name: "permission", kind: domain.ErrPermissionDenied, want: http.StatusForbidden, kindName: "permission_denied"},
		{name: "duplicate", kind: domain.ErrDuplicateAction, want: http.StatusConflict, kindName: "duplicate_action"},
		{name: "transition", kind: domain.ErrInvalidTransition, want: http.StatusConflict, kindName: "invalid_transition"},
		{name: "missing", kind: domain.ErrDocumentNotFound, want: http.StatusNotFound, kindName: "document_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wf := &workflowFake{outcome: domain.Refused(tc.kind, "refused")}
			handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

			req := withActor(httptest.NewRequest(http.MethodPost, "/v1/documents/"+testHash+"/approve", strings.NewReader(`{"comment":"ok"}`)), "luis", domain.RoleApprover)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			out := decodeBody(t, res)
			if out["ok"] != false || out["kind"] != tc.kindName || out["reason"] != "refused" {
				t.Fatalf("unexpected body: %v", out)
			}
		})
	}
}

func TestDecisionRoutesCallMatchingTransition(t *testing.T) {
	wf := &workflowFake{outcome: domain.Succeeded("ok", nil)}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	for _, route := range []string{"review", "approve", "reject"} {
		req := withActor(httptest.NewRequest(http.MethodPost, "/v1/documents/"+testHash+"/"+route, strings.NewReader(`{"comment":" nota "}`)), "sara", domain.RoleAdmin)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", route, res.Code)
		}
	}

	want := []string{"review:" + testHash + ":nota", "approve:" + testHash + ":nota", "reject:" + testHash + ":nota"}
	if len(wf.decisions) != len(want) {
		t.Fatalf("expected %d decisions, got %v", len(want), wf.decisions)
	}
	for i := range want {
		if wf.decisions[i] != want[i] {
			t.Fatalf("decision %d: expected %q, got %q", i, want[i], wf.decisions[i])
		}
	}
}

func TestDecisionAcceptsEmptyBodyAndRejectsBadJSON(t *testing.T) {
	wf := &workflowFake{outcome: domain.Succeeded("ok", nil)}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/documents/"+testHash+"/review", nil), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/documents/"+testHash+"/review", strings.NewReader("{")), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", res.Code)
	}
}

func TestUpdateWithAndWithoutFile(t *testing.T) {
	wf := &workflowFake{outcome: domain.Succeeded("ok", nil)}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	body, contentType := multipartBody(t, map[string]string{"name": "Nuevo", "comment": "ajuste"}, "", "")
	req := withActor(httptest.NewRequest(http.MethodPost, "/v1/documents/"+testHash+"/update", body), "ana", domain.RoleCollaborator)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	body, contentType = multipartBody(t, map[string]string{"comment": "v2"}, "manual_v2.pdf", "new-bytes")
	req = withActor(httptest.NewRequest(http.MethodPost, "/v1/documents/"+testHash+"/update", body), "ana", domain.RoleCollaborator)
	req.Header.Set("Content-Type", contentType)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	if len(wf.changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(wf.changes))
	}
	if wf.changes[0].Body != nil || wf.changes[0].Name != "Nuevo" || wf.changes[0].Comment != "ajuste" {
		t.Fatalf("unexpected metadata-only change: %+v", wf.changes[0])
	}
	if wf.changes[1].Filename != "manual_v2.pdf" || len(wf.bodies) != 1 || wf.bodies[0] != "new-bytes" {
		t.Fatalf("unexpected file change: %+v bodies=%v", wf.changes[1], wf.bodies)
	}
}

func TestGetDocumentMapsNotFoundTo404(t *testing.T) {
	wf := &workflowFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("hash=missing"))}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListDocumentsReturnsEmptyArray(t *testing.T) {
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, withActor(httptest.NewRequest(http.MethodGet, "/v1/documents", nil), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"documents":[]`) {
		t.Fatalf("expected empty documents array, got %s", res.Body.String())
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	wf := &workflowFake{err: errors.New("disk exploded at /var/lib/x")}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodGet, "/v1/documents", nil), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "/var/lib/x") {
		t.Fatalf("expected internal detail to be hidden, got %s", res.Body.String())
	}
}

func TestActivityRequiresCapability(t *testing.T) {
	wf := &workflowFake{entries: []domain.ActivityEntry{{DocumentHash: testHash, Actor: "ana", Action: domain.ActionUploaded}}}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodGet, "/v1/activity?hash="+testHash, nil), "ana", domain.RoleCollaborator))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for collaborator, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodGet, "/v1/activity?hash="+testHash, nil), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for supervisor, got %d", res.Code)
	}
	out := decodeBody(t, res)
	entries, _ := out["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %v", out["entries"])
	}
}

func TestChainHistoryAndVerify(t *testing.T) {
	chains := &chainsFake{
		chain: domain.Chain{DocumentHash: testHash, Blocks: []domain.Block{{Sequence: 0, DocumentHash: testHash, Action: domain.ActionCreated}}},
		verification: domain.Verification{
			DocumentHash: testHash,
			Reason:       "Hash inválido en bloque 2",
			Kind:         domain.ErrInvalidBlockHash,
			Sequence:     2,
			Blocks:       3,
		},
	}
	handler := NewRouter(config.Config{}, &workflowFake{}, chains, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/"+testHash+"/chain", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var chain domain.Chain
	if err := json.NewDecoder(res.Body).Decode(&chain); err != nil {
		t.Fatalf("decode chain: %v", err)
	}
	if len(chain.Blocks) != 1 || chain.Blocks[0].Action != domain.ActionCreated {
		t.Fatalf("unexpected chain: %+v", chain)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/"+testHash+"/chain/verify", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for a broken chain, got %d", res.Code)
	}
	out := decodeBody(t, res)
	if out["ok"] != false || out["kind"] != "invalid_block_hash" || out["sequence"] != float64(2) {
		t.Fatalf("unexpected verification body: %v", out)
	}
}

func TestChainHistoryMissingChainIs404(t *testing.T) {
	chains := &chainsFake{err: domain.WrapError(domain.ErrChainNotFound, "load chain", errors.New(testHash))}
	handler := NewRouter(config.Config{}, &workflowFake{}, chains, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/"+testHash+"/chain", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestVerifyAllChains(t *testing.T) {
	chains := &chainsFake{statuses: []domain.ChainStatus{
		{DocumentHash: testHash, Integrity: domain.IntegrityIntact, Blocks: 2},
		{DocumentHash: "abc", Integrity: domain.IntegrityMissing},
	}}
	handler := NewRouter(config.Config{}, &workflowFake{}, chains, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodGet, "/v1/chains/verify", nil), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	out := decodeBody(t, res)
	rows, _ := out["chains"].([]any)
	if len(rows) != 2 {
		t.Fatalf("expected 2 chain rows, got %v", out["chains"])
	}
}

func TestDashboardAndReconcileRequireRole(t *testing.T) {
	rec := &reconcilerFake{}
	chains := &chainsFake{}
	handler := NewRouter(config.Config{}, &workflowFake{}, chains, rec, nil, nil).Handler()

	newRequests := func() []*http.Request {
		return []*http.Request{
			httptest.NewRequest(http.MethodGet, "/v1/chains/verify", nil),
			httptest.NewRequest(http.MethodPost, "/v1/reconciliations", strings.NewReader(`{"root":"/"}`)),
		}
	}

	for _, req := range newRequests() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s without actor: expected 400, got %d", req.URL.Path, res.Code)
		}
	}
	for _, req := range newRequests() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, withActor(req, "ana", domain.RoleCollaborator))
		if res.Code != http.StatusForbidden {
			t.Fatalf("%s as collaborator: expected 403, got %d", req.URL.Path, res.Code)
		}
		if out := decodeBody(t, res); out["kind"] != "permission_denied" {
			t.Fatalf("expected permission_denied kind, got %v", out["kind"])
		}
	}
	if len(rec.requests) != 0 {
		t.Fatalf("expected no scan for refused callers, got %d", len(rec.requests))
	}

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleApprover, domain.RoleSupervisor} {
		for _, req := range newRequests() {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, withActor(req, "luis", role))
			if res.Code != http.StatusOK {
				t.Fatalf("%s as %s: expected 200, got %d", req.URL.Path, role, res.Code)
			}
		}
	}
}

func TestListDocumentsPassesActor(t *testing.T) {
	wf := &workflowFake{}
	handler := NewRouter(config.Config{}, wf, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without actor, got %d", res.Code)
	}

	req := withActor(httptest.NewRequest(http.MethodGet, "/v1/documents", nil), "sara", domain.RoleSupervisor)
	req.Header.Set(actorAreaHeader, "Calidad")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(wf.actors) != 1 || wf.actors[0].Area != "Calidad" {
		t.Fatalf("expected supervisor actor with area, got %+v", wf.actors)
	}
}

func TestReconcileAppliesConfiguredDefaults(t *testing.T) {
	rec := &reconcilerFake{report: domain.ReconciliationReport{
		Root:    "/srv/docs",
		Entries: []domain.ReconciliationEntry{{Verdict: domain.VerdictModified}},
	}}
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(config.Config{ScanMaxFiles: 100, ScanMaxSizeMB: 50}, &workflowFake{}, &chainsFake{}, rec, nil, httpMetrics).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/reconciliations", strings.NewReader(`{"root":"/srv/docs"}`)), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(rec.requests) != 1 {
		t.Fatalf("expected 1 reconcile call, got %d", len(rec.requests))
	}
	got := rec.requests[0]
	if got.Root != "/srv/docs" || got.MaxFiles != 100 || got.MaxSizeBytes != 50<<20 {
		t.Fatalf("unexpected scan request: %+v", got)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/reconciliations", strings.NewReader(`{"root":"/srv/docs","max_files":5,"max_size_mb":1}`)), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := rec.requests[1]; got.MaxFiles != 5 || got.MaxSizeBytes != 1<<20 {
		t.Fatalf("expected explicit limits, got %+v", got)
	}
}

func TestReconcileValidatesRequest(t *testing.T) {
	handler := newTestHandler(config.Config{})
	for _, body := range []string{`{}`, `{"root":"/x","max_files":-1}`, `{`} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/reconciliations", strings.NewReader(body)), "sara", domain.RoleSupervisor))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, res.Code)
		}
	}
}

func TestReconcileMapsScannerErrors(t *testing.T) {
	rec := &reconcilerFake{err: domain.WrapError(domain.ErrPathNotFound, "scan", errors.New("/nope"))}
	handler := NewRouter(config.Config{}, &workflowFake{}, &chainsFake{}, rec, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/reconciliations", strings.NewReader(`{"root":"/nope"}`)), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if out := decodeBody(t, res); out["kind"] != "path_not_found" {
		t.Fatalf("expected path_not_found kind, got %v", out["kind"])
	}
}

func TestReconcileStreamsExport(t *testing.T) {
	rec := &reconcilerFake{report: domain.ReconciliationReport{
		Root:      "/srv/docs",
		StartedAt: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}}
	exporters := &exporterFake{}
	handler := NewRouter(config.Config{}, &workflowFake{}, &chainsFake{}, rec, exporters.lookup, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/reconciliations?format=csv", strings.NewReader(`{"root":"/srv/docs"}`)), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); !strings.Contains(cd, "reporte_integridad_20250301_093000.csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !strings.Contains(res.Body.String(), "/srv/docs") {
		t.Fatalf("expected exported body, got %q", res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, withActor(httptest.NewRequest(http.MethodPost, "/v1/reconciliations?format=pdf", strings.NewReader(`{"root":"/srv/docs"}`)), "sara", domain.RoleSupervisor))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", res.Code)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("expected unknown format to be refused before scanning, got %d scans", len(rec.requests))
	}
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	handler := NewRouter(config.Config{}, &workflowFake{}, &chainsFake{}, &reconcilerFake{}, nil, metrics.NewHTTPServerMetrics("api")).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "ledger_http_requests_total") {
		t.Fatalf("expected request counter in exposition")
	}
}
