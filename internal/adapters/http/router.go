package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-ledger/internal/config"
	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/ports"
	"github.com/kirillkom/document-ledger/internal/observability/metrics"
)

const (
	actorNameHeader = "X-Actor-Name"
	actorRoleHeader = "X-Actor-Role"
	actorAreaHeader = "X-Actor-Area"

	maxUploadBytes = 64 << 20
)

// ExporterFor resolves a report exporter by format name.
type ExporterFor func(format string) (ports.ReportExporter, error)

type Router struct {
	cfg         config.Config
	workflow    ports.DocumentWorkflow
	chains      ports.ChainService
	reconciler  ports.Reconciliation
	exporters   ExporterFor
	httpMetrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	workflow ports.DocumentWorkflow,
	chains ports.ChainService,
	reconciler ports.Reconciliation,
	exporters ExporterFor,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:         cfg,
		workflow:    workflow,
		chains:      chains,
		reconciler:  reconciler,
		exporters:   exporters,
		httpMetrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.httpMetrics != nil {
		mux.Handle("GET /metrics", rt.httpMetrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents", rt.registerDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{hash}", rt.getDocument)
	mux.HandleFunc("POST /v1/documents/{hash}/review", rt.decide(rt.workflow.Review))
	mux.HandleFunc("POST /v1/documents/{hash}/approve", rt.decide(rt.workflow.Approve))
	mux.HandleFunc("POST /v1/documents/{hash}/reject", rt.decide(rt.workflow.Reject))
	mux.HandleFunc("POST /v1/documents/{hash}/update", rt.updateDocument)
	mux.HandleFunc("GET /v1/documents/{hash}/chain", rt.chainHistory)
	mux.HandleFunc("GET /v1/documents/{hash}/chain/verify", rt.verifyChain)
	mux.HandleFunc("GET /v1/chains/verify", rt.verifyAllChains)
	mux.HandleFunc("POST /v1/reconciliations", rt.reconcile)
	mux.HandleFunc("GET /v1/activity", rt.activity)

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware("api", handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// outcomeResponse is the JSON form of domain.Outcome. Kind is rendered as
// a stable name because the domain type keeps it as an error value.
type outcomeResponse struct {
	OK       bool             `json:"ok"`
	Reason   string           `json:"reason"`
	Kind     string           `json:"kind,omitempty"`
	Document *domain.Document `json:"document,omitempty"`
}

// actorFromRequest reads the caller identity from headers. Authentication
// happens in front of this service.
func actorFromRequest(r *http.Request) (domain.Actor, error) {
	actor := domain.Actor{
		Name: strings.TrimSpace(r.Header.Get(actorNameHeader)),
		Role: domain.ParseRole(r.Header.Get(actorRoleHeader)),
		Area: strings.TrimSpace(r.Header.Get(actorAreaHeader)),
	}
	if actor.Name == "" || actor.Role == "" {
		return domain.Actor{}, domain.WrapError(domain.ErrInvalidInput, "actor", errors.New("X-Actor-Name and X-Actor-Role headers are required"))
	}
	return actor, nil
}

// authorize resolves the actor and checks the capability, writing the
// error response when either fails.
func (rt *Router) authorize(w http.ResponseWriter, r *http.Request, c domain.Capability) bool {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return false
	}
	if !actor.Can(c) {
		writeError(w, domain.WrapError(domain.ErrPermissionDenied, string(c), fmt.Errorf("role %q", actor.Role)))
		return false
	}
	return true
}

func writeOutcome(w http.ResponseWriter, successStatus int, outcome domain.Outcome) {
	status := successStatus
	if !outcome.OK {
		status = mapErrorToHTTPStatus(outcome.Kind)
		if outcome.Kind == nil {
			status = http.StatusConflict
		}
	}
	writeJSON(w, status, outcomeResponse{
		OK:       outcome.OK,
		Reason:   outcome.Reason,
		Kind:     errorKindName(outcome.Kind),
		Document: outcome.Document,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message, Kind: errorKindName(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
