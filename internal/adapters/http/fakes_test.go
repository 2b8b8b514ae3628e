package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/kirillkom/document-ledger/internal/config"
	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/ports"
)

const testHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

type workflowFake struct {
	uploads   []ports.Upload
	bodies    []string
	changes   []ports.Change
	decisions []string
	actors    []domain.Actor

	outcome domain.Outcome
	err     error
	doc     *domain.Document
	docs    []domain.Document
	entries []domain.ActivityEntry
}

func (f *workflowFake) Register(_ context.Context, actor domain.Actor, upload ports.Upload) (domain.Outcome, error) {
	raw, err := io.ReadAll(upload.Body)
	if err != nil {
		return domain.Outcome{}, err
	}
	f.actors = append(f.actors, actor)
	f.uploads = append(f.uploads, upload)
	f.bodies = append(f.bodies, string(raw))
	return f.outcome, f.err
}

func (f *workflowFake) Review(_ context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error) {
	return f.decide("review", actor, hash, comment)
}

func (f *workflowFake) Approve(_ context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error) {
	return f.decide("approve", actor, hash, comment)
}

func (f *workflowFake) Reject(_ context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error) {
	return f.decide("reject", actor, hash, comment)
}

func (f *workflowFake) decide(kind string, actor domain.Actor, hash, comment string) (domain.Outcome, error) {
	f.actors = append(f.actors, actor)
	f.decisions = append(f.decisions, kind+":"+hash+":"+comment)
	return f.outcome, f.err
}

func (f *workflowFake) Update(_ context.Context, actor domain.Actor, _ string, change ports.Change) (domain.Outcome, error) {
	if change.Body != nil {
		raw, err := io.ReadAll(change.Body)
		if err != nil {
			return domain.Outcome{}, err
		}
		f.bodies = append(f.bodies, string(raw))
	}
	f.actors = append(f.actors, actor)
	f.changes = append(f.changes, change)
	return f.outcome, f.err
}

func (f *workflowFake) Get(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *workflowFake) List(_ context.Context, actor domain.Actor) ([]domain.Document, error) {
	f.actors = append(f.actors, actor)
	return f.docs, f.err
}

func (f *workflowFake) Activity(_ context.Context, actor domain.Actor, _ string) ([]domain.ActivityEntry, error) {
	if !actor.Can(domain.CapabilityActivity) {
		return nil, domain.WrapError(domain.ErrPermissionDenied, "list activity", errors.New("role"))
	}
	return f.entries, f.err
}

type chainsFake struct {
	chain        domain.Chain
	verification domain.Verification
	statuses     []domain.ChainStatus
	err          error
}

func (f *chainsFake) Append(context.Context, string, domain.Action, domain.Metadata, string) (domain.Block, error) {
	return domain.Block{}, f.err
}

func (f *chainsFake) Verify(context.Context, string) (domain.Verification, error) {
	return f.verification, f.err
}

func (f *chainsFake) History(context.Context, string) (domain.Chain, error) {
	return f.chain, f.err
}

func (f *chainsFake) VerifyAll(context.Context) ([]domain.ChainStatus, error) {
	return f.statuses, f.err
}

type reconcilerFake struct {
	requests []domain.ScanRequest
	report   domain.ReconciliationReport
	err      error
}

func (f *reconcilerFake) Reconcile(_ context.Context, req domain.ScanRequest) (domain.ReconciliationReport, error) {
	f.requests = append(f.requests, req)
	return f.report, f.err
}

type exporterFake struct {
	formats []string
}

func (f *exporterFake) ContentType() string { return "text/csv; charset=utf-8" }

func (f *exporterFake) Export(_ context.Context, w io.Writer, report domain.ReconciliationReport) error {
	_, err := io.WriteString(w, "Archivo\n"+report.Root+"\n")
	return err
}

func (f *exporterFake) lookup(format string) (ports.ReportExporter, error) {
	f.formats = append(f.formats, format)
	if format != "csv" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "report format", errors.New(format))
	}
	return f, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &workflowFake{}, &chainsFake{}, &reconcilerFake{}, nil, nil).Handler()
}

func withActor(req *http.Request, name string, role domain.Role) *http.Request {
	req.Header.Set(actorNameHeader, name)
	req.Header.Set(actorRoleHeader, string(role))
	return req
}
