package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-ledger/internal/core/digest"
	"github.com/kirillkom/document-ledger/internal/core/domain"
	"github.com/kirillkom/document-ledger/internal/core/naming"
	"github.com/kirillkom/document-ledger/internal/core/ports"
)

const (
	reasonNotFound       = "Documento no encontrado"
	reasonRejectedUpdate = "No se pueden actualizar documentos rechazados"
	reasonRejectedUpload = "El documento ya está rechazado y no admite nuevas cargas"
	newFileSuffix        = " con nuevo archivo"
)

type WorkflowService struct {
	repo     ports.DocumentRepository
	activity ports.ActivityLog
	storage  ports.ObjectStorage
	ledger   *LedgerService

	now func() time.Time
}

// NewWorkflowService wires the registry workflow. storage may be nil when
// uploaded bytes are not retained.
func NewWorkflowService(
	repo ports.DocumentRepository,
	activity ports.ActivityLog,
	storage ports.ObjectStorage,
	ledger *LedgerService,
) *WorkflowService {
	return &WorkflowService{
		repo:     repo,
		activity: activity,
		storage:  storage,
		ledger:   ledger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register records a new upload. Uploading bytes that are already
// registered marks the existing record as Editado and appends a
// "Documento Subido" block instead of creating a second record.
func (s *WorkflowService) Register(ctx context.Context, actor domain.Actor, upload ports.Upload) (domain.Outcome, error) {
	if !actor.Can(domain.CapabilityUpload) {
		return domain.Refused(domain.ErrPermissionDenied, "No tienes permisos para subir documentos"), nil
	}
	if upload.Body == nil {
		return domain.Outcome{}, domain.WrapError(domain.ErrInvalidInput, "register document", errors.New("empty upload"))
	}

	hash, err := s.storeContent(ctx, upload.Filename, upload.Body)
	if err != nil {
		return domain.Outcome{}, err
	}
	now := s.now().Truncate(time.Second)

	existing, err := s.repo.GetByHash(ctx, hash)
	switch {
	case err == nil:
		return s.reupload(ctx, actor, existing, now)
	case !domain.IsKind(err, domain.ErrDocumentNotFound):
		return domain.Outcome{}, fmt.Errorf("lookup document: %w", err)
	}

	doc := &domain.Document{
		Hash:     hash,
		Metadata: s.initialMetadata(actor, upload, now),
	}
	// The chain is written first so a failed append never leaves a record
	// behind. A chain orphaned by a failed Create is continued on retry.
	if _, err := s.ledger.Initialize(ctx, hash, doc.Metadata); err != nil {
		return domain.Outcome{}, fmt.Errorf("initialize chain: %w", err)
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return domain.Outcome{}, fmt.Errorf("create document: %w", err)
	}
	s.record(ctx, actor, hash, domain.ActionUploaded, "Subido como "+string(doc.Status))

	return domain.Succeeded(fmt.Sprintf("Documento registrado exitosamente como '%s'", doc.Status), doc), nil
}

// reupload handles bytes that are already registered. Rejected records stay
// closed. Vigente records keep their status and only gain the upload block.
func (s *WorkflowService) reupload(ctx context.Context, actor domain.Actor, doc *domain.Document, now time.Time) (domain.Outcome, error) {
	if doc.Status == domain.StatusRejected {
		return domain.Refused(domain.ErrInvalidTransition, reasonRejectedUpload), nil
	}
	if doc.Status != domain.StatusApproved {
		doc.Status = domain.StatusEdited
	}
	doc.UpdatedAt = now
	if err := s.repo.Update(ctx, doc.Hash, doc); err != nil {
		return domain.Outcome{}, fmt.Errorf("update document: %w", err)
	}
	snapshot := doc.Metadata
	snapshot.ModificationNote = blockNote(domain.ActionUploaded, actor.Name, "")
	if _, err := s.ledger.Append(ctx, doc.Hash, domain.ActionUploaded, snapshot, actor.Name); err != nil {
		return domain.Outcome{}, fmt.Errorf("append block: %w", err)
	}
	s.record(ctx, actor, doc.Hash, domain.ActionUploaded, "Subido como "+string(doc.Status))

	return domain.Succeeded(fmt.Sprintf("Documento registrado exitosamente como '%s'", doc.Status), doc), nil
}

func (s *WorkflowService) initialMetadata(actor domain.Actor, upload ports.Upload, now time.Time) domain.Metadata {
	meta := domain.Metadata{
		Name:             firstNonEmpty(upload.Name, naming.CleanName(upload.Filename), naming.Stem(upload.Filename)),
		Type:             firstNonEmpty(upload.Type, naming.DetectType(upload.Filename)),
		Version:          firstNonEmpty(upload.Version, naming.DetectVersion(upload.Filename)),
		Status:           domain.StatusPublished,
		CreatedAt:        now,
		UpdatedAt:        now,
		ModificationNote: upload.Note,
		Creator:          actor.Name,
		Area:             actor.Area,
		Reviewer:         upload.Reviewer,
		Approver:         upload.Approver,
		Nonconformance:   upload.Nonconformance,
		Audit:            upload.Audit,
	}

	switch actor.Role {
	case domain.RoleCollaborator:
		meta.Reviewer = ""
		meta.Approver = ""
		meta.Nonconformance = ""
		meta.Audit = ""
	case domain.RoleSupervisor:
		meta.Approver = ""
		meta.Nonconformance = ""
		meta.Audit = ""
	case domain.RoleApprover:
		meta.Approver = actor.Name
	}
	return meta
}

// Review records a review. It never changes the status.
func (s *WorkflowService) Review(ctx context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error) {
	if !actor.Can(domain.CapabilityReview) {
		return domain.Refused(domain.ErrPermissionDenied, "No tienes permisos para revisar documentos"), nil
	}
	doc, outcome, err := s.load(ctx, hash)
	if doc == nil {
		return outcome, err
	}
	if doc.Status == domain.StatusRejected {
		return refusedByStatus(doc.Status), nil
	}

	doc.Reviewer = actor.Name
	doc.UpdatedAt = s.now().Truncate(time.Second)
	if comment != "" {
		doc.ModificationNote = appendNote(doc.ModificationNote, string(domain.ActionReviewed), comment)
	}
	if err := s.commit(ctx, actor, hash, doc, domain.ActionReviewed, comment); err != nil {
		return domain.Outcome{}, err
	}
	return domain.Succeeded("Documento revisado exitosamente", doc), nil
}

// Approve moves a document to Vigente. The same actor can approve a chain
// only once, and approved or rejected documents cannot be approved.
func (s *WorkflowService) Approve(ctx context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error) {
	if !actor.Can(domain.CapabilityApprove) {
		return domain.Refused(domain.ErrPermissionDenied, "No tienes permisos para aprobar documentos"), nil
	}
	return s.decide(ctx, actor, hash, comment, domain.ActionApproved)
}

// Reject moves a document to the terminal Rechazado status.
func (s *WorkflowService) Reject(ctx context.Context, actor domain.Actor, hash, comment string) (domain.Outcome, error) {
	if !actor.Can(domain.CapabilityApprove) {
		return domain.Refused(domain.ErrPermissionDenied, "No tienes permisos para rechazar documentos"), nil
	}
	return s.decide(ctx, actor, hash, comment, domain.ActionRejected)
}

func (s *WorkflowService) decide(ctx context.Context, actor domain.Actor, hash, comment string, action domain.Action) (domain.Outcome, error) {
	doc, outcome, err := s.load(ctx, hash)
	if doc == nil {
		return outcome, err
	}

	chain, err := s.ledger.History(ctx, hash)
	if err != nil && !domain.IsKind(err, domain.ErrChainNotFound) {
		return domain.Outcome{}, fmt.Errorf("load chain: %w", err)
	}
	if chain.HasActionBy(action, actor.Name) {
		if action == domain.ActionApproved {
			return domain.Refused(domain.ErrDuplicateAction, "Ya has aprobado este documento anteriormente"), nil
		}
		return domain.Refused(domain.ErrDuplicateAction, "Ya has rechazado este documento anteriormente"), nil
	}
	if doc.Status == domain.StatusApproved || doc.Status == domain.StatusRejected {
		return refusedByStatus(doc.Status), nil
	}

	reason := "Documento rechazado"
	doc.Status = domain.StatusRejected
	if action == domain.ActionApproved {
		reason = "Documento aprobado exitosamente"
		doc.Status = domain.StatusApproved
		doc.Approver = actor.Name
	}
	doc.UpdatedAt = s.now().Truncate(time.Second)
	if comment != "" {
		doc.ModificationNote = appendNote(doc.ModificationNote, string(action), comment)
	}
	if err := s.commit(ctx, actor, hash, doc, action, comment); err != nil {
		return domain.Outcome{}, err
	}
	return domain.Succeeded(reason, doc), nil
}

// Update edits metadata and optionally replaces the content. The version is
// bumped and the status reset to Publicado. Replacing the content appends
// to the old chain and forks a chain under the new hash.
func (s *WorkflowService) Update(ctx context.Context, actor domain.Actor, hash string, change ports.Change) (domain.Outcome, error) {
	if !actor.Can(domain.CapabilityUpdate) {
		return domain.Refused(domain.ErrPermissionDenied, "No tienes permisos para actualizar este documento"), nil
	}
	doc, outcome, err := s.load(ctx, hash)
	if doc == nil {
		return outcome, err
	}
	if doc.Status == domain.StatusRejected {
		return domain.Refused(domain.ErrInvalidTransition, reasonRejectedUpdate), nil
	}

	newHash := hash
	info := ""
	if change.Body != nil {
		info = newFileSuffix
		data, err := io.ReadAll(change.Body)
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("read new content: %w", err)
		}
		newHash = digest.SHA256Hex(data)
		if newHash != hash {
			_, err := s.repo.GetByHash(ctx, newHash)
			switch {
			case err == nil:
				return domain.Refused(domain.ErrDuplicateDocument,
					fmt.Sprintf("Ya existe un documento con este archivo (Hash: %s...)", domain.ChainID(newHash))), nil
			case !domain.IsKind(err, domain.ErrDocumentNotFound):
				return domain.Outcome{}, fmt.Errorf("lookup document: %w", err)
			}
		}
		if _, err := s.storeContent(ctx, change.Filename, bytes.NewReader(data)); err != nil {
			return domain.Outcome{}, err
		}
	}

	applyChange(doc, actor, change)
	doc.Hash = newHash
	doc.Version = naming.BumpVersion(doc.Version)
	doc.Status = domain.StatusPublished
	doc.UpdatedAt = s.now().Truncate(time.Second)
	doc.ModificationNote = appendNote(doc.ModificationNote, string(domain.ActionUpdated)+info, change.Comment)

	if err := s.repo.Update(ctx, hash, doc); err != nil {
		return domain.Outcome{}, fmt.Errorf("update document: %w", err)
	}

	snapshot := doc.Metadata
	snapshot.ModificationNote = "Actualizado por " + actor.Name + info
	if change.Comment != "" {
		snapshot.ModificationNote += ": " + change.Comment
	}
	if _, err := s.ledger.Append(ctx, hash, domain.ActionUpdated, snapshot, actor.Name); err != nil {
		return domain.Outcome{}, fmt.Errorf("append block: %w", err)
	}
	if newHash != hash {
		if _, err := s.ledger.Fork(ctx, newHash, snapshot, actor.Name); err != nil {
			return domain.Outcome{}, fmt.Errorf("fork chain: %w", err)
		}
	}
	s.record(ctx, actor, newHash, domain.ActionUpdated, change.Comment+info)

	return domain.Succeeded(fmt.Sprintf("Documento actualizado exitosamente a versión %s%s", doc.Version, info), doc), nil
}

func applyChange(doc *domain.Document, actor domain.Actor, change ports.Change) {
	if change.Name != "" {
		doc.Name = change.Name
	}
	if change.Type != "" {
		doc.Type = change.Type
	}
	if change.Area != "" {
		doc.Area = change.Area
	}
	if !actor.CanEditAudit() {
		return
	}
	if change.Nonconformance != "" {
		doc.Nonconformance = change.Nonconformance
	}
	if change.Audit != "" {
		doc.Audit = change.Audit
	}
}

func (s *WorkflowService) Get(ctx context.Context, hash string) (*domain.Document, error) {
	return s.repo.GetByHash(ctx, hash)
}

// List returns the registry as the actor may see it. Roles without a global
// view only get records of their own area.
func (s *WorkflowService) List(ctx context.Context, actor domain.Actor) ([]domain.Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if actor.SeesAllAreas() {
		return docs, nil
	}
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Area == actor.Area {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Activity lists activity log entries, optionally for a single document.
// Supervisors only get entries of documents registered in their area.
func (s *WorkflowService) Activity(ctx context.Context, actor domain.Actor, hash string) ([]domain.ActivityEntry, error) {
	if !actor.Can(domain.CapabilityActivity) {
		return nil, domain.WrapError(domain.ErrPermissionDenied, "list activity", fmt.Errorf("role %q", actor.Role))
	}
	entries, err := s.activity.List(ctx, hash)
	if err != nil || actor.SeesAllAreas() {
		return entries, err
	}

	docs, err := s.List(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("list area documents: %w", err)
	}
	inArea := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		inArea[doc.Hash] = struct{}{}
	}
	out := make([]domain.ActivityEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := inArea[e.DocumentHash]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// load returns the document, or a soft not-found outcome, or an
// infrastructure error. doc is nil in the last two cases.
func (s *WorkflowService) load(ctx context.Context, hash string) (*domain.Document, domain.Outcome, error) {
	doc, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, domain.Refused(domain.ErrDocumentNotFound, reasonNotFound), nil
		}
		return nil, domain.Outcome{}, fmt.Errorf("load document: %w", err)
	}
	return doc, domain.Outcome{}, nil
}

// commit persists the record, then appends the block. A crash between the
// two leaves the registry ahead of the chain.
func (s *WorkflowService) commit(ctx context.Context, actor domain.Actor, hash string, doc *domain.Document, action domain.Action, comment string) error {
	if err := s.repo.Update(ctx, hash, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	snapshot := doc.Metadata
	snapshot.ModificationNote = blockNote(action, actor.Name, comment)
	if _, err := s.ledger.Append(ctx, hash, action, snapshot, actor.Name); err != nil {
		return fmt.Errorf("append block: %w", err)
	}
	s.record(ctx, actor, hash, action, comment)
	return nil
}

func (s *WorkflowService) storeContent(ctx context.Context, filename string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	hash := digest.SHA256Hex(data)
	if s.storage == nil {
		return hash, nil
	}
	key := hash + strings.ToLower(filepath.Ext(filename))
	if err := s.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("save to object storage: %w", err)
	}
	return hash, nil
}

func (s *WorkflowService) record(ctx context.Context, actor domain.Actor, hash string, action domain.Action, comment string) {
	entry := domain.ActivityEntry{
		DocumentHash: hash,
		At:           s.now().Truncate(time.Second),
		Actor:        actor.Name,
		Role:         actor.Role,
		Action:       action,
		Comment:      comment,
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		slog.Warn("activity_record_failed",
			"document_hash", hash,
			"action", string(action),
			"error", err.Error(),
		)
	}
}

func refusedByStatus(status domain.DocumentStatus) domain.Outcome {
	return domain.Refused(domain.ErrInvalidTransition, "El documento ya está "+strings.ToLower(string(status)))
}

// appendNote extends the record note with "<label>: <comment>".
func appendNote(current, label, comment string) string {
	entry := label + ": " + comment
	if current == "" {
		return entry
	}
	return current + " | " + entry
}

// blockNote is the note stored in a block snapshot.
func blockNote(action domain.Action, actor, comment string) string {
	note := string(action) + " por " + actor
	if comment != "" {
		note += ": " + comment
	}
	return note
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
