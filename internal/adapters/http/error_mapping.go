package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrPathNotFound),
		domain.IsKind(err, domain.ErrNotADirectory):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrChainNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateAction),
		domain.IsKind(err, domain.ErrInvalidTransition),
		domain.IsKind(err, domain.ErrDuplicateDocument),
		domain.IsKind(err, domain.ErrSequenceConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errorKindNames = []struct {
	kind error
	name string
}{
	{domain.ErrInvalidInput, "invalid_input"},
	{domain.ErrPermissionDenied, "permission_denied"},
	{domain.ErrDocumentNotFound, "document_not_found"},
	{domain.ErrChainNotFound, "chain_not_found"},
	{domain.ErrInvalidBlockHash, "invalid_block_hash"},
	{domain.ErrBrokenLink, "broken_link"},
	{domain.ErrDuplicateAction, "duplicate_action"},
	{domain.ErrInvalidTransition, "invalid_transition"},
	{domain.ErrDuplicateDocument, "duplicate_document"},
	{domain.ErrSequenceConflict, "sequence_conflict"},
	{domain.ErrPathNotFound, "path_not_found"},
	{domain.ErrNotADirectory, "not_a_directory"},
	{domain.ErrTemporary, "temporary"},
}

// errorKindName renders the taxonomy entry carried by err for JSON clients.
func errorKindName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKindNames {
		if domain.IsKind(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}
