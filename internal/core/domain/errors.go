package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	ErrChainNotFound    = errors.New("chain not found")
	ErrChainExists      = errors.New("chain already exists")
	ErrInvalidBlockHash = errors.New("invalid block hash")
	ErrBrokenLink       = errors.New("broken chain link")
	ErrSequenceConflict = errors.New("sequence conflict")

	ErrPathNotFound  = errors.New("path not found")
	ErrNotADirectory = errors.New("not a directory")

	ErrDuplicateAction   = errors.New("duplicate action")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDuplicateDocument = errors.New("duplicate document")
	ErrPermissionDenied  = errors.New("permission denied")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Outcome is the soft result of a guarded workflow transition. A failed
// transition is not a Go error: OK is false, Reason is displayable and Kind
// carries the taxonomy entry.
type Outcome struct {
	OK       bool      `json:"ok"`
	Reason   string    `json:"reason"`
	Kind     error     `json:"-"`
	Document *Document `json:"document,omitempty"`
}

func Succeeded(reason string, doc *Document) Outcome {
	return Outcome{OK: true, Reason: reason, Document: doc}
}

func Refused(kind error, reason string) Outcome {
	return Outcome{OK: false, Reason: reason, Kind: kind}
}
