package domain

import "time"

// TimestampLayout is the second-resolution layout used for every persisted
// timestamp and for the block hash input.
const TimestampLayout = "2006-01-02 15:04:05"

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "Borrador"
	StatusPublished DocumentStatus = "Publicado"
	StatusEdited    DocumentStatus = "Editado"
	StatusInReview  DocumentStatus = "En Revisión"
	StatusApproved  DocumentStatus = "Vigente"
	StatusRejected  DocumentStatus = "Rechazado"
)

// Metadata is the mutable part of a registry record. Blocks carry a full
// copy of it as the snapshot taken at the time of the event.
type Metadata struct {
	Name             string         `json:"name"`
	Type             string         `json:"type"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Version          string         `json:"version"`
	Status           DocumentStatus `json:"status"`
	ModificationNote string         `json:"modification_note,omitempty"`
	Creator          string         `json:"creator"`
	Area             string         `json:"area,omitempty"`
	Reviewer         string         `json:"reviewer,omitempty"`
	Approver         string         `json:"approver,omitempty"`
	Nonconformance   string         `json:"nonconformance,omitempty"`
	Audit            string         `json:"audit,omitempty"`
}

// Document is a registry record keyed by the SHA-256 of the file bytes.
type Document struct {
	Hash string `json:"hash"`
	Metadata
}

// ActivityEntry is one row of the activity log kept next to the registry.
type ActivityEntry struct {
	DocumentHash string    `json:"document_hash"`
	At           time.Time `json:"at"`
	Actor        string    `json:"actor"`
	Role         Role      `json:"role"`
	Action       Action    `json:"action"`
	Comment      string    `json:"comment,omitempty"`
}

// FormatTimestamp renders t with TimestampLayout. The zero time renders as
// an empty string so legacy rows without dates round-trip.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp. Wall-clock values are
// interpreted as UTC so that Format(Parse(s)) == s.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}
