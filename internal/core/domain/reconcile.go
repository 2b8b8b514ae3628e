package domain

import "time"

// ScanRequest bounds one reconciliation run.
type ScanRequest struct {
	Root         string `json:"root"`
	MaxFiles     int    `json:"max_files"`
	MaxSizeBytes int64  `json:"max_size_bytes"`
}

// ScanResult describes one physical file retained by the scanner.
type ScanResult struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	Hash      string `json:"hash"`
	ParentDir string `json:"parent_dir"`
}

type ScanFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ScanSummary is the scanner output. Oversize files are counted in
// SkippedOversize; Truncated is set when more eligible files existed than
// MaxFiles allowed.
type ScanSummary struct {
	Files           []ScanResult  `json:"files"`
	SkippedOversize int           `json:"skipped_oversize"`
	Truncated       bool          `json:"truncated"`
	Failures        []ScanFailure `json:"failures,omitempty"`
}

type Verdict string

const (
	VerdictIntact         Verdict = "intact"
	VerdictIntactViaChain Verdict = "intact_via_chain"
	VerdictModified       Verdict = "modified"
	VerdictUnregistered   Verdict = "unregistered"
)

// Label is the display text used in exports.
func (v Verdict) Label() string {
	switch v {
	case VerdictIntact:
		return "ÍNTEGRO"
	case VerdictIntactViaChain:
		return "ÍNTEGRO (Blockchain)"
	case VerdictModified:
		return "MODIFICADO"
	case VerdictUnregistered:
		return "NO REGISTRADO"
	default:
		return string(v)
	}
}

// ReconciliationEntry joins a ScanResult with its verdict.
type ReconciliationEntry struct {
	File           ScanResult     `json:"file"`
	Verdict        Verdict        `json:"verdict"`
	MatchedHash    string         `json:"matched_hash,omitempty"`
	ChainHash      string         `json:"chain_hash,omitempty"`
	MatchedName    string         `json:"matched_name,omitempty"`
	MatchedVersion string         `json:"matched_version,omitempty"`
	MatchedStatus  DocumentStatus `json:"matched_status,omitempty"`
}

type VerdictCounts struct {
	Intact         int `json:"intact"`
	IntactViaChain int `json:"intact_via_chain"`
	Modified       int `json:"modified"`
	Unregistered   int `json:"unregistered"`
}

func (c *VerdictCounts) Add(v Verdict) {
	switch v {
	case VerdictIntact:
		c.Intact++
	case VerdictIntactViaChain:
		c.IntactViaChain++
	case VerdictModified:
		c.Modified++
	case VerdictUnregistered:
		c.Unregistered++
	}
}

func (c VerdictCounts) Total() int {
	return c.Intact + c.IntactViaChain + c.Modified + c.Unregistered
}

type ReconciliationReport struct {
	ID              string                   `json:"id"`
	Root            string                   `json:"root"`
	StartedAt       time.Time                `json:"started_at"`
	FinishedAt      time.Time                `json:"finished_at"`
	Entries         []ReconciliationEntry    `json:"entries"`
	Counts          VerdictCounts            `json:"counts"`
	ByExtension     map[string]VerdictCounts `json:"by_extension"`
	SkippedOversize int                      `json:"skipped_oversize"`
	Truncated       bool                     `json:"truncated"`
	Failures        []ScanFailure            `json:"failures,omitempty"`
}
