package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

// MatchTier reports which heuristic produced a match.
type MatchTier int

const (
	MatchNone MatchTier = iota
	MatchExact
	MatchContains
	MatchTokens
)

func (t MatchTier) String() string {
	switch t {
	case MatchExact:
		return "exact"
	case MatchContains:
		return "contains"
	case MatchTokens:
		return "tokens"
	default:
		return "none"
	}
}

// TokenOverlapThreshold is the minimum fraction of name tokens that must
// appear in a registry name for the token tier to accept it.
const TokenOverlapThreshold = 0.6

// MatchByName finds the registry record a physical file most likely belongs
// to. Tiers are tried in order and the first qualifying record in registry
// order wins, not the best scoring one. A file whose cleaned name is empty
// never matches.
func MatchByName(filename string, registry []domain.Document) (*domain.Document, MatchTier) {
	cleaned := Fold(CleanName(filename))
	if cleaned == "" {
		return nil, MatchNone
	}

	folded := make([]string, len(registry))
	for i := range registry {
		folded[i] = Fold(registry[i].Name)
	}

	for i := range registry {
		if folded[i] == cleaned {
			return &registry[i], MatchExact
		}
	}
	for i := range registry {
		if strings.Contains(folded[i], cleaned) {
			return &registry[i], MatchContains
		}
	}

	tokens := strings.Fields(cleaned)
	need := float64(len(tokens)) * TokenOverlapThreshold
	for i := range registry {
		hits := 0
		for _, tok := range tokens {
			if strings.Contains(folded[i], tok) {
				hits++
			}
		}
		if float64(hits) >= need {
			return &registry[i], MatchTokens
		}
	}
	return nil, MatchNone
}

var leadingNumberPattern = regexp.MustCompile(`(\d+(?:\.\d+)*)`)

// FallbackBumpedVersion is used when the current version has no parseable
// numeric token.
const FallbackBumpedVersion = "v1.1"

// BumpVersion adds 0.1 to the first numeric token of version and renders
// it with one decimal ("v1.0" -> "v1.1", "2" -> "v2.1"). Multi-dot tokens
// such as "1.2.3" do not parse and yield FallbackBumpedVersion.
func BumpVersion(version string) string {
	m := leadingNumberPattern.FindString(version)
	if m == "" {
		return FallbackBumpedVersion
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return FallbackBumpedVersion
	}
	return fmt.Sprintf("v%.1f", n+0.1)
}
