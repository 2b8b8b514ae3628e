// Package naming normalizes document file names and derives registry
// metadata from them.
package naming

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultVersion is returned by DetectVersion when no version token is found.
const DefaultVersion = "1.0"

var (
	versionTokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[_\-\s]*v\d+(?:\.\d+)*`),
		regexp.MustCompile(`(?i)[_\-\s]*version[_\-\s]*\d+(?:\.\d+)*`),
		regexp.MustCompile(`(?i)[_\-\s]*ver[_\-\s]*\d+(?:\.\d+)*`),
		regexp.MustCompile(`[_\-\s]*\d+\.\d+`),
	}
	// RE2 has no lookahead: the terminator is captured and written back.
	trailingNumberPattern = regexp.MustCompile(`[_\-\s]*\d+(\.|_|$)`)
	separatorPattern      = regexp.MustCompile(`[_\-]`)
	whitespacePattern     = regexp.MustCompile(`\s+`)

	detectVersionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[_\-\s]v(\d+(?:\.\d+)*)`),
		regexp.MustCompile(`(?i)[_\-\s]version[_\-\s]*(\d+(?:\.\d+)*)`),
		regexp.MustCompile(`(?i)[_\-\s]ver[_\-\s]*(\d+(?:\.\d+)*)`),
		regexp.MustCompile(`[_\-\s](\d+\.\d+)`),
		regexp.MustCompile(`[_\-\s](\d+)(?:\.|_|$)`),
	}

	typePatterns = []struct {
		pattern *regexp.Regexp
		label   string
	}{
		{regexp.MustCompile(`(manual|guia|instructivo)`), "Manual"},
		{regexp.MustCompile(`(contrato|convenio|acuerdo)`), "Contrato"},
		{regexp.MustCompile(`(politica|norma|lineamiento)`), "Política"},
		{regexp.MustCompile(`(procedimiento|proceso|flujo)`), "Procedimiento"},
		{regexp.MustCompile(`(reporte|informe)`), "Reporte"},
		{regexp.MustCompile(`(formato|plantilla|template)`), "Formato"},
		{regexp.MustCompile(`(especificacion|spec)`), "Especificación"},
		{regexp.MustCompile(`(plan|planificacion)`), "Plan"},
		{regexp.MustCompile(`(acta|minuta)`), "Acta"},
		{regexp.MustCompile(`(presupuesto|budget)`), "Presupuesto"},
	}
)

// Stem strips directories and the final extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}

// CleanName turns a file name into the display name used by the registry:
// extension and version tokens removed, separators collapsed to single
// spaces, each word capitalized.
func CleanName(filename string) string {
	name := Stem(filename)
	for _, p := range versionTokenPatterns {
		name = p.ReplaceAllString(name, "")
	}
	name = trailingNumberPattern.ReplaceAllString(name, "${1}")
	name = separatorPattern.ReplaceAllString(name, " ")
	name = whitespacePattern.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	words := strings.Fields(name)
	title := cases.Title(language.Und)
	for i, w := range words {
		words[i] = title.String(w)
	}
	return strings.Join(words, " ")
}

// DetectVersion extracts a version label such as "v2.1" from a file name.
func DetectVersion(filename string) string {
	for _, p := range detectVersionPatterns {
		m := p.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		v := m[1]
		if strings.HasPrefix(v, "v") {
			return v
		}
		return "v" + v
	}
	return DefaultVersion
}

// DetectType guesses the document type from keywords in the file name.
func DetectType(filename string) string {
	lower := strings.ToLower(filename)
	for _, t := range typePatterns {
		if t.pattern.MatchString(lower) {
			return t.label
		}
	}
	return "Documento"
}

// Fold returns the case-folded form used for case-insensitive comparisons.
func Fold(s string) string {
	return cases.Fold().String(s)
}
