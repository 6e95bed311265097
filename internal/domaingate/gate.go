// Package domaingate decides whether a user question is about campus dining
// before any model or embedding call is made. Classification is a cheap,
// fully local fuzzy match against a static lexicon, so typos, spacing
// variants, and mixed-language input still land in-domain.
package domaingate

import (
	"strings"
	"unicode"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultThreshold = 80

// Gate classifies questions as in-domain or off-topic.
type Gate struct {
	lexicon   []string // pre-normalized reference phrases
	threshold int
}

// New creates a Gate over the given lexicon entries. Entries are normalized
// once at construction; the zero-length lexicon classifies everything
// off-topic. If threshold <= 0 the default (80) is used.
func New(lexicon []string, threshold int) *Gate {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	normalized := make([]string, 0, len(lexicon))
	seen := make(map[string]struct{}, len(lexicon))
	for _, entry := range lexicon {
		n := NormalizeLoose(entry)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	return &Gate{lexicon: normalized, threshold: threshold}
}

// Default returns a Gate over the built-in campus dining lexicon.
func Default() *Gate {
	return New(defaultLexicon, defaultThreshold)
}

// InDomain reports whether text is about campus dining. Blank input (after
// normalization) is always off-topic.
func (g *Gate) InDomain(text string) bool {
	q := NormalizeLoose(text)
	if q == "" {
		return false
	}

	// Stage 1: whole-sentence partial similarity against each lexicon entry.
	for _, kw := range g.lexicon {
		if fuzzy.PartialRatio(q, kw) >= g.threshold {
			return true
		}
	}

	// Stage 2: per-token nearest-entry match for tokens longer than 2 runes.
	for _, tok := range tokenize(q) {
		if g.bestTokenScore(tok) >= g.threshold {
			return true
		}
	}

	return false
}

func (g *Gate) bestTokenScore(token string) int {
	best := 0
	for _, kw := range g.lexicon {
		if s := fuzzy.Ratio(token, kw); s > best {
			best = s
		}
	}
	return best
}

// stripMarks removes combining marks left over after canonical decomposition,
// which drops diacritics (cafetería -> cafeteria) without touching Hangul.
var stripMarks = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize applies NFKC folding and whitespace collapse without case changes.
func Normalize(text string) string {
	return collapseSpaces(norm.NFKC.String(text))
}

// NormalizeLoose additionally strips diacritics and lowercases, tolerating
// accent and case variants across languages.
func NormalizeLoose(text string) string {
	folded, _, err := transform.String(stripMarks, text)
	if err != nil {
		folded = norm.NFKC.String(text)
	}
	return collapseSpaces(strings.ToLower(folded))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tokenize splits on anything that is not a letter or digit and drops
// tokens of 2 runes or fewer, which match too promiscuously.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}
