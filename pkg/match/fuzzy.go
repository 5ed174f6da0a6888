package match

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// FuzzyMatcher scores deterministic lexical similarity between normalized
// column names and target field names. No external calls; identical inputs
// always produce identical scores.
type FuzzyMatcher struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewFuzzyMatcher creates a new fuzzy matcher
func NewFuzzyMatcher() *FuzzyMatcher {
	return &FuzzyMatcher{dmp: diffmatchpatch.New()}
}

// Score returns the similarity in [0,1] between a source column and a target
// field, scoring against both the API name and the label and taking the max
func (m *FuzzyMatcher) Score(sourceColumn string, field *salesforce.Field) float64 {
	normalized := Normalize(sourceColumn)
	if normalized == "" {
		return 0
	}

	byName := m.ratio(normalized, Normalize(field.Name))
	byLabel := m.ratio(normalized, Normalize(field.Label))
	if byLabel > byName {
		return byLabel
	}
	return byName
}

// ratio is a sequence-alignment similarity: twice the matched character count
// over the combined length, the same measure difflib's SequenceMatcher uses
func (m *FuzzyMatcher) ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	matched := 0
	for _, diff := range m.dmp.DiffMain(a, b, false) {
		if diff.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(diff.Text)
		}
	}

	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	return 2 * float64(matched) / float64(total)
}
