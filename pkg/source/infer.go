package source

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// majorityThreshold is the fraction of non-empty samples that must parse as a
// category for the column to take that type
const majorityThreshold = 0.8

// Date shapes recognized during inference; anchored prefixes so trailing time
// components still count
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`), // YYYY-MM-DD
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`), // MM/DD/YYYY
	regexp.MustCompile(`^\d{2}-\d{2}-\d{4}`), // MM-DD-YYYY
	regexp.MustCompile(`^\d{4}/\d{2}/\d{2}`), // YYYY/MM/DD
}

// booleanTokens is the fixed set of values treated as booleans
var booleanTokens = map[string]bool{
	"true": true, "false": true,
	"yes": true, "no": true,
	"1": true, "0": true,
	"t": true, "f": true,
	"y": true, "n": true,
}

// InferType infers a column's semantic type from sample values.
// Precedence: date > number > boolean > string. Empty samples are ignored;
// a column with no non-empty samples is a string column.
func InferType(samples []string) ColumnType {
	nonEmpty := make([]string, 0, len(samples))
	for _, s := range samples {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}

	if len(nonEmpty) == 0 {
		return ColumnString
	}

	if majority(nonEmpty, looksLikeDate) {
		return ColumnDate
	}
	if majority(nonEmpty, looksLikeNumber) {
		return ColumnNumber
	}
	if majority(nonEmpty, looksLikeBoolean) {
		return ColumnBoolean
	}

	return ColumnString
}

// majority reports whether at least 80% of values satisfy the predicate
func majority(values []string, pred func(string) bool) bool {
	count := 0
	for _, v := range values {
		if pred(v) {
			count++
		}
	}
	return float64(count)/float64(len(values)) > majorityThreshold
}

// looksLikeDate checks the value against the accepted date shapes
func looksLikeDate(value string) bool {
	trimmed := strings.TrimSpace(value)
	for _, pattern := range datePatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// looksLikeNumber checks whether the value parses as a number after stripping
// thousands separators and a currency symbol
func looksLikeNumber(value string) bool {
	cleaned := CleanNumeric(value)
	if cleaned == "" {
		return false
	}
	_, err := cast.ToFloat64E(cleaned)
	return err == nil
}

// looksLikeBoolean checks the value against the boolean token set
func looksLikeBoolean(value string) bool {
	return booleanTokens[strings.ToLower(strings.TrimSpace(value))]
}

// CleanNumeric strips thousands separators and a leading currency symbol so
// the remainder can be parsed as a plain number
func CleanNumeric(value string) string {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimPrefix(cleaned, "€")
	cleaned = strings.TrimPrefix(cleaned, "£")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return strings.TrimSpace(cleaned)
}
