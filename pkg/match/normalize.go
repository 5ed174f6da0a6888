package match

import "strings"

// Suffixes stripped before similarity scoring. "__c" marks custom fields;
// "id" and "name" are boilerplate that inflates scores between unrelated
// names.
var strippedSuffixes = []string{"__c", "_id", "id", "_name", "name"}

// Normalize reduces a column or field name to a comparable form: lowercase,
// whitespace and underscores removed, known suffixes stripped.
func Normalize(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))

	for _, suffix := range strippedSuffixes {
		if trimmed := strings.TrimSuffix(normalized, suffix); trimmed != "" && trimmed != normalized {
			normalized = trimmed
			break
		}
	}

	normalized = strings.ReplaceAll(normalized, "_", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")

	return normalized
}
