package convert

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
	"github.com/gsbingo17/csv-to-salesforce/pkg/source"
)

// Ordered date layouts tried during conversion; ISO first, then common
// regional shapes
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Datetime layouts accepted for datetime fields before the date-only
// fallbacks above
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Boolean token sets accepted for boolean fields
var (
	trueTokens  = map[string]bool{"yes": true, "true": true, "1": true}
	falseTokens = map[string]bool{"no": true, "false": true, "0": true}
)

// Convert transforms a raw string into a typed value conforming to the target
// field. Rules apply in order, first match wins; malformed input degrades to
// a skip with a diagnostic, never an error.
func Convert(raw string, field *salesforce.Field, operation string) Result {
	if !field.Writable(operation) {
		return Skipped(ReasonReadOnly)
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Skipped(ReasonEmptyValue)
	}

	switch {
	case field.Type == salesforce.TypeBoolean:
		return convertBoolean(trimmed)
	case field.Type.IsNumeric():
		return convertNumber(trimmed)
	case field.Type.IsDate():
		return convertDate(trimmed, field.Type)
	case field.Type == salesforce.TypePicklist || field.Type == salesforce.TypeMultiPicklist:
		return convertPicklist(trimmed, field.PicklistValues)
	case field.Type == salesforce.TypeReference || field.Type == salesforce.TypeID:
		return convertReference(trimmed)
	default:
		// Plain string-like fields pass through unchanged
		return Converted(raw)
	}
}

// convertBoolean maps the fixed token sets case-insensitively
func convertBoolean(value string) Result {
	lower := strings.ToLower(value)
	if trueTokens[lower] {
		return Converted(true)
	}
	if falseTokens[lower] {
		return Converted(false)
	}
	return Skipped(ReasonInvalidBoolean)
}

// convertNumber strips thousands separators and a currency symbol, then parses
func convertNumber(value string) Result {
	cleaned := source.CleanNumeric(value)
	if cleaned == "" {
		return Skipped(ReasonInvalidNumber)
	}

	number, err := cast.ToFloat64E(cleaned)
	if err != nil {
		return Skipped(ReasonInvalidNumber)
	}
	return Converted(number)
}

// convertDate tries the ordered layout lists; the first successful parse wins.
// Output is the canonical wire shape for the field type.
func convertDate(value string, fieldType salesforce.FieldType) Result {
	if fieldType == salesforce.TypeDateTime {
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return Converted(t.Format(time.RFC3339))
			}
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			if fieldType == salesforce.TypeDateTime {
				return Converted(t.Format(time.RFC3339))
			}
			return Converted(t.Format("2006-01-02"))
		}
	}

	return Skipped(ReasonInvalidDate)
}

// convertPicklist matches case-insensitively against the allowed values and
// preserves the canonical casing from the field metadata
func convertPicklist(value string, allowed []string) Result {
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, value) {
			return Converted(candidate)
		}
	}
	return Skipped(ReasonInvalidPicklist)
}

// convertReference accepts only values shaped like Salesforce record IDs
func convertReference(value string) Result {
	if salesforce.ValidReferenceID(value) {
		return Converted(value)
	}
	return Skipped(ReasonInvalidRefID)
}
