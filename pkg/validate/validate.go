package validate

import (
	"fmt"

	"github.com/gsbingo17/csv-to-salesforce/pkg/match"
	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// Severity of a validation issue
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue types reported by mapping validation
const (
	IssueMissingRequired  = "missing_required"
	IssueInvalidField     = "invalid_field"
	IssueDuplicateMapping = "duplicate_mapping"
	IssueNonUpdateable    = "non_updateable"
)

// Issue is one validation finding against a mapping table
type Issue struct {
	FieldName string `json:"fieldName"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
}

// Result holds the findings of validating a mapping table
type Result struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// IsValid reports whether the mapping has no blocking errors
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Issues returns errors and warnings combined
func (r *Result) Issues() []Issue {
	return append(append([]Issue(nil), r.Errors...), r.Warnings...)
}

// Mapping validates a mapping table against the target object: required
// fields must be mapped, targets must exist, duplicates and non-updateable
// targets are flagged
func Mapping(table match.Table, object *salesforce.Object) *Result {
	result := &Result{}
	mapped := table.MappedTargets()

	// Required fields without a mapping
	for _, f := range object.RequiredFields() {
		if !mapped[f.Name] {
			result.Errors = append(result.Errors, Issue{
				FieldName: f.Name,
				Type:      IssueMissingRequired,
				Message:   fmt.Sprintf("Required field '%s' (%s) is not mapped", f.Label, f.Name),
				Severity:  SeverityError,
			})
		}
	}

	// Target fields claimed by more than one column
	counts := make(map[string]int)
	for _, m := range table.Mapped() {
		counts[m.TargetField]++
	}
	for target, count := range counts {
		if count > 1 {
			label := target
			if f := object.FieldByName(target); f != nil {
				label = f.Label
			}
			result.Warnings = append(result.Warnings, Issue{
				FieldName: target,
				Type:      IssueDuplicateMapping,
				Message:   fmt.Sprintf("Multiple source columns mapped to '%s' (%s)", label, target),
				Severity:  SeverityWarning,
			})
		}
	}

	for _, m := range table.Mapped() {
		f := object.FieldByName(m.TargetField)

		// Targets that do not exist on the object
		if f == nil {
			result.Errors = append(result.Errors, Issue{
				FieldName: m.TargetField,
				Type:      IssueInvalidField,
				Message:   fmt.Sprintf("Target field '%s' does not exist on %s", m.TargetField, object.Name),
				Severity:  SeverityError,
			})
			continue
		}

		// Targets the platform will not accept updates for
		if !f.Updateable && f.Name != "Id" {
			result.Warnings = append(result.Warnings, Issue{
				FieldName: f.Name,
				Type:      IssueNonUpdateable,
				Message:   fmt.Sprintf("Field '%s' (%s) is not updateable", f.Label, f.Name),
				Severity:  SeverityWarning,
			})
		}
	}

	return result
}
