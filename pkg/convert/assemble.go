package convert

import (
	"github.com/gsbingo17/csv-to-salesforce/pkg/match"
	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// Skip records one field left out of an assembled record, with the reason
type Skip struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Assembler builds target-schema records from raw rows by applying the value
// converter per mapped field. Rows are independent; one assembler is safe to
// reuse across rows and goroutines.
type Assembler struct {
	object    *salesforce.Object
	operation string
	fixed     map[string]interface{} // Values applied last, unconditionally
}

// NewAssembler creates an assembler for one target object and operation.
// fixedOverrides carries values chosen outside the per-row data, such as a
// selected record type ID; they override any mapped value for the same field.
func NewAssembler(object *salesforce.Object, operation string, fixedOverrides map[string]interface{}) *Assembler {
	fixed := make(map[string]interface{}, len(fixedOverrides))
	for k, v := range fixedOverrides {
		fixed[k] = v
	}
	return &Assembler{
		object:    object,
		operation: operation,
		fixed:     fixed,
	}
}

// Assemble converts one raw row into a record keyed by target field API name,
// plus the list of skipped fields. A row with zero converted fields still
// yields an (empty) record; the caller decides whether to submit it.
func (a *Assembler) Assemble(row map[string]string, table match.Table) (salesforce.Record, []Skip) {
	record := make(salesforce.Record)
	var skips []Skip

	for _, m := range table {
		if !m.Mapped() {
			continue
		}

		// The record ID is server-assigned and the record type is only
		// settable through fixed overrides
		if m.TargetField == "Id" || m.TargetField == "RecordTypeId" {
			continue
		}

		field := a.object.FieldByName(m.TargetField)
		if field == nil {
			skips = append(skips, Skip{Field: m.TargetField, Reason: "unknown field"})
			continue
		}

		raw := row[m.SourceColumn]
		result := Convert(raw, field, a.operation)
		if result.Skipped() {
			skips = append(skips, Skip{Field: m.TargetField, Reason: result.Reason()})
			continue
		}

		record[m.TargetField] = result.Value()
	}

	// Fixed overrides win over any mapped value for the same field
	for field, value := range a.fixed {
		record[field] = value
	}

	return record, skips
}
