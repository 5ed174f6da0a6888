package match

// Method identifies which stage produced a mapping
type Method string

// Mapping methods, in stage order; Manual marks a user override
const (
	MethodFuzzy    Method = "fuzzy"
	MethodSemantic Method = "semantic"
	MethodLLM      Method = "llm"
	MethodManual   Method = "manual"
)

// FieldMapping represents a mapping from a source column to a target field
type FieldMapping struct {
	SourceColumn string  `json:"sourceColumn"`
	TargetField  string  `json:"targetField,omitempty"` // Empty when the column is unmapped
	Confidence   float64 `json:"confidence"`
	Method       Method  `json:"method,omitempty"`
	Rationale    string  `json:"rationale,omitempty"` // Populated by the LLM stage
}

// Mapped reports whether the column resolved to a target field
func (m *FieldMapping) Mapped() bool {
	return m.TargetField != ""
}

// Table is an ordered sequence of field mappings, at most one per source
// column
type Table []FieldMapping

// ForColumn returns the mapping for a source column, or nil
func (t Table) ForColumn(column string) *FieldMapping {
	for i := range t {
		if t[i].SourceColumn == column {
			return &t[i]
		}
	}
	return nil
}

// ForTarget returns the mapping claiming a target field, or nil
func (t Table) ForTarget(field string) *FieldMapping {
	for i := range t {
		if t[i].TargetField == field {
			return &t[i]
		}
	}
	return nil
}

// Mapped returns only the entries that resolved to a target field
func (t Table) Mapped() Table {
	var mapped Table
	for _, m := range t {
		if m.Mapped() {
			mapped = append(mapped, m)
		}
	}
	return mapped
}

// MappedTargets returns the set of claimed target field names
func (t Table) MappedTargets() map[string]bool {
	targets := make(map[string]bool)
	for _, m := range t {
		if m.Mapped() {
			targets[m.TargetField] = true
		}
	}
	return targets
}

// Override replaces the mapping for a source column with a manual entry.
// Manual mappings carry full confidence. Passing an empty target unmaps the
// column.
func (t Table) Override(column, target string) Table {
	entry := FieldMapping{
		SourceColumn: column,
		TargetField:  target,
		Confidence:   1.0,
		Method:       MethodManual,
	}
	if target == "" {
		entry.Confidence = 0
		entry.Method = ""
	}

	for i := range t {
		if t[i].SourceColumn == column {
			t[i] = entry
			return t
		}
	}
	return append(t, entry)
}
