package convert

// Skip reasons attached to non-converted values
const (
	ReasonReadOnly        = "read-only field"
	ReasonEmptyValue      = "empty value"
	ReasonInvalidBoolean  = "invalid boolean"
	ReasonInvalidNumber   = "invalid number"
	ReasonInvalidDate     = "invalid date"
	ReasonInvalidPicklist = "invalid picklist value"
	ReasonInvalidRefID    = "invalid reference id"
)

// Result is the outcome of converting one raw value: either a typed value or
// a skip with a diagnostic reason. Conversion never fails a batch; invalid
// data degrades to a skip.
type Result struct {
	value   interface{}
	skipped bool
	reason  string
}

// Converted wraps a successfully converted value
func Converted(value interface{}) Result {
	return Result{value: value}
}

// Skipped marks a value as deliberately not converted
func Skipped(reason string) Result {
	return Result{skipped: true, reason: reason}
}

// Skipped reports whether the value was skipped
func (r Result) Skipped() bool {
	return r.skipped
}

// Reason returns the skip diagnostic, empty for converted values
func (r Result) Reason() string {
	return r.reason
}

// Value returns the converted value; nil for skipped results
func (r Result) Value() interface{} {
	if r.skipped {
		return nil
	}
	return r.value
}
