package salesforce

import "time"

// FieldType is a Salesforce field type from a describe result
type FieldType string

// Field types the converter dispatches on
const (
	TypeString        FieldType = "string"
	TypeTextArea      FieldType = "textarea"
	TypeEmail         FieldType = "email"
	TypePhone         FieldType = "phone"
	TypeURL           FieldType = "url"
	TypeID            FieldType = "id"
	TypeReference     FieldType = "reference"
	TypeBoolean       FieldType = "boolean"
	TypeInt           FieldType = "int"
	TypeDouble        FieldType = "double"
	TypeCurrency      FieldType = "currency"
	TypePercent       FieldType = "percent"
	TypeDate          FieldType = "date"
	TypeDateTime      FieldType = "datetime"
	TypePicklist      FieldType = "picklist"
	TypeMultiPicklist FieldType = "multipicklist"
)

// IsNumeric reports whether values of this type are numbers
func (t FieldType) IsNumeric() bool {
	switch t {
	case TypeInt, TypeDouble, TypeCurrency, TypePercent:
		return true
	}
	return false
}

// IsDate reports whether values of this type are dates
func (t FieldType) IsDate() bool {
	return t == TypeDate || t == TypeDateTime
}

// Field represents a single field in a Salesforce object
type Field struct {
	Name             string    `json:"name"`  // API name (e.g. "AccountNumber")
	Label            string    `json:"label"` // Display label
	Type             FieldType `json:"type"`
	Length           int       `json:"length,omitempty"` // Max length for string fields
	Required         bool      `json:"required"`         // Nillable=false in the describe result
	Updateable       bool      `json:"updateable"`
	Createable       bool      `json:"createable"`
	Calculated       bool      `json:"calculated"` // Formula field
	AutoNumber       bool      `json:"autoNumber"`
	RelationshipName string    `json:"relationshipName,omitempty"` // For reference fields
	ReferenceTo      []string  `json:"referenceTo,omitempty"`      // Target object names for lookups
	PicklistValues   []string  `json:"picklistValues,omitempty"`   // For picklist/multipicklist
	DefaultValue     string    `json:"defaultValue,omitempty"`
}

// Writable reports whether the field accepts a value for the given operation
func (f *Field) Writable(operation string) bool {
	if f.Calculated || f.AutoNumber {
		return false
	}
	if operation == "update" {
		return f.Updateable
	}
	return f.Createable
}

// RecordType represents a Salesforce record type
type RecordType struct {
	RecordTypeID string `json:"recordTypeId"`
	Name         string `json:"name"`  // Developer name
	Label        string `json:"label"` // Display label
	IsActive     bool   `json:"isActive"`
	IsDefault    bool   `json:"isDefault"`
}

// Object represents a Salesforce standard or custom object
type Object struct {
	Name        string       `json:"name"`  // API name (Account, Custom__c)
	Label       string       `json:"label"` // Display label
	LabelPlural string       `json:"labelPlural"`
	Custom      bool         `json:"custom"`
	Createable  bool         `json:"createable"`
	Updateable  bool         `json:"updateable"`
	Fields      []Field      `json:"fields"`
	RecordTypes []RecordType `json:"recordTypes,omitempty"`
	FetchedAt   time.Time    `json:"fetchedAt,omitempty"` // Metadata cache timestamp
}

// FieldByName returns the field with the given API name, or nil
func (o *Object) FieldByName(name string) *Field {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			return &o.Fields[i]
		}
	}
	return nil
}

// RequiredFields returns the fields that must be populated on insert
func (o *Object) RequiredFields() []Field {
	var required []Field
	for _, f := range o.Fields {
		if f.Required {
			required = append(required, f)
		}
	}
	return required
}

// WritableFields returns the fields that accept values for the given operation
func (o *Object) WritableFields(operation string) []Field {
	var writable []Field
	for i := range o.Fields {
		if o.Fields[i].Writable(operation) {
			writable = append(writable, o.Fields[i])
		}
	}
	return writable
}

// DefaultRecordType returns the default active record type, or nil
func (o *Object) DefaultRecordType() *RecordType {
	for i := range o.RecordTypes {
		if o.RecordTypes[i].IsDefault && o.RecordTypes[i].IsActive {
			return &o.RecordTypes[i]
		}
	}
	return nil
}
