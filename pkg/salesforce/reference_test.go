package salesforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidReferenceID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid 15 char", "0013000000abcde", true},
		{"valid 15 char mixed case", "001A0000012BcDe", true},
		{"valid 18 char all lowercase body", "0013000000abcdeAAA", true},
		{"valid 18 char with uppercase in first group", "A00000000000000BAA", true},
		{"wrong checksum suffix", "0013000000abcdeAAB", false},
		{"too short", "00130000", false},
		{"sixteen chars", "0013000000abcdef", false},
		{"non-alphanumeric", "0013000000abc-e", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidReferenceID(tt.id))
		})
	}
}

func TestChecksumSuffix(t *testing.T) {
	// No uppercase characters: every group indexes position zero
	assert.Equal(t, "AAA", checksumSuffix("0013000000abcde"))

	// One uppercase at the first position of the first group
	assert.Equal(t, "BAA", checksumSuffix("A00000000000000"))

	// Uppercase at the last position of a group sets the high bit
	assert.Equal(t, "QAA", checksumSuffix("0000A0000000000"))
}

func TestFieldWritable(t *testing.T) {
	field := &Field{Name: "Amount__c", Createable: true, Updateable: false}
	assert.True(t, field.Writable("insert"))
	assert.False(t, field.Writable("update"))

	formula := &Field{Name: "Total__c", Createable: true, Updateable: true, Calculated: true}
	assert.False(t, formula.Writable("insert"))

	auto := &Field{Name: "CaseNumber", Createable: true, AutoNumber: true}
	assert.False(t, auto.Writable("insert"))
}

func TestObjectHelpers(t *testing.T) {
	object := &Object{
		Name: "Account",
		Fields: []Field{
			{Name: "Name", Label: "Account Name", Required: true, Createable: true, Updateable: true},
			{Name: "Industry", Createable: true, Updateable: true},
			{Name: "CreatedDate", Createable: false, Updateable: false},
		},
		RecordTypes: []RecordType{
			{RecordTypeID: "012000000000001", Label: "Customer", IsActive: true},
			{RecordTypeID: "012000000000002", Label: "Partner", IsActive: true, IsDefault: true},
		},
	}

	assert.NotNil(t, object.FieldByName("Industry"))
	assert.Nil(t, object.FieldByName("Missing__c"))

	required := object.RequiredFields()
	assert.Len(t, required, 1)
	assert.Equal(t, "Name", required[0].Name)

	writable := object.WritableFields("insert")
	assert.Len(t, writable, 2)

	rt := object.DefaultRecordType()
	assert.NotNil(t, rt)
	assert.Equal(t, "Partner", rt.Label)
}
