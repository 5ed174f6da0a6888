package match

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// fakeChat returns a canned response, recording the prompt it was given
type fakeChat struct {
	response string
	err      error
	prompt   string
}

func (f *fakeChat) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestParseProposalsPlainArray(t *testing.T) {
	proposals, err := parseProposals(`[{"column": "amt", "field": "Amount__c", "confidence": 0.9, "rationale": "abbreviation"}]`)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "amt", proposals[0].Column)
	assert.Equal(t, "Amount__c", proposals[0].Field)
	assert.Equal(t, 0.9, proposals[0].Confidence)
}

func TestParseProposalsWithProseAndFences(t *testing.T) {
	response := "Here are the mappings:\n```json\n" +
		`[{"column": "amt", "field": "Amount__c", "confidence": 0.8, "rationale": ""}]` +
		"\n```\nLet me know if you need more."

	proposals, err := parseProposals(response)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "Amount__c", proposals[0].Field)
}

func TestParseProposalsRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and unquoted key, the usual model output damage
	response := `[{"column": "amt", field: "Amount__c", "confidence": 0.8,}]`

	proposals, err := parseProposals(response)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "Amount__c", proposals[0].Field)
}

func TestParseProposalsCleansNullField(t *testing.T) {
	proposals, err := parseProposals(`[{"column": "notes", "field": "null", "confidence": 0.2}]`)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Empty(t, proposals[0].Field)
}

func TestParseProposalsClampsConfidence(t *testing.T) {
	proposals, err := parseProposals(`[{"column": "a", "field": "X", "confidence": 1.7}, {"column": "b", "field": "Y", "confidence": -0.3}]`)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, 1.0, proposals[0].Confidence)
	assert.Equal(t, 0.0, proposals[1].Confidence)
}

func TestParseProposalsUnrecoverable(t *testing.T) {
	_, err := parseProposals("I cannot map these columns.")
	assert.Error(t, err)
}

func TestLLMResolveFiltersUnaskedColumns(t *testing.T) {
	chat := &fakeChat{response: `[
		{"column": "amt", "field": "Amount__c", "confidence": 0.9, "rationale": ""},
		{"column": "name", "field": "Name", "confidence": 0.9, "rationale": ""}
	]`}
	m := NewLLMMatcher(chat, time.Second)

	fields := []*salesforce.Field{
		{Name: "Amount__c", Label: "Amount", Type: salesforce.TypeCurrency},
		{Name: "Name", Label: "Name", Type: salesforce.TypeString},
	}
	proposals, err := m.Resolve(context.Background(), []string{"amt"}, fields, []string{"name", "amt"})
	require.NoError(t, err)

	// Only the column we asked about survives
	require.Len(t, proposals, 1)
	assert.Equal(t, "amt", proposals[0].Column)
}

func TestLLMResolvePromptCarriesContext(t *testing.T) {
	chat := &fakeChat{response: `[]`}
	m := NewLLMMatcher(chat, time.Second)

	fields := []*salesforce.Field{
		{Name: "Amount__c", Label: "Amount", Type: salesforce.TypeCurrency},
	}
	_, err := m.Resolve(context.Background(), []string{"amt"}, fields, []string{"name", "amt"})
	require.NoError(t, err)

	// Column and field context goes out; never any row data
	assert.Contains(t, chat.prompt, `"unmappedColumns":["amt"]`)
	assert.Contains(t, chat.prompt, `"allSourceColumns":["name","amt"]`)
	assert.Contains(t, chat.prompt, `"Amount__c"`)
}

func TestLLMResolveServiceError(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("connection refused")}
	m := NewLLMMatcher(chat, time.Second)

	fields := []*salesforce.Field{{Name: "Name", Label: "Name", Type: salesforce.TypeString}}
	_, err := m.Resolve(context.Background(), []string{"amt"}, fields, []string{"amt"})
	assert.Error(t, err)
}

func TestLLMResolveNothingToAsk(t *testing.T) {
	m := NewLLMMatcher(&fakeChat{}, time.Second)

	proposals, err := m.Resolve(context.Background(), nil, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, proposals)
}
