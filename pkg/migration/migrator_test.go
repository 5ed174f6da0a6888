package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsbingo17/csv-to-salesforce/pkg/config"
	"github.com/gsbingo17/csv-to-salesforce/pkg/logger"
	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// fakeWriter records submitted batches and synthesizes per-record results
type fakeWriter struct {
	mu      sync.Mutex
	batches [][]salesforce.Record
	failAll bool
	rejects map[int]string // record index (across the run) -> error message
	seen    int
}

func (w *fakeWriter) InsertBatch(_ context.Context, _ string, records []salesforce.Record) ([]salesforce.RecordResult, error) {
	return w.write(records)
}

func (w *fakeWriter) UpdateBatch(_ context.Context, _ string, records []salesforce.Record) ([]salesforce.RecordResult, error) {
	return w.write(records)
}

func (w *fakeWriter) write(records []salesforce.Record) ([]salesforce.RecordResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failAll {
		return nil, fmt.Errorf("service unavailable")
	}

	w.batches = append(w.batches, records)
	results := make([]salesforce.RecordResult, len(records))
	for i := range records {
		if msg, failed := w.rejects[w.seen]; failed {
			results[i].Errors = append(results[i].Errors, struct {
				StatusCode string   `json:"statusCode"`
				Message    string   `json:"message"`
				Fields     []string `json:"fields"`
			}{StatusCode: "FIELD_CUSTOM_VALIDATION_EXCEPTION", Message: msg})
		} else {
			results[i].ID = fmt.Sprintf("001300000000%03dAAA", w.seen)
			results[i].Success = true
		}
		w.seen++
	}
	return results, nil
}

func (w *fakeWriter) submitted() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, b := range w.batches {
		total += len(b)
	}
	return total
}

func opportunitySchema() *salesforce.Object {
	return &salesforce.Object{
		Name:  "Opportunity",
		Label: "Opportunity",
		Fields: []salesforce.Field{
			{Name: "Id", Label: "Record ID", Type: salesforce.TypeID},
			{Name: "Name", Label: "Name", Type: salesforce.TypeString, Required: true, Createable: true, Updateable: true},
			{Name: "Amount__c", Label: "Amount", Type: salesforce.TypeCurrency, Createable: true, Updateable: true},
			{Name: "Status__c", Label: "Status", Type: salesforce.TypePicklist, Createable: true, Updateable: true,
				PicklistValues: []string{"Open", "Closed"}},
		},
	}
}

func writeSourceCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opportunities.csv")
	content := "name,amount,status\n"
	for _, row := range rows {
		content += row + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(sourcePath string) *config.Config {
	cfg := &config.Config{}
	cfg.Source.Path = sourcePath
	cfg.Target.Object = "Opportunity"
	cfg.Mapping.StorePath = ":memory:"
	config.ApplyDefaults(cfg)
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	path := writeSourceCSV(t,
		"Acme Deal,\"$1,000\",open",
		"Globex Deal,250.50,closed",
		"Initech Deal,abc,Open",
	)
	cfg := testConfig(path)

	writer := &fakeWriter{}
	m := NewMigrator(cfg, logger.New())
	m.Writer = writer
	m.Schema = opportunitySchema()

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Submitted)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.EmptyRecords)
	// One cell skipped: the unparseable amount on the third row
	assert.Equal(t, 1, result.SkippedCells)
	assert.Equal(t, 3, writer.submitted())

	// The fuzzy stage resolves all three columns exactly
	require.Len(t, result.Mapping, 3)
	assert.Equal(t, "Name", result.Mapping.ForColumn("name").TargetField)
	assert.Equal(t, "Amount__c", result.Mapping.ForColumn("amount").TargetField)
	assert.Equal(t, "Status__c", result.Mapping.ForColumn("status").TargetField)

	// Converted values arrive typed, with canonical picklist casing
	first := writer.batches[0][0]
	assert.Equal(t, "Acme Deal", first["Name"])
	assert.Equal(t, 1000.0, first["Amount__c"])
	assert.Equal(t, "Open", first["Status__c"])
}

func TestRunRecordRejections(t *testing.T) {
	path := writeSourceCSV(t,
		"Acme Deal,100,open",
		"Globex Deal,200,closed",
	)
	cfg := testConfig(path)

	writer := &fakeWriter{rejects: map[int]string{1: "duplicate value"}}
	m := NewMigrator(cfg, logger.New())
	m.Writer = writer
	m.Schema = opportunitySchema()

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "duplicate value")
}

func TestRunEmptyRowsNotSubmitted(t *testing.T) {
	path := writeSourceCSV(t,
		"Acme Deal,100,open",
		",,",
	)
	cfg := testConfig(path)

	writer := &fakeWriter{}
	m := NewMigrator(cfg, logger.New())
	m.Writer = writer
	m.Schema = opportunitySchema()

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 1, result.EmptyRecords)
	assert.Equal(t, 1, writer.submitted())
}

func TestRunDryRun(t *testing.T) {
	path := writeSourceCSV(t,
		"Acme Deal,100,open",
		"Globex Deal,abc,closed",
	)
	cfg := testConfig(path)

	writer := &fakeWriter{}
	m := NewMigrator(cfg, logger.New())
	m.Writer = writer
	m.Schema = opportunitySchema()
	m.DryRun = true

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.Submitted)
	assert.Equal(t, 1, result.SkippedCells)
	assert.Empty(t, writer.batches)
	assert.NotEmpty(t, result.Mapping.Mapped())
}

func TestRunFailsWhenRequiredFieldUnmapped(t *testing.T) {
	// No column resembles the required Name field
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("zzz1,zzz2\na,b\n"), 0o644))
	cfg := testConfig(path)

	m := NewMigrator(cfg, logger.New())
	m.Writer = &fakeWriter{}
	m.Schema = opportunitySchema()

	_, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping validation failed")
}

func TestRunTransportFailureSurfaces(t *testing.T) {
	path := writeSourceCSV(t, "Acme Deal,100,open")
	cfg := testConfig(path)
	// Keep the test fast: no backoff to speak of
	cfg.RetryConfig.MaxRetries = 1
	cfg.RetryConfig.BaseDelayMs = 1
	cfg.RetryConfig.MaxDelayMs = 2

	m := NewMigrator(cfg, logger.New())
	m.Writer = &fakeWriter{failAll: true}
	m.Schema = opportunitySchema()

	_, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit batch")
}

func TestRunBatchesBySize(t *testing.T) {
	rows := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, fmt.Sprintf("Deal %d,%d,open", i, (i+1)*10))
	}
	path := writeSourceCSV(t, rows...)
	cfg := testConfig(path)
	cfg.WriteBatchSize = 2

	writer := &fakeWriter{}
	m := NewMigrator(cfg, logger.New())
	m.Writer = writer
	m.Schema = opportunitySchema()

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Succeeded)
	// 2 + 2 + the final partial batch of 1
	assert.Len(t, writer.batches, 3)
}
