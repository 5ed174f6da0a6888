package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/gsbingo17/csv-to-salesforce/pkg/config"
	"github.com/gsbingo17/csv-to-salesforce/pkg/convert"
	"github.com/gsbingo17/csv-to-salesforce/pkg/logger"
	"github.com/gsbingo17/csv-to-salesforce/pkg/match"
	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
	"github.com/gsbingo17/csv-to-salesforce/pkg/source"
	"github.com/gsbingo17/csv-to-salesforce/pkg/store"
	"github.com/gsbingo17/csv-to-salesforce/pkg/validate"
)

// BulkWriter accepts batches of assembled records and returns per-record
// outcomes. The Salesforce client implements it; tests substitute fakes.
type BulkWriter interface {
	InsertBatch(ctx context.Context, objectName string, records []salesforce.Record) ([]salesforce.RecordResult, error)
	UpdateBatch(ctx context.Context, objectName string, records []salesforce.Record) ([]salesforce.RecordResult, error)
}

// LoadResult aggregates the outcome of one migration run
type LoadResult struct {
	Total        int         // Data rows read from the source file
	Submitted    int         // Records submitted to the bulk writer
	Succeeded    int         // Records the platform accepted
	Failed       int         // Records the platform rejected
	EmptyRecords int         // Rows where no field converted; reported, not submitted
	SkippedCells int         // Individual cell conversions skipped across the run
	Errors       []string    // Per-record error text from the platform
	Mapping      match.Table // The mapping table the run used
	Duration     time.Duration
}

// Migrator runs the end-to-end pipeline: import, mapping resolution,
// validation, record assembly, and the bulk load
type Migrator struct {
	config *config.Config
	log    *logger.Logger

	// Writer and Schema are injectable for tests and for hosts that manage
	// their own client or metadata. When nil they are built from the config.
	Writer BulkWriter
	Schema *salesforce.Object

	// DryRun resolves, validates, and assembles without submitting anything
	DryRun bool
}

// NewMigrator creates a new migrator
func NewMigrator(cfg *config.Config, log *logger.Logger) *Migrator {
	return &Migrator{
		config: cfg,
		log:    log,
	}
}

// Run executes the migration and returns the aggregated result. Per-value
// conversion problems and unavailable matching stages are recorded in the
// result; only structural failures (unreadable file, missing schema, invalid
// mapping) are returned as errors.
func (m *Migrator) Run(ctx context.Context) (*LoadResult, error) {
	startTime := time.Now()
	operation := m.config.Target.Operation

	// Import and analyze the source file
	m.log.Infof("Importing source file: %s", m.config.Source.Path)
	file, err := source.ImportFile(m.config.Source.Path, m.config.SampleSize, m.config.Source.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to import source file: %w", err)
	}
	m.log.Infof("Source file has %d columns and %d data rows (%s, %s)",
		len(file.Columns), file.TotalRows, file.FileType, file.Encoding)

	// Obtain the target schema
	object, err := m.loadSchema(ctx)
	if err != nil {
		return nil, err
	}
	m.log.Infof("Target object %s has %d fields", object.Name, len(object.Fields))

	// Resolve (or reload) the field mapping
	table, err := m.resolveMapping(ctx, file, object)
	if err != nil {
		return nil, err
	}

	// Validate the mapping against the schema
	if err := m.validateMapping(table, object); err != nil {
		return nil, err
	}

	// Fixed overrides are applied last during assembly
	overrides := make(map[string]interface{})
	if m.config.Target.RecordTypeID != "" {
		overrides["RecordTypeId"] = m.config.Target.RecordTypeID
	}
	assembler := convert.NewAssembler(object, operation, overrides)

	result := &LoadResult{
		Total:   file.TotalRows,
		Mapping: table,
	}

	if m.DryRun {
		if err := m.assembleOnly(ctx, file, table, assembler, result); err != nil {
			return nil, err
		}
		result.Duration = time.Since(startTime)
		return result, nil
	}

	writer, err := m.bulkWriter()
	if err != nil {
		return nil, err
	}

	if err := m.load(ctx, file, table, assembler, writer, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)
	m.log.Infof("Load completed in %.2f seconds: %d succeeded, %d failed, %d empty rows, %d skipped cells",
		result.Duration.Seconds(), result.Succeeded, result.Failed, result.EmptyRecords, result.SkippedCells)
	return result, nil
}

// loadSchema returns the target object metadata from the injected schema, a
// describe file, or a live describe call
func (m *Migrator) loadSchema(ctx context.Context) (*salesforce.Object, error) {
	if m.Schema != nil {
		return m.Schema, nil
	}

	if m.config.Target.MetadataPath != "" {
		object, err := salesforce.LoadMetadataFile(m.config.Target.MetadataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load target schema: %w", err)
		}
		return object, nil
	}

	client := salesforce.NewClient(
		m.config.Target.InstanceURL,
		m.config.Target.AccessToken,
		m.config.Target.APIVersion,
		m.log,
	)

	describeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	object, err := client.Describe(describeCtx, m.config.Target.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to load target schema: %w", err)
	}
	return object, nil
}

// bulkWriter returns the injected writer or builds the Salesforce client
func (m *Migrator) bulkWriter() (BulkWriter, error) {
	if m.Writer != nil {
		return m.Writer, nil
	}
	if m.config.Target.InstanceURL == "" {
		return nil, fmt.Errorf("an instance URL is required to load data")
	}
	return salesforce.NewClient(
		m.config.Target.InstanceURL,
		m.config.Target.AccessToken,
		m.config.Target.APIVersion,
		m.log,
	), nil
}

// resolveMapping reloads a saved mapping for this column signature when
// configured, otherwise runs the matching cascade and persists the result
func (m *Migrator) resolveMapping(ctx context.Context, file *source.File, object *salesforce.Object) (match.Table, error) {
	mappingStore, err := store.Open(m.config.Mapping.StorePath)
	if err != nil {
		// The store is a convenience; resolution still works without it
		m.log.Warnf("Mapping store unavailable: %v", err)
		mappingStore = nil
	} else {
		defer mappingStore.Close()
	}

	signature := file.Signature()

	if m.config.Mapping.ReuseSaved && mappingStore != nil {
		saved, err := mappingStore.Load(object.Name, signature)
		if err != nil {
			m.log.Warnf("Failed to load saved mapping: %v", err)
		} else if saved != nil {
			m.log.Infof("Reusing saved mapping %q (%d entries)", saved.Name, len(saved.Mappings))
			return saved.Mappings, nil
		}
	}

	resolver := m.buildResolver()

	candidates := make([]*salesforce.Field, 0, len(object.Fields))
	for _, f := range object.WritableFields(m.config.Target.Operation) {
		field := f
		candidates = append(candidates, &field)
	}

	table, err := resolver.Resolve(ctx, file.ColumnNames(), candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve field mapping: %w", err)
	}

	if mappingStore != nil {
		name := m.config.Mapping.MappingName
		if name == "" {
			name = fmt.Sprintf("%s auto-mapping", object.Name)
		}
		cfg := &store.MappingConfig{
			Name:            name,
			Object:          object.Name,
			ColumnSignature: signature,
			Mappings:        table,
		}
		if err := mappingStore.Save(cfg); err != nil {
			m.log.Warnf("Failed to persist mapping: %v", err)
		}
	}

	return table, nil
}

// buildResolver wires the matching stages according to the config toggles
func (m *Migrator) buildResolver() *match.Resolver {
	mc := m.config.Mapping

	var semantic *match.SemanticMatcher
	if mc.UseSemanticMatching {
		handle := match.NewEmbedderHandle(func() (match.Embedder, error) {
			return match.NewOpenAIEmbedder(mc.EmbeddingBaseURL, mc.APIKey, mc.EmbeddingModel), nil
		})
		semantic = match.NewSemanticMatcher(handle)
	}

	var llm *match.LLMMatcher
	if mc.UseLLMMapping {
		chat := match.NewOpenAIChat(mc.LLMBaseURL, mc.APIKey, mc.LLMModel)
		llm = match.NewLLMMatcher(chat, time.Duration(mc.LLMTimeoutSec)*time.Second)
	}

	thresholds := match.Thresholds{
		Fuzzy:    mc.FuzzyThreshold,
		Semantic: mc.SemanticThreshold,
		LLMFloor: mc.LLMConfidenceFloor,
		LowBand:  mc.SemanticLowBand,
	}

	return match.NewResolver(semantic, llm, thresholds, m.log)
}

// validateMapping turns blocking validation findings into an operation error
func (m *Migrator) validateMapping(table match.Table, object *salesforce.Object) error {
	result := validate.Mapping(table, object)

	for _, issue := range result.Warnings {
		m.log.Warnf("Mapping warning: %s", issue.Message)
	}

	if !result.IsValid() {
		var errs error
		for _, issue := range result.Errors {
			errs = multierror.Append(errs, fmt.Errorf("%s", issue.Message))
		}
		return fmt.Errorf("mapping validation failed: %w", errs)
	}

	m.log.Infof("Mapping validated: %d columns mapped, %d warnings",
		len(table.Mapped()), len(result.Warnings))
	return nil
}

// assembleOnly runs assembly over every row without submitting, for dry runs
func (m *Migrator) assembleOnly(ctx context.Context, file *source.File, table match.Table, assembler *convert.Assembler, result *LoadResult) error {
	reader, err := source.OpenRows(file.Path, file.SheetName)
	if err != nil {
		return fmt.Errorf("failed to open source rows: %w", err)
	}
	defer reader.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := reader.Next()
		if err != nil {
			return fmt.Errorf("failed to read source row: %w", err)
		}
		if row == nil {
			break
		}

		record, skips := assembler.Assemble(row, table)
		result.SkippedCells += len(skips)
		if len(record) == 0 {
			result.EmptyRecords++
		}
	}

	m.log.Infof("Dry run: %d rows assembled, %d empty, %d cells skipped",
		result.Total, result.EmptyRecords, result.SkippedCells)
	return nil
}

// load streams rows through assembly into batches and submits them through a
// worker pool with retries
func (m *Migrator) load(ctx context.Context, file *source.File, table match.Table, assembler *convert.Assembler, writer BulkWriter, result *LoadResult) error {
	reader, err := source.OpenRows(file.Path, file.SheetName)
	if err != nil {
		return fmt.Errorf("failed to open source rows: %w", err)
	}
	defer reader.Close()

	retryManager := NewRetryManager(
		m.config.RetryConfig.MaxRetries,
		time.Duration(m.config.RetryConfig.BaseDelayMs)*time.Millisecond,
		time.Duration(m.config.RetryConfig.MaxDelayMs)*time.Millisecond,
		m.config.RetryConfig.EnableBatchSplitting,
		m.config.RetryConfig.MinBatchSize,
		m.log,
	)

	objectName := m.config.Target.Object
	operation := m.config.Target.Operation
	write := func(batch []salesforce.Record) ([]salesforce.RecordResult, error) {
		if operation == "update" {
			return writer.UpdateBatch(ctx, objectName, batch)
		}
		return writer.InsertBatch(ctx, objectName, batch)
	}

	batchChan := make(chan []salesforce.Record, m.config.ChannelBufferSize)
	errorChan := make(chan error, 1)

	// Track progress under one mutex, logging only at 10% steps
	var mu sync.Mutex
	var submitted int64
	lastLoggedPercentage := -1

	workerCount := m.config.LoadWorkers
	m.log.Infof("Starting %d workers for parallel batch submission", workerCount)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for batch := range batchChan {
				results, err := retryManager.SubmitWithRetry(ctx, batch, write)
				if err != nil {
					select {
					case errorChan <- fmt.Errorf("worker %d failed to submit batch: %w", workerID, err):
					default:
						// An error is already pending
					}
					return
				}

				mu.Lock()
				for _, r := range results {
					if r.Success {
						result.Succeeded++
					} else {
						result.Failed++
						result.Errors = append(result.Errors, r.ErrorText())
					}
				}
				submitted += int64(len(batch))
				currentPercentage := 0
				if result.Total > 0 {
					currentPercentage = int(float64(submitted) / float64(result.Total) * 10)
				}
				shouldLog := false
				if currentPercentage > lastLoggedPercentage {
					lastLoggedPercentage = currentPercentage
					shouldLog = true
				}
				current := submitted
				mu.Unlock()

				if shouldLog {
					m.log.Infof("Load progress: %d/%d records (%.0f%%)",
						current, result.Total, float64(currentPercentage)*10)
				}
			}
		}(i)
	}

	// Read, assemble, and batch on the main goroutine
	var batch []salesforce.Record
	readErr := func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-errorChan:
				return err
			default:
			}

			row, err := reader.Next()
			if err != nil {
				return fmt.Errorf("failed to read source row: %w", err)
			}
			if row == nil {
				return nil
			}

			record, skips := assembler.Assemble(row, table)
			mu.Lock()
			result.SkippedCells += len(skips)
			mu.Unlock()

			// Empty rows are reported but not submitted
			if len(record) == 0 {
				mu.Lock()
				result.EmptyRecords++
				mu.Unlock()
				continue
			}

			mu.Lock()
			result.Submitted++
			mu.Unlock()

			batch = append(batch, record)
			if len(batch) >= m.config.WriteBatchSize {
				select {
				case batchChan <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				batch = nil
			}
		}
	}()

	// Flush the final partial batch
	if readErr == nil && len(batch) > 0 {
		select {
		case batchChan <- batch:
		case <-ctx.Done():
			readErr = ctx.Err()
		}
	}

	close(batchChan)
	wg.Wait()

	if readErr != nil {
		return readErr
	}

	// A worker may have failed after the reader finished
	select {
	case err := <-errorChan:
		return err
	default:
	}

	return nil
}
