package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config represents the main configuration structure
type Config struct {
	// Source file configuration
	Source SourceConfig `json:"source"`

	// Target Salesforce configuration
	Target TargetConfig `json:"target"`

	// Field mapping configuration
	Mapping MappingConfig `json:"mapping"`

	// Parameters for the data load
	WriteBatchSize    int `json:"writeBatchSize"`    // Number of records per bulk write request
	ChannelBufferSize int `json:"channelBufferSize"` // Size of channel buffer for batches during the load
	LoadWorkers       int `json:"loadWorkers"`       // Number of worker goroutines for batch submission
	SampleSize        int `json:"sampleSize"`        // Number of rows to sample for type inference

	// Retry configuration
	RetryConfig RetryConfig `json:"retryConfig"` // Configuration for retry mechanisms

	// Optional log file with rotation
	LogFile string `json:"logFile"`
}

// SourceConfig represents the source file configuration
type SourceConfig struct {
	Path      string `json:"path"`                // Path to the CSV or Excel file
	SheetName string `json:"sheetName,omitempty"` // Worksheet name for Excel files (first sheet when empty)
}

// TargetConfig represents the target Salesforce configuration
type TargetConfig struct {
	InstanceURL  string `json:"instanceUrl"`            // Salesforce instance URL
	AccessToken  string `json:"-" env:"SF_ACCESS_TOKEN"`
	APIVersion   string `json:"apiVersion"`             // REST API version, e.g. "v59.0"
	Object       string `json:"object"`                 // Target object API name
	Operation    string `json:"operation"`              // "insert" or "update"
	RecordTypeID string `json:"recordTypeId,omitempty"` // Record type applied to every record
	MetadataPath string `json:"metadataPath,omitempty"` // Describe JSON on disk instead of a live describe call
}

// MappingConfig represents the field mapping configuration
type MappingConfig struct {
	// Stage toggles
	UseSemanticMatching bool `json:"useSemanticMatching"` // Enable the embedding-based matching stage
	UseLLMMapping       bool `json:"useLlmMapping"`       // Enable the LLM-assisted matching stage

	// Thresholds; zero means "use the default"
	FuzzyThreshold     float64 `json:"fuzzyThreshold"`     // Minimum similarity ratio for a direct fuzzy mapping
	SemanticThreshold  float64 `json:"semanticThreshold"`  // Minimum cosine similarity for a semantic mapping
	LLMConfidenceFloor float64 `json:"llmConfidenceFloor"` // Mappings below this confidence go to the LLM stage
	SemanticLowBand    float64 `json:"semanticLowBand"`    // Fuzzy scores below this still enter the semantic stage

	// Embedding and LLM backend
	EmbeddingBaseURL string `json:"embeddingBaseUrl"` // OpenAI-compatible endpoint for embeddings (local server supported)
	EmbeddingModel   string `json:"embeddingModel"`   // Embedding model name
	LLMBaseURL       string `json:"llmBaseUrl"`       // OpenAI-compatible endpoint for chat completions
	LLMModel         string `json:"llmModel"`         // Chat model name
	LLMTimeoutSec    int    `json:"llmTimeoutSec"`    // Timeout for the single batched LLM request
	APIKey           string `json:"-" env:"LLM_API_KEY"`

	// Saved mapping reuse
	StorePath   string `json:"storePath"`   // Path to the mapping store database file
	ReuseSaved  bool   `json:"reuseSaved"`  // Reload a saved mapping for a matching column signature
	MappingName string `json:"mappingName"` // Name used when persisting the resolved mapping
}

// RetryConfig represents retry configuration
type RetryConfig struct {
	MaxRetries           int  `json:"maxRetries"`           // Maximum number of retries
	BaseDelayMs          int  `json:"baseDelayMs"`          // Base delay in milliseconds
	MaxDelayMs           int  `json:"maxDelayMs"`           // Maximum delay in milliseconds
	EnableBatchSplitting bool `json:"enableBatchSplitting"` // Split a failing batch and retry the halves
	MinBatchSize         int  `json:"minBatchSize"`         // Minimum batch size for splitting
}

// Default thresholds for the mapping cascade
const (
	DefaultFuzzyThreshold     = 0.70
	DefaultSemanticThreshold  = 0.60
	DefaultLLMConfidenceFloor = 0.75
	DefaultSemanticLowBand    = 0.30
)

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	// Set default config path if not provided
	if configPath == "" {
		configPath = "csv_to_salesforce_config.json"
	}

	// Load secrets from a .env file next to the config file, if present
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))

	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse the config
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Layer environment overrides (access token, LLM API key)
	if err := env.Parse(&config.Target); err != nil {
		return nil, fmt.Errorf("error reading environment overrides: %w", err)
	}
	if err := env.Parse(&config.Mapping); err != nil {
		return nil, fmt.Errorf("error reading environment overrides: %w", err)
	}

	// Validate the config
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	ApplyDefaults(&config)

	return &config, nil
}

// ApplyDefaults fills zero-valued tunables with their defaults
func ApplyDefaults(config *Config) {
	if config.WriteBatchSize <= 0 {
		config.WriteBatchSize = 200 // Salesforce collections API limit
	}

	if config.ChannelBufferSize <= 0 {
		config.ChannelBufferSize = 10 // Default to buffer for 10 batches
	}

	if config.LoadWorkers <= 0 {
		config.LoadWorkers = 4 // Default to 4 worker goroutines
	}

	if config.SampleSize <= 0 {
		config.SampleSize = 100 // Default to 100 sampled rows
	}

	// Set default values for the mapping thresholds
	if config.Mapping.FuzzyThreshold <= 0 {
		config.Mapping.FuzzyThreshold = DefaultFuzzyThreshold
	}

	if config.Mapping.SemanticThreshold <= 0 {
		config.Mapping.SemanticThreshold = DefaultSemanticThreshold
	}

	if config.Mapping.LLMConfidenceFloor <= 0 {
		config.Mapping.LLMConfidenceFloor = DefaultLLMConfidenceFloor
	}

	if config.Mapping.SemanticLowBand <= 0 {
		config.Mapping.SemanticLowBand = DefaultSemanticLowBand
	}

	if config.Mapping.LLMTimeoutSec <= 0 {
		config.Mapping.LLMTimeoutSec = 30 // Default to a 30s LLM timeout
	}

	if config.Mapping.StorePath == "" {
		config.Mapping.StorePath = "mappings.db"
	}

	if config.Target.APIVersion == "" {
		config.Target.APIVersion = "v59.0"
	}

	if config.Target.Operation == "" {
		config.Target.Operation = "insert"
	}

	// Set default values for retry configuration
	if config.RetryConfig.MaxRetries <= 0 {
		config.RetryConfig.MaxRetries = 3 // Default to 3 retries
	}

	if config.RetryConfig.BaseDelayMs <= 0 {
		config.RetryConfig.BaseDelayMs = 200 // Default to 200ms base delay
	}

	if config.RetryConfig.MaxDelayMs <= 0 {
		config.RetryConfig.MaxDelayMs = 5000 // Default to 5s max delay
	}

	if config.RetryConfig.MinBatchSize <= 0 {
		config.RetryConfig.MinBatchSize = 10 // Default to 10 records per batch
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	// Validate source config
	if config.Source.Path == "" {
		return fmt.Errorf("source file path is required")
	}

	// Validate target config
	if config.Target.Object == "" {
		return fmt.Errorf("target Salesforce object is required")
	}

	if config.Target.Operation != "" && config.Target.Operation != "insert" && config.Target.Operation != "update" {
		return fmt.Errorf("unsupported operation: %s (expected insert or update)", config.Target.Operation)
	}

	// A metadata file stands in for a live describe; one of the two is required
	if config.Target.MetadataPath == "" && config.Target.InstanceURL == "" {
		return fmt.Errorf("either an instance URL or a metadata file path is required")
	}

	if config.Target.MetadataPath != "" {
		if _, err := os.Stat(config.Target.MetadataPath); os.IsNotExist(err) {
			return fmt.Errorf("metadata file not found at path: %s", config.Target.MetadataPath)
		}
	}

	// The LLM stage needs a model; the key may legitimately be empty for local servers
	if config.Mapping.UseLLMMapping && config.Mapping.LLMModel == "" {
		return fmt.Errorf("llmModel is required when LLM mapping is enabled")
	}

	if config.Mapping.UseSemanticMatching && config.Mapping.EmbeddingModel == "" {
		return fmt.Errorf("embeddingModel is required when semantic matching is enabled")
	}

	return nil
}
