package match

import (
	"context"
	"fmt"
	"math"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// Embedder computes fixed-size numeric embeddings for a batch of texts
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderHandle owns the shared embedding backend. The backend is built on
// first use and then read-only, so one handle is safe for concurrent use by
// multiple mapping operations. A failed load marks the stage unavailable; it
// never fails the mapping operation.
type EmbedderHandle struct {
	build func() (Embedder, error)

	once     sync.Once
	embedder Embedder
	loadErr  error
}

// NewEmbedderHandle creates a handle that lazily builds the backend on first
// use
func NewEmbedderHandle(build func() (Embedder, error)) *EmbedderHandle {
	return &EmbedderHandle{build: build}
}

// Get returns the shared embedder, loading it on the first call
func (h *EmbedderHandle) Get() (Embedder, error) {
	h.once.Do(func() {
		if h.build == nil {
			h.loadErr = fmt.Errorf("no embedding backend configured")
			return
		}
		h.embedder, h.loadErr = h.build()
	})
	return h.embedder, h.loadErr
}

// OpenAIEmbedder computes embeddings via an OpenAI-compatible endpoint,
// including local embedding servers reached through a BaseURL override
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder against an OpenAI-compatible endpoint
func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Embed embeds a batch of texts in one request
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// SemanticMatcher scores columns against fields by cosine similarity of their
// embeddings. The embedding backend is shared through the handle and loaded
// lazily on first use.
type SemanticMatcher struct {
	handle *EmbedderHandle
}

// NewSemanticMatcher creates a semantic matcher over a shared embedder handle
func NewSemanticMatcher(handle *EmbedderHandle) *SemanticMatcher {
	return &SemanticMatcher{handle: handle}
}

// Available reports whether the embedding backend loaded. The first call pays
// the one-time load cost.
func (m *SemanticMatcher) Available() bool {
	if m.handle == nil {
		return false
	}
	_, err := m.handle.Get()
	return err == nil
}

// ScoreColumns embeds the given columns and candidate fields in one batch and
// returns per-column, per-field cosine similarities. An unavailable backend
// returns nil scores and the load error; callers treat that as "no
// candidates", not a failure.
func (m *SemanticMatcher) ScoreColumns(ctx context.Context, columns []string, fields []*salesforce.Field) (map[string]map[string]float64, error) {
	if len(columns) == 0 || len(fields) == 0 {
		return nil, nil
	}

	embedder, err := m.handle.Get()
	if err != nil {
		return nil, err
	}

	// One batch: columns first, then field texts
	texts := make([]string, 0, len(columns)+len(fields))
	for _, col := range columns {
		texts = append(texts, Normalize(col))
	}
	for _, f := range fields {
		texts = append(texts, fmt.Sprintf("%s %s", f.Name, f.Label))
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	columnVecs := vectors[:len(columns)]
	fieldVecs := vectors[len(columns):]

	scores := make(map[string]map[string]float64, len(columns))
	for i, col := range columns {
		scores[col] = make(map[string]float64, len(fields))
		for j, f := range fields {
			scores[col][f.Name] = cosine(columnVecs[i], fieldVecs[j])
		}
	}
	return scores, nil
}

// cosine returns the cosine similarity of two vectors, 0 for degenerate input
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
