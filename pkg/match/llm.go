package match

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"

	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// Proposal is one LLM mapping suggestion
type Proposal struct {
	Column     string  `json:"column"`
	Field      string  `json:"field"` // Empty or "null" when the model declines to map
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ChatCompleter sends one prompt and returns the model's text response
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIChat completes prompts via an OpenAI-compatible chat endpoint
type OpenAIChat struct {
	client *openai.Client
	model  string
}

// NewOpenAIChat creates a chat completer against an OpenAI-compatible endpoint
func NewOpenAIChat(baseURL, apiKey, model string) *OpenAIChat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIChat{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends one chat completion request
func (c *OpenAIChat) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// LLMMatcher asks an external reasoning service to map the remaining columns.
// One batched request per mapping operation; column and field context only,
// never row data.
type LLMMatcher struct {
	chat    ChatCompleter
	timeout time.Duration
}

// NewLLMMatcher creates an LLM matcher with a per-operation request timeout
func NewLLMMatcher(chat ChatCompleter, timeout time.Duration) *LLMMatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMMatcher{chat: chat, timeout: timeout}
}

// Resolve requests mappings for the unmapped columns in one batched call.
// Any service or parse failure is returned to the caller, which treats it as
// "no candidates produced" rather than an operation failure.
func (m *LLMMatcher) Resolve(ctx context.Context, unmapped []string, candidates []*salesforce.Field, allColumns []string) ([]Proposal, error) {
	if len(unmapped) == 0 || len(candidates) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(unmapped, candidates, allColumns)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	response, err := m.chat.Complete(reqCtx, prompt)
	if err != nil {
		return nil, err
	}

	proposals, err := parseProposals(response)
	if err != nil {
		return nil, err
	}

	// Keep only proposals for columns we actually asked about
	asked := make(map[string]bool, len(unmapped))
	for _, col := range unmapped {
		asked[col] = true
	}
	filtered := proposals[:0]
	for _, p := range proposals {
		if asked[p.Column] {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// buildPrompt renders the batched mapping request
func buildPrompt(unmapped []string, candidates []*salesforce.Field, allColumns []string) (string, error) {
	type fieldContext struct {
		Name  string `json:"name"`
		Label string `json:"label"`
		Type  string `json:"type"`
	}

	fields := make([]fieldContext, len(candidates))
	for i, f := range candidates {
		fields[i] = fieldContext{Name: f.Name, Label: f.Label, Type: string(f.Type)}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"allSourceColumns": allColumns,
		"unmappedColumns":  unmapped,
		"candidateFields":  fields,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode mapping context: %w", err)
	}

	var b strings.Builder
	b.WriteString("You map spreadsheet columns to CRM fields. Given the context below, ")
	b.WriteString("propose a target field for each unmapped column, or null when no field fits.\n\n")
	b.WriteString("Context:\n")
	b.Write(payload)
	b.WriteString("\n\nRespond with only a JSON array, one element per unmapped column:\n")
	b.WriteString(`[{"column": "...", "field": "ApiNameOrNull", "confidence": 0.0, "rationale": "..."}]`)
	b.WriteString("\nUse null for the field when nothing fits. Confidence is in [0,1].")

	return b.String(), nil
}

// parseProposals decodes the model's JSON array, repairing malformed output
// before giving up
func parseProposals(response string) ([]Proposal, error) {
	text := extractJSONArray(response)

	var proposals []Proposal
	if err := json.Unmarshal([]byte(text), &proposals); err == nil {
		return cleanProposals(proposals), nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("malformed mapping response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &proposals); err != nil {
		return nil, fmt.Errorf("malformed mapping response after repair: %w", err)
	}
	return cleanProposals(proposals), nil
}

// extractJSONArray pulls the outermost array out of surrounding prose or
// markdown fences
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// cleanProposals normalizes model output quirks
func cleanProposals(proposals []Proposal) []Proposal {
	for i := range proposals {
		if strings.EqualFold(proposals[i].Field, "null") {
			proposals[i].Field = ""
		}
		if proposals[i].Confidence < 0 {
			proposals[i].Confidence = 0
		}
		if proposals[i].Confidence > 1 {
			proposals[i].Confidence = 1
		}
	}
	return proposals
}
