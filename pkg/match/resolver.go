package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/gsbingo17/csv-to-salesforce/pkg/logger"
	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// State tracks a mapping operation through the stage cascade
type State string

// Mapping operation states, in order
const (
	StateNotStarted   State = "not_started"
	StateFuzzyDone    State = "fuzzy_done"
	StateSemanticDone State = "semantic_done"
	StateLLMDone      State = "llm_done"
	StateResolved     State = "resolved"
)

// Thresholds configures the stage cascade
type Thresholds struct {
	Fuzzy    float64 // Minimum ratio for a direct fuzzy mapping
	Semantic float64 // Minimum cosine similarity for a semantic mapping
	LLMFloor float64 // Minimum confidence to accept an LLM proposal
	LowBand  float64 // Fuzzy scores at or above this (and below Fuzzy) enter the semantic stage
}

// Resolver orchestrates the fuzzy, semantic, and LLM stages into one mapping
// table. Optional stages are nil when disabled; an unavailable stage produces
// no candidates rather than a control-flow special case.
type Resolver struct {
	fuzzy      *FuzzyMatcher
	semantic   *SemanticMatcher
	llm        *LLMMatcher
	thresholds Thresholds
	log        *logger.Logger
}

// NewResolver creates a resolver. semantic and llm may be nil to disable
// those stages.
func NewResolver(semantic *SemanticMatcher, llm *LLMMatcher, thresholds Thresholds, log *logger.Logger) *Resolver {
	return &Resolver{
		fuzzy:      NewFuzzyMatcher(),
		semantic:   semantic,
		llm:        llm,
		thresholds: thresholds,
		log:        log,
	}
}

// operation is the per-call state of one mapping resolution
type operation struct {
	state     State
	columns   []string
	fields    []*salesforce.Field
	frozen    map[string]FieldMapping // Accepted mappings by source column, never reconsidered
	claimed   map[string]bool         // Target fields already claimed
	bestFuzzy map[string]float64      // Best fuzzy score per column, gating the semantic stage
}

// claim is one stage's candidate mapping for a column
type claim struct {
	column    string
	field     string
	score     float64
	rationale string
}

// Resolve runs the enabled stages in order and merges their frozen mappings
// into one table. Columns unresolved after all enabled stages remain
// explicitly unmapped. Identical inputs and configuration yield an identical
// table.
func (r *Resolver) Resolve(ctx context.Context, columns []string, fields []*salesforce.Field) (Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no source columns to map")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("target schema has no fields")
	}

	op := &operation{
		state:     StateNotStarted,
		columns:   columns,
		fields:    eligibleFields(fields),
		frozen:    make(map[string]FieldMapping),
		claimed:   make(map[string]bool),
		bestFuzzy: make(map[string]float64),
	}

	if len(op.fields) == 0 {
		return nil, fmt.Errorf("target schema has no mappable fields")
	}

	r.runFuzzy(op)
	op.state = StateFuzzyDone

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.runSemantic(ctx, op)
	op.state = StateSemanticDone

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.runLLM(ctx, op)
	op.state = StateLLMDone

	// Merge frozen mappings into one table, preserving column order
	table := make(Table, 0, len(op.columns))
	for _, col := range op.columns {
		if m, ok := op.frozen[col]; ok {
			table = append(table, m)
		} else {
			table = append(table, FieldMapping{SourceColumn: col})
		}
	}
	op.state = StateResolved

	r.log.Infof("Mapping resolved: %d of %d columns mapped", len(table.Mapped()), len(table))
	return table, nil
}

// runFuzzy scores every column against every field and freezes winners at or
// above the fuzzy threshold
func (r *Resolver) runFuzzy(op *operation) {
	var claims []claim
	for _, col := range op.columns {
		best := claim{column: col}
		for _, f := range op.fields {
			if score := r.fuzzy.Score(col, f); score > best.score {
				best.field = f.Name
				best.score = score
			}
		}
		op.bestFuzzy[col] = best.score

		if best.field != "" && best.score >= r.thresholds.Fuzzy {
			claims = append(claims, best)
		}
	}

	accepted := op.accept(claims, MethodFuzzy)
	r.log.Debugf("Fuzzy stage mapped %d of %d columns", accepted, len(op.columns))
}

// runSemantic scores the columns whose fuzzy score fell in the low-confidence
// band. An unavailable backend degrades to no candidates.
func (r *Resolver) runSemantic(ctx context.Context, op *operation) {
	if r.semantic == nil {
		return
	}

	var eligible []string
	for _, col := range op.columns {
		if _, done := op.frozen[col]; done {
			continue
		}
		score := op.bestFuzzy[col]
		if score >= r.thresholds.LowBand && score < r.thresholds.Fuzzy {
			eligible = append(eligible, col)
		}
	}
	if len(eligible) == 0 {
		return
	}

	candidates := op.unclaimedFields()
	scores, err := r.semantic.ScoreColumns(ctx, eligible, candidates)
	if err != nil {
		// Stage unavailable. Not an operation failure; later stages still run.
		r.log.Warnf("Semantic matching unavailable: %v", err)
		return
	}

	var claims []claim
	for _, col := range eligible {
		best := claim{column: col}
		for _, f := range candidates {
			if score := scores[col][f.Name]; score > best.score {
				best.field = f.Name
				best.score = score
			}
		}
		if best.field != "" && best.score >= r.thresholds.Semantic {
			claims = append(claims, best)
		}
	}

	accepted := op.accept(claims, MethodSemantic)
	r.log.Debugf("Semantic stage mapped %d of %d eligible columns", accepted, len(eligible))
}

// runLLM sends the still-unmapped columns to the reasoning service in one
// batched request. Every failure is soft: the operation completes with what
// earlier stages resolved.
func (r *Resolver) runLLM(ctx context.Context, op *operation) {
	if r.llm == nil {
		return
	}

	var unmapped []string
	for _, col := range op.columns {
		if _, done := op.frozen[col]; !done {
			unmapped = append(unmapped, col)
		}
	}
	if len(unmapped) == 0 {
		return
	}

	candidates := op.unclaimedFields()
	proposals, err := r.llm.Resolve(ctx, unmapped, candidates, op.columns)
	if err != nil {
		r.log.Warnf("LLM matching unavailable: %v", err)
		return
	}

	known := make(map[string]bool, len(candidates))
	for _, f := range candidates {
		known[f.Name] = true
	}

	var claims []claim
	for _, p := range proposals {
		if p.Field == "" || !known[p.Field] {
			continue
		}
		if p.Confidence < r.thresholds.LLMFloor {
			continue
		}
		claims = append(claims, claim{
			column:    p.Column,
			field:     p.Field,
			score:     p.Confidence,
			rationale: p.Rationale,
		})
	}

	accepted := op.accept(claims, MethodLLM)
	r.log.Debugf("LLM stage mapped %d of %d unmapped columns", accepted, len(unmapped))
}

// accept freezes stage claims, resolving target conflicts in favor of the
// higher score; losers stay unmapped and proceed to the next stage
func (op *operation) accept(claims []claim, method Method) int {
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].score > claims[j].score
	})

	accepted := 0
	for _, c := range claims {
		if op.claimed[c.field] {
			continue
		}
		if _, done := op.frozen[c.column]; done {
			continue
		}
		op.frozen[c.column] = FieldMapping{
			SourceColumn: c.column,
			TargetField:  c.field,
			Confidence:   c.score,
			Method:       method,
			Rationale:    c.rationale,
		}
		op.claimed[c.field] = true
		accepted++
	}
	return accepted
}

// unclaimedFields returns the candidate fields not yet claimed by a frozen
// mapping
func (op *operation) unclaimedFields() []*salesforce.Field {
	var fields []*salesforce.Field
	for _, f := range op.fields {
		if !op.claimed[f.Name] {
			fields = append(fields, f)
		}
	}
	return fields
}

// eligibleFields drops the system fields never considered for automatic
// mapping: the record ID (server-assigned) and the record type (set only
// through fixed overrides)
func eligibleFields(fields []*salesforce.Field) []*salesforce.Field {
	var eligible []*salesforce.Field
	for _, f := range fields {
		if f.Name == "Id" || f.Name == "RecordTypeId" {
			continue
		}
		eligible = append(eligible, f)
	}
	return eligible
}
