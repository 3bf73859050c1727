package normalizer

import (
	"context"
	"fmt"
	"sort"

	"infomap/internal/embedding"
	"infomap/internal/logging"
	"infomap/internal/schema"
)

// Candidate is the resolved match for one target schema entry.
// Input is empty when no input column met the confidence floor.
type Candidate struct {
	Target     string
	Input      string
	Confidence float64
}

// Result is the output of one Match call.
type Result struct {
	// Candidates holds exactly one entry per target schema item, in schema
	// order.
	Candidates []Candidate

	// Unmatched lists input headers not claimed by any target.
	Unmatched []string
}

// Candidate returns the resolved candidate for a target name, or nil.
func (r *Result) Candidate(target string) *Candidate {
	for i := range r.Candidates {
		if r.Candidates[i].Target == target {
			return &r.Candidates[i]
		}
	}
	return nil
}

// NormalizeError wraps embedding-service failures so callers can distinguish
// them from execution failures. A NormalizeError skips the sheet; it never
// feeds the reflection loop.
type NormalizeError struct {
	Err error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("header normalization failed: %v", e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// Matcher resolves cleaned input headers onto the target schema.
type Matcher struct {
	schema *schema.TargetSchema
	engine embedding.Engine

	// synonymTexts holds every name and synonym string, aligned with
	// synonymTargets which maps each entry back to its schema item index.
	synonymTexts   []string
	synonymTargets []int
}

// NewMatcher builds the synonym index for a schema.
// Each target name maps to itself plus every synonym parsed from its
// description.
func NewMatcher(s *schema.TargetSchema, engine embedding.Engine) *Matcher {
	m := &Matcher{schema: s, engine: engine}
	for i := range s.Items {
		m.synonymTexts = append(m.synonymTexts, s.Items[i].Name)
		m.synonymTargets = append(m.synonymTargets, i)
		for _, syn := range s.Items[i].Synonyms() {
			m.synonymTexts = append(m.synonymTexts, syn)
			m.synonymTargets = append(m.synonymTargets, i)
		}
	}
	return m
}

// scoredPair is one (target, input) cell of the score matrix.
type scoredPair struct {
	score  float64
	target int
	input  int
}

// Match computes a one-to-one assignment of input headers to schema items.
//
// Scores are the maximum cosine similarity across a target's synonyms.
// Assignment is greedy over all pairs in descending score order, so the
// globally highest-confidence pairs win and no input header is ever claimed
// by two targets.
func (m *Matcher) Match(ctx context.Context, inputHeaders []string, minConfidence float64) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryNormalizer, "Match")
	defer timer.Stop()

	if len(inputHeaders) == 0 {
		return nil, &NormalizeError{Err: fmt.Errorf("no input headers")}
	}

	synonymVecs, err := m.engine.EmbedBatch(ctx, m.synonymTexts)
	if err != nil {
		return nil, &NormalizeError{Err: fmt.Errorf("embedding schema synonyms: %w", err)}
	}
	inputVecs, err := m.engine.EmbedBatch(ctx, inputHeaders)
	if err != nil {
		return nil, &NormalizeError{Err: fmt.Errorf("embedding input headers: %w", err)}
	}

	simMatrix, err := embedding.SimilarityMatrix(synonymVecs, inputVecs)
	if err != nil {
		return nil, &NormalizeError{Err: err}
	}

	// Collapse synonym rows: score[target][input] is the best similarity
	// across all of the target's synonyms.
	numTargets := len(m.schema.Items)
	scores := make([][]float64, numTargets)
	for t := range scores {
		scores[t] = make([]float64, len(inputHeaders))
		for j := range scores[t] {
			scores[t][j] = -1
		}
	}
	for row, target := range m.synonymTargets {
		for j := range inputHeaders {
			if simMatrix[row][j] > scores[target][j] {
				scores[target][j] = simMatrix[row][j]
			}
		}
	}

	// Greedy one-to-one resolution over the score-sorted pair list.
	var pairs []scoredPair
	for t := 0; t < numTargets; t++ {
		for j := range inputHeaders {
			if scores[t][j] >= minConfidence {
				pairs = append(pairs, scoredPair{score: scores[t][j], target: t, input: j})
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].score != pairs[b].score {
			return pairs[a].score > pairs[b].score
		}
		if pairs[a].target != pairs[b].target {
			return pairs[a].target < pairs[b].target
		}
		return pairs[a].input < pairs[b].input
	})

	assignedTarget := make([]bool, numTargets)
	assignedInput := make([]bool, len(inputHeaders))
	chosen := make([]*scoredPair, numTargets)
	for i := range pairs {
		p := &pairs[i]
		if assignedTarget[p.target] || assignedInput[p.input] {
			continue
		}
		assignedTarget[p.target] = true
		assignedInput[p.input] = true
		chosen[p.target] = p
	}

	result := &Result{Candidates: make([]Candidate, numTargets)}
	for t := 0; t < numTargets; t++ {
		c := Candidate{Target: m.schema.Items[t].Name}
		if chosen[t] != nil {
			c.Input = inputHeaders[chosen[t].input]
			c.Confidence = chosen[t].score
		}
		result.Candidates[t] = c
		logging.NormalizerDebug("'%s' -> '%s' (confidence: %.3f)", c.Input, c.Target, c.Confidence)
	}
	for j, h := range inputHeaders {
		if !assignedInput[j] {
			result.Unmatched = append(result.Unmatched, h)
		}
	}

	logging.Normalizer("Matched %d/%d targets, %d input headers unmatched",
		countMatched(result.Candidates), numTargets, len(result.Unmatched))
	return result, nil
}

func countMatched(candidates []Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.Input != "" {
			n++
		}
	}
	return n
}
