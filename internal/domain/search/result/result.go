package result

import "fmt"

// Scores holds the per-channel scores a candidate collected on its way through the pipeline.
type Scores struct {
	Dense           float64 `json:"dense,omitempty"`
	Sparse          float64 `json:"sparse,omitempty"`
	Fused           float64 `json:"fused,omitempty"`
	LateInteraction float64 `json:"late_interaction,omitempty"`
}

// Candidate is a chunk returned by the vector store before final scoring.
type Candidate struct {
	id       string
	text     string
	metadata map[string]any
	scores   Scores
	multi    [][]float32
}

// NewCandidate creates a candidate. multi may be nil when the store rescored server-side.
func NewCandidate(id, text string, metadata map[string]any, multi [][]float32) Candidate {
	return Candidate{id: id, text: text, metadata: metadata, multi: multi}
}

// WithScores returns a copy of c carrying s.
func (c Candidate) WithScores(s Scores) Candidate {
	c.scores = s
	return c
}

// ID returns the chunk identifier.
func (c Candidate) ID() string { return c.id }

// Text returns the chunk text.
func (c Candidate) Text() string { return c.text }

// Metadata returns the chunk metadata.
func (c Candidate) Metadata() map[string]any { return c.metadata }

// MetadataString returns a metadata value rendered as a string, or "" when absent.
func (c Candidate) MetadataString(key string) string {
	v, ok := c.metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Scores returns the per-channel scores.
func (c Candidate) Scores() Scores { return c.scores }

// Multivector returns the token-level embedding of the chunk.
func (c Candidate) Multivector() [][]float32 { return c.multi }

// Result is a final, normalized search hit.
type Result struct {
	candidate Candidate
	raw       float64
	score     float64
}

// New creates a search result from a rescored candidate.
func New(c Candidate, raw, normalized float64) Result {
	return Result{candidate: c, raw: raw, score: normalized}
}

// ID returns the chunk identifier.
func (r Result) ID() string { return r.candidate.id }

// Text returns the chunk text.
func (r Result) Text() string { return r.candidate.text }

// Metadata returns the chunk metadata.
func (r Result) Metadata() map[string]any { return r.candidate.metadata }

// Score returns the normalized score in (0, 1].
func (r Result) Score() float64 { return r.score }

// RawScore returns the late-interaction score before normalization.
func (r Result) RawScore() float64 { return r.raw }

// Scores returns the per-channel scores of the underlying candidate.
func (r Result) Scores() Scores { return r.candidate.scores }
