package request

import (
	"fmt"

	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 3
	MaxLimit       = 50
)

// Two-stage plan defaults.
const (
	DefaultPrefetchLimit = 20
	DefaultFusionLimit   = 15
	DefaultRRFK          = 60
)

// Query is a validated hybrid search request.
type Query struct {
	text    string
	filters filter.Expression
	limit   int
}

// New validates search parameters. limit must be positive.
func New(text string, filters filter.Expression, limit int) (Query, error) {
	if text == "" {
		return Query{}, fmt.Errorf("query is required")
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if limit <= 0 {
		return Query{}, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if limit > MaxLimit {
		return Query{}, fmt.Errorf("limit must not exceed %d, got %d", MaxLimit, limit)
	}
	return Query{text: text, filters: filters, limit: limit}, nil
}

// Text returns the query text.
func (q *Query) Text() string { return q.text }

// Filters returns the pre-filter expression.
func (q *Query) Filters() filter.Expression { return q.filters }

// Limit returns the maximum number of results.
func (q *Query) Limit() int { return q.limit }

// Plan holds the candidate budgets of the two retrieval stages.
type Plan struct {
	// PrefetchLimit is how many candidates each channel contributes to fusion.
	PrefetchLimit int
	// FusionLimit is how many fused candidates reach late-interaction rescoring.
	FusionLimit int
	// RRFK is the reciprocal rank fusion smoothing constant.
	RRFK int
}

// DefaultPlan returns the 20/15/k=60 plan.
func DefaultPlan() Plan {
	return Plan{
		PrefetchLimit: DefaultPrefetchLimit,
		FusionLimit:   DefaultFusionLimit,
		RRFK:          DefaultRRFK,
	}
}

// Validate checks the plan budgets.
func (p Plan) Validate() error {
	if p.PrefetchLimit <= 0 {
		return fmt.Errorf("prefetch limit must be positive")
	}
	if p.FusionLimit <= 0 {
		return fmt.Errorf("fusion limit must be positive")
	}
	if p.FusionLimit > 2*p.PrefetchLimit {
		return fmt.Errorf("fusion limit %d exceeds the union of both channels (%d)", p.FusionLimit, 2*p.PrefetchLimit)
	}
	if p.RRFK < 0 {
		return fmt.Errorf("rrf k must not be negative")
	}
	return nil
}
