package chunk

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/finsight/internal/db/qdrant"
	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

// fusedStore is the consumer interface for the Qdrant-backed repository.
type fusedStore interface {
	QueryFused(ctx context.Context, layout qdrant.Layout, q qdrant.FusedQuery) ([]qdrant.Point, error)
}

// FusedRepo runs the whole two-stage plan inside Qdrant.
type FusedRepo struct {
	store      fusedStore
	layout     qdrant.Layout
	filterKeys map[string]struct{}
}

// NewFused creates a repository over a Qdrant collection with the given layout.
func NewFused(s fusedStore, layout qdrant.Layout) *FusedRepo {
	keys := make(map[string]struct{}, len(layout.IndexedKeys))
	for _, k := range layout.IndexedKeys {
		keys[k] = struct{}{}
	}
	return &FusedRepo{store: s, layout: layout, filterKeys: keys}
}

// Name identifies the backend in logs and metrics.
func (r *FusedRepo) Name() string { return "qdrant" }

// SearchFused returns up to limit candidates ordered by late-interaction score.
func (r *FusedRepo) SearchFused(
	ctx context.Context, vectors vector.Representation, filters filter.Expression,
	plan request.Plan, limit int,
) ([]result.Candidate, error) {
	for _, c := range filters.Must() {
		if _, ok := r.filterKeys[c.Key()]; !ok {
			return nil, fmt.Errorf("%w: field %q is not indexed", domain.ErrInvalidFilter, c.Key())
		}
	}

	points, err := r.store.QueryFused(ctx, r.layout, qdrant.FusedQuery{
		Vectors:       vectors,
		Filters:       filters,
		PrefetchLimit: plan.PrefetchLimit,
		FusionLimit:   plan.FusionLimit,
		Limit:         limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fused query: %w", err)
	}

	out := make([]result.Candidate, 0, len(points))
	for _, p := range points {
		text, _ := p.Payload[r.layout.TextField].(string)
		meta, _ := p.Payload[r.layout.MetadataRoot].(map[string]any)
		c := result.NewCandidate(p.ID, text, meta, nil)
		out = append(out, c.WithScores(result.Scores{LateInteraction: p.Score}))
	}
	return out, nil
}
