package qdrant

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

// FusedQuery is the full two-stage plan executed in one server round-trip.
type FusedQuery struct {
	Vectors       vector.Representation
	Filters       filter.Expression
	PrefetchLimit int
	FusionLimit   int
	Limit         int
}

// Point is a scored hit with its payload decoded to plain Go values.
type Point struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// QueryFused prefetches dense and sparse candidates, fuses them with RRF and
// rescores the fused set against the multivector channel.
func (s *Store) QueryFused(ctx context.Context, layout Layout, q FusedQuery) ([]Point, error) {
	req, err := buildFusedQuery(s.collection, layout, q)
	if err != nil {
		return nil, err
	}
	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.collection, err)
	}

	out := make([]Point, 0, len(points))
	for _, p := range points {
		out = append(out, Point{
			ID:      pointID(p.GetId()),
			Score:   float64(p.GetScore()),
			Payload: structToMap(p.GetPayload()),
		})
	}
	return out, nil
}

func buildFusedQuery(collection string, layout Layout, q FusedQuery) (*qdrant.QueryPoints, error) {
	if len(q.Vectors.Dense) == 0 || len(q.Vectors.Multi) == 0 {
		return nil, fmt.Errorf("dense and multivector query vectors are required")
	}
	if q.PrefetchLimit <= 0 || q.FusionLimit <= 0 || q.Limit <= 0 {
		return nil, fmt.Errorf("limits must be positive")
	}

	flt := buildFilter(layout.MetadataRoot, q.Filters)
	prefetchLimit := uint64(q.PrefetchLimit)

	channels := []*qdrant.PrefetchQuery{{
		Query:  qdrant.NewQuery(q.Vectors.Dense...),
		Using:  qdrant.PtrOf(layout.Dense),
		Filter: flt,
		Limit:  qdrant.PtrOf(prefetchLimit),
	}}
	// a query without known terms has an empty sparse vector; the channel then contributes nothing
	if q.Vectors.Sparse.Len() > 0 {
		channels = append(channels, &qdrant.PrefetchQuery{
			Query:  qdrant.NewQuerySparse(q.Vectors.Sparse.Indices, q.Vectors.Sparse.Values),
			Using:  qdrant.PtrOf(layout.Sparse),
			Filter: flt,
			Limit:  qdrant.PtrOf(prefetchLimit),
		})
	}

	return &qdrant.QueryPoints{
		CollectionName: collection,
		Prefetch: []*qdrant.PrefetchQuery{{
			Prefetch: channels,
			Query:    qdrant.NewQueryFusion(qdrant.Fusion_RRF),
			Filter:   flt,
			Limit:    qdrant.PtrOf(uint64(q.FusionLimit)),
		}},
		Query:       qdrant.NewQueryMulti(q.Vectors.Multi),
		Using:       qdrant.PtrOf(layout.Multi),
		Filter:      flt,
		Limit:       qdrant.PtrOf(uint64(q.Limit)),
		WithPayload: qdrant.NewWithPayload(true),
	}, nil
}

// buildFilter maps equality predicates onto keyword matches under the metadata root.
func buildFilter(root string, expr filter.Expression) *qdrant.Filter {
	if expr.IsEmpty() {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(expr.Must()))
	for _, c := range expr.Must() {
		must = append(must, qdrant.NewMatch(payloadPath(root, c.Key()), c.Match()))
	}
	return &qdrant.Filter{Must: must}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func structToMap(fields map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		return structToMap(k.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		items := k.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = valueToAny(item)
		}
		return list
	default:
		return nil
	}
}
