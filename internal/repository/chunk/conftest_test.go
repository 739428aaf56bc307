package chunk

import (
	"context"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kailas-cloud/finsight/internal/db"
	"github.com/kailas-cloud/finsight/internal/db/qdrant"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTagsFn  func(ctx context.Context, q *db.TagQuery) (*db.SearchResult, error)
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	delFn         func(ctx context.Context, key string) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchTags(ctx context.Context, q *db.TagQuery) (*db.SearchResult, error) {
	if m.searchTagsFn != nil {
		return m.searchTagsFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

type mockFusedStore struct {
	queryFn func(ctx context.Context, layout qdrant.Layout, q qdrant.FusedQuery) ([]qdrant.Point, error)
}

func (m *mockFusedStore) QueryFused(
	ctx context.Context, layout qdrant.Layout, q qdrant.FusedQuery,
) ([]qdrant.Point, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, layout, q)
	}
	return nil, nil
}

func testOptions() Options {
	return Options{
		KeyPrefix:       "finsight:",
		FilterKeys:      []string{"ticker", "form_type", "source"},
		DenseDimensions: 4,
		HNSWM:           16,
		HNSWEFConstruct: 200,
		SparsePool:      50,
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testOptions()), ms
}

func testLayout() qdrant.Layout {
	return qdrant.Layout{
		Dense:        "dense",
		Sparse:       "sparse",
		Multi:        "colbert",
		DenseDim:     4,
		MultiDim:     2,
		TextField:    "text",
		MetadataRoot: "metadata",
		IndexedKeys:  []string{"ticker", "form_type", "source"},
	}
}

func mustExpression(t *testing.T, m map[string]string) filter.Expression {
	t.Helper()
	e, err := filter.FromMap(m)
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	return e
}

func mustPack(t *testing.T, v any) string {
	t.Helper()
	b, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	return string(b)
}

func testSparse(indices []uint32, values []float32) vector.Sparse {
	return vector.Sparse{Indices: indices, Values: values}
}
