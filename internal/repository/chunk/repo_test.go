package chunk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/finsight/internal/db"
	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

func TestEnsureIndex_Creates(t *testing.T) {
	repo, ms := newTestRepo(t)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected CreateIndex call")
	}
	if created.Name != "finsight:chunks:idx" {
		t.Errorf("index name = %q", created.Name)
	}
	want := "FT.CREATE finsight:chunks:idx ON HASH PREFIX 1 finsight:chunk: SCHEMA " +
		"ticker TAG CASESENSITIVE form_type TAG CASESENSITIVE source TAG CASESENSITIVE " +
		"sparse_terms TAG SEPARATOR , " +
		"dense VECTOR HNSW 10 TYPE FLOAT32 DIM 4 DISTANCE_METRIC COSINE M 16 EF_CONSTRUCTION 200"
	if got := created.String(); got != want {
		t.Errorf("definition:\n got %s\nwant %s", got, want)
	}
}

func TestEnsureIndex_Flat(t *testing.T) {
	opts := testOptions()
	opts.DenseFlat = true
	ms := &mockStore{}
	repo := New(ms, opts)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dense := created.Fields[len(created.Fields)-1]
	if dense.VectorAlgo != db.VectorFlat {
		t.Errorf("algo = %q, want FLAT", dense.VectorAlgo)
	}
}

func TestEnsureIndex_Exists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Fatal("CreateIndex must not be called")
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RaceIgnored(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	var dropped string
	ms.dropIndexFn = func(_ context.Context, name string) error {
		dropped = name
		return nil
	}
	if err := repo.DropIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != "finsight:chunks:idx" {
		t.Errorf("dropped %q", dropped)
	}
}

func TestDropIndex_MissingIgnored(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.dropIndexFn = func(_ context.Context, _ string) error { return db.ErrIndexNotFound }
	if err := repo.DropIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)
	var key string
	ms.delFn = func(_ context.Context, k string) error {
		key = k
		return nil
	}
	if err := repo.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "finsight:chunk:c1" {
		t.Errorf("key = %q", key)
	}

	ms.delFn = func(_ context.Context, _ string) error { return errors.New("connection refused") }
	if err := repo.Delete(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert(t *testing.T) {
	repo, ms := newTestRepo(t)

	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, it []db.HashSetItem) error {
		items = it
		return nil
	}

	err := repo.Upsert(context.Background(), []Chunk{{
		ID:       "c1",
		Text:     "Revenue grew 8%",
		Metadata: map[string]string{"ticker": "AAPL", "form_type": "10-K", "page": "3"},
		Vectors: vector.Representation{
			Dense:  []float32{0.1, 0.2, 0.3, 0.4},
			Sparse: testSparse([]uint32{7, 42}, []float32{1, 0.5}),
			Multi:  [][]float32{{1, 0}, {0, 1}},
		},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	f := items[0].Fields
	if items[0].Key != "finsight:chunk:c1" {
		t.Errorf("key = %q", items[0].Key)
	}
	if f["ticker"] != "AAPL" || f["form_type"] != "10-K" {
		t.Errorf("tag fields not set: %v", f)
	}
	if _, ok := f["page"]; ok {
		t.Error("non-indexed metadata must not become a hash field")
	}
	if f["sparse_terms"] != "7,42" {
		t.Errorf("sparse_terms = %q", f["sparse_terms"])
	}
	if !strings.Contains(f["metadata"], `"page":"3"`) {
		t.Errorf("metadata = %q", f["metadata"])
	}
	if len(f["dense"]) != 16 {
		t.Errorf("dense blob len = %d, want 16", len(f["dense"]))
	}
}

func TestUpsert_InvalidVectors(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Upsert(context.Background(), []Chunk{{
		ID: "c1",
		Vectors: vector.Representation{
			Dense:  []float32{1},
			Sparse: testSparse([]uint32{1, 2}, []float32{1}),
		},
	}})
	if err == nil {
		t.Fatal("expected error for misaligned sparse vector")
	}
}

func TestDenseCandidates(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "finsight:chunks:idx" {
			t.Errorf("index = %q", q.IndexName)
		}
		if q.K != 20 {
			t.Errorf("k = %d", q.K)
		}
		if len(q.Filters.Must()) != 2 {
			t.Errorf("expected 2 filter conditions, got %d", len(q.Filters.Must()))
		}
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{{
				Key:   "finsight:chunk:c1",
				Score: 0.87,
				Fields: map[string]string{
					"text":     "Risk factors include supply chain exposure",
					"metadata": `{"ticker":"AAPL","form_type":"10-K"}`,
					"colbert":  mustPack(t, [][]float32{{1, 0}}),
				},
			}},
		}, nil
	}

	filters := mustExpression(t, map[string]string{"ticker": "AAPL", "form_type": "10-K"})
	got, err := repo.DenseCandidates(ctx, []float32{1, 0, 0, 0}, filters, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.ID() != "c1" {
		t.Errorf("id = %q", c.ID())
	}
	if c.Scores().Dense != 0.87 {
		t.Errorf("dense score = %f", c.Scores().Dense)
	}
	if c.MetadataString("ticker") != "AAPL" {
		t.Errorf("metadata ticker = %q", c.MetadataString("ticker"))
	}
	if len(c.Multivector()) != 1 {
		t.Errorf("multivector len = %d", len(c.Multivector()))
	}
}

func TestDenseCandidates_UnknownFilterKey(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		t.Fatal("store must not be queried")
		return nil, nil
	}

	filters := mustExpression(t, map[string]string{"sector": "tech"})
	_, err := repo.DenseCandidates(context.Background(), []float32{1}, filters, 20)
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestDenseCandidates_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("connection refused")
	}
	if _, err := repo.DenseCandidates(context.Background(), []float32{1}, filter.Expression{}, 20); err == nil {
		t.Fatal("expected error")
	}
}

func TestSparseCandidates_ScoresLocally(t *testing.T) {
	repo, ms := newTestRepo(t)

	entry := func(id string, s vector.Sparse) db.SearchEntry {
		return db.SearchEntry{
			Key: "finsight:chunk:" + id,
			Fields: map[string]string{
				"text":   "chunk " + id,
				"sparse": mustPack(t, s),
			},
		}
	}

	ms.searchTagsFn = func(_ context.Context, q *db.TagQuery) (*db.SearchResult, error) {
		if q.Field != "sparse_terms" {
			t.Errorf("field = %q", q.Field)
		}
		if strings.Join(q.Tags, ",") != "1,2" {
			t.Errorf("tags = %v", q.Tags)
		}
		if q.Limit != 50 {
			t.Errorf("pool = %d", q.Limit)
		}
		return &db.SearchResult{Entries: []db.SearchEntry{
			entry("low", testSparse([]uint32{1}, []float32{0.5})),
			entry("high", testSparse([]uint32{1, 2}, []float32{1, 1})),
			entry("mid", testSparse([]uint32{2}, []float32{1})),
			entry("zero", testSparse([]uint32{9}, []float32{3})),
		}}, nil
	}

	query := testSparse([]uint32{1, 2}, []float32{1, 2})
	got, err := repo.SparseCandidates(context.Background(), query, filter.Expression{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID() != "high" || got[1].ID() != "mid" {
		t.Errorf("order = [%s %s], want [high mid]", got[0].ID(), got[1].ID())
	}
	if got[0].Scores().Sparse != 3 {
		t.Errorf("top sparse score = %f, want 3", got[0].Scores().Sparse)
	}
}

func TestSparseCandidates_EmptyQuery(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTagsFn = func(_ context.Context, _ *db.TagQuery) (*db.SearchResult, error) {
		t.Fatal("store must not be queried")
		return nil, nil
	}
	got, err := repo.SparseCandidates(context.Background(), vector.Sparse{}, filter.Expression{}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}

func TestSparseCandidates_CorruptPayload(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTagsFn = func(_ context.Context, _ *db.TagQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Entries: []db.SearchEntry{{
			Key:    "finsight:chunk:c1",
			Fields: map[string]string{"sparse": "not-msgpack\xc1"},
		}}}, nil
	}
	_, err := repo.SparseCandidates(context.Background(), testSparse([]uint32{1}, []float32{1}), filter.Expression{}, 20)
	if err == nil {
		t.Fatal("expected decode error")
	}
}

// pagedTagStore serves total tag matches page by page; the last one scores highest.
func pagedTagStore(t *testing.T, total int, offsets *[]int) func(context.Context, *db.TagQuery) (*db.SearchResult, error) {
	t.Helper()
	docs := make([]db.SearchEntry, total)
	for i := range docs {
		weight := float32(1)
		if i == total-1 {
			weight = 100
		}
		docs[i] = db.SearchEntry{
			Key: fmt.Sprintf("finsight:chunk:d%03d", i),
			Fields: map[string]string{
				"text":   "passage",
				"sparse": mustPack(t, testSparse([]uint32{1}, []float32{weight})),
			},
		}
	}
	return func(_ context.Context, q *db.TagQuery) (*db.SearchResult, error) {
		*offsets = append(*offsets, q.Offset)
		end := min(q.Offset+q.Limit, total)
		if q.Offset >= end {
			return &db.SearchResult{Total: total}, nil
		}
		return &db.SearchResult{Total: total, Entries: docs[q.Offset:end]}, nil
	}
}

func TestSparseCandidates_ScansEveryPage(t *testing.T) {
	repo, ms := newTestRepo(t)
	var offsets []int
	ms.searchTagsFn = pagedTagStore(t, 300, &offsets)

	got, err := repo.SparseCandidates(context.Background(), testSparse([]uint32{1}, []float32{1}), filter.Expression{}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 candidates, got %d", len(got))
	}
	if got[0].ID() != "d299" || got[0].Scores().Sparse != 100 {
		t.Errorf("top = %s (%f), want d299 (100)", got[0].ID(), got[0].Scores().Sparse)
	}
	if fmt.Sprint(offsets) != "[0 50 100 150 200 250]" {
		t.Errorf("page offsets = %v", offsets)
	}
}

func TestSparseCandidates_ScanBoundCounted(t *testing.T) {
	truncated := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_sparse_truncated_total"})
	opts := testOptions()
	opts.SparseScanMax = 120
	opts.SparseTruncated = truncated
	ms := &mockStore{}
	repo := New(ms, opts)

	var offsets []int
	ms.searchTagsFn = pagedTagStore(t, 300, &offsets)

	got, err := repo.SparseCandidates(context.Background(), testSparse([]uint32{1}, []float32{1}), filter.Expression{}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 candidates, got %d", len(got))
	}
	if fmt.Sprint(offsets) != "[0 50 100]" {
		t.Errorf("page offsets = %v", offsets)
	}
	if v := testutil.ToFloat64(truncated); v != 1 {
		t.Errorf("truncated count = %v, want 1", v)
	}
}
