package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/db"
	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
	"github.com/kailas-cloud/finsight/internal/logger"
)

// Hash fields of a stored chunk.
const (
	FieldText        = "text"
	FieldMetadata    = "metadata"
	fieldDense       = "dense"
	fieldSparse      = "sparse"
	fieldSparseTerms = "sparse_terms"
	fieldColbert     = "colbert"
)

const termSeparator = ","

const (
	defaultSparsePool    = 200
	defaultSparseScanMax = 10000 // FT MAXSEARCHRESULTS default
)

// store is the consumer interface for the chunk repository (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchTags(ctx context.Context, q *db.TagQuery) (*db.SearchResult, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Options configures the chunk index layout.
type Options struct {
	KeyPrefix       string
	FilterKeys      []string // metadata keys indexed as TAG fields
	DenseDimensions int
	DenseFlat       bool // exact scan instead of HNSW
	HNSWM           int
	HNSWEFConstruct int
	SparsePool      int // page size when scanning tag-matched chunks
	SparseScanMax   int // upper bound on tag-matched chunks scored per query
	SparseTruncated prometheus.Counter
}

// Chunk is one indexed passage with its vectors.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
	Vectors  vector.Representation
}

// Repo implements per-channel candidate retrieval on a Valkey/Redis search index.
type Repo struct {
	store      store
	opts       Options
	filterKeys map[string]struct{}
}

// New creates a chunk repository.
func New(s store, opts Options) *Repo {
	keys := make(map[string]struct{}, len(opts.FilterKeys))
	for _, k := range opts.FilterKeys {
		keys[k] = struct{}{}
	}
	if opts.SparsePool <= 0 {
		opts.SparsePool = defaultSparsePool
	}
	if opts.SparseScanMax <= 0 {
		opts.SparseScanMax = defaultSparseScanMax
	}
	return &Repo{store: s, opts: opts, filterKeys: keys}
}

// Name identifies the backend in logs and metrics.
func (r *Repo) Name() string { return "valkey" }

func (r *Repo) indexName() string {
	return r.opts.KeyPrefix + "chunks:idx"
}

func (r *Repo) keyPrefix() string {
	return r.opts.KeyPrefix + "chunk:"
}

// EnsureIndex creates the chunk index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	b := db.NewIndex(r.indexName()).Prefix(r.keyPrefix())
	for _, k := range r.opts.FilterKeys {
		b.Tag(k)
	}
	b.TagList(fieldSparseTerms, termSeparator)
	if r.opts.DenseFlat {
		b.VectorFlat(fieldDense, r.opts.DenseDimensions, db.DistanceCosine)
	} else {
		b.VectorHNSW(fieldDense, r.opts.DenseDimensions, db.DistanceCosine, r.opts.HNSWM, r.opts.HNSWEFConstruct)
	}

	def, err := b.Build()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// DropIndex removes the chunk index. Stored chunks are kept and are indexed
// again by the next EnsureIndex. A missing index is not an error.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	return nil
}

// Delete removes one chunk. Deleting a missing chunk is not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.keyPrefix()+id); err != nil {
		return fmt.Errorf("delete chunk %s: %w", id, err)
	}
	return nil
}

// Upsert writes chunks in one pipeline.
func (r *Repo) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		fields, err := r.chunkToHash(&chunks[i])
		if err != nil {
			return fmt.Errorf("chunk %s: %w", chunks[i].ID, err)
		}
		items = append(items, db.HashSetItem{Key: r.keyPrefix() + chunks[i].ID, Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// DenseCandidates returns the top-k chunks by dense cosine similarity.
func (r *Repo) DenseCandidates(
	ctx context.Context, dense []float32, filters filter.Expression, k int,
) ([]result.Candidate, error) {
	if err := r.checkFilters(filters); err != nil {
		return nil, err
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		VectorField:  fieldDense,
		Filters:      filters,
		Vector:       dense,
		K:            k,
		ReturnFields: []string{FieldText, FieldMetadata, fieldColbert},
	})
	if err != nil {
		return nil, fmt.Errorf("dense knn: %w", err)
	}

	out := make([]result.Candidate, 0, len(res.Entries))
	for _, e := range res.Entries {
		c, err := r.entryToCandidate(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c.WithScores(result.Scores{Dense: e.Score}))
	}
	return out, nil
}

// SparseCandidates returns the top-k chunks by sparse dot product. The store
// narrows the pool to chunks sharing at least one term and returns it in pages;
// every page is scored here and only the running top-k is kept.
func (r *Repo) SparseCandidates(
	ctx context.Context, sparse vector.Sparse, filters filter.Expression, k int,
) ([]result.Candidate, error) {
	if sparse.Len() == 0 {
		return nil, nil
	}
	if err := r.checkFilters(filters); err != nil {
		return nil, err
	}

	terms := make([]string, sparse.Len())
	for i, idx := range sparse.Indices {
		terms[i] = strconv.FormatUint(uint64(idx), 10)
	}

	q := &db.TagQuery{
		IndexName:    r.indexName(),
		Field:        fieldSparseTerms,
		Tags:         terms,
		Filters:      filters,
		ReturnFields: []string{FieldText, FieldMetadata, fieldSparse, fieldColbert},
	}

	var top []scoredCandidate
	for q.Offset < r.opts.SparseScanMax {
		q.Limit = min(r.opts.SparsePool, r.opts.SparseScanMax-q.Offset)
		res, err := r.store.SearchTags(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("sparse terms: %w", err)
		}
		for _, e := range res.Entries {
			var doc vector.Sparse
			if err := msgpack.Unmarshal([]byte(e.Fields[fieldSparse]), &doc); err != nil {
				return nil, fmt.Errorf("decode sparse %s: %w", e.Key, err)
			}
			s := sparse.Dot(doc)
			if s <= 0 {
				continue
			}
			c, err := r.entryToCandidate(e)
			if err != nil {
				return nil, err
			}
			top = append(top, scoredCandidate{c: c, score: s})
		}
		top = keepTop(top, k)

		q.Offset += len(res.Entries)
		if len(res.Entries) < q.Limit || q.Offset >= res.Total {
			break
		}
		if q.Offset >= r.opts.SparseScanMax && res.Total > q.Offset {
			logger.FromContext(ctx).Warn("Sparse candidate scan truncated",
				zap.Int("matched", res.Total),
				zap.Int("scanned", q.Offset),
			)
			if r.opts.SparseTruncated != nil {
				r.opts.SparseTruncated.Inc()
			}
		}
	}

	out := make([]result.Candidate, len(top))
	for i, p := range top {
		out[i] = p.c.WithScores(result.Scores{Sparse: p.score})
	}
	return out, nil
}

type scoredCandidate struct {
	c     result.Candidate
	score float64
}

// keepTop orders by score, then id, and cuts to k.
func keepTop(pool []scoredCandidate, k int) []scoredCandidate {
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return pool[i].c.ID() < pool[j].c.ID()
	})
	if len(pool) > k {
		pool = pool[:k]
	}
	return pool
}

// checkFilters rejects conditions on metadata keys without a TAG field.
func (r *Repo) checkFilters(expr filter.Expression) error {
	for _, c := range expr.Must() {
		if _, ok := r.filterKeys[c.Key()]; !ok {
			return fmt.Errorf("%w: field %q is not indexed", domain.ErrInvalidFilter, c.Key())
		}
	}
	return nil
}

func (r *Repo) chunkToHash(c *Chunk) (map[string]string, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if err := c.Vectors.Validate(); err != nil {
		return nil, err
	}

	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	sparse, err := msgpack.Marshal(c.Vectors.Sparse)
	if err != nil {
		return nil, fmt.Errorf("encode sparse: %w", err)
	}
	multi, err := msgpack.Marshal(c.Vectors.Multi)
	if err != nil {
		return nil, fmt.Errorf("encode multivector: %w", err)
	}

	terms := make([]string, c.Vectors.Sparse.Len())
	for i, idx := range c.Vectors.Sparse.Indices {
		terms[i] = strconv.FormatUint(uint64(idx), 10)
	}

	fields := map[string]string{
		FieldText:        c.Text,
		FieldMetadata:    string(meta),
		fieldDense:       db.EncodeFloat32(c.Vectors.Dense),
		fieldSparse:      string(sparse),
		fieldSparseTerms: strings.Join(terms, termSeparator),
		fieldColbert:     string(multi),
	}
	for _, k := range r.opts.FilterKeys {
		if v, ok := c.Metadata[k]; ok {
			fields[k] = v
		}
	}
	return fields, nil
}

func (r *Repo) entryToCandidate(e db.SearchEntry) (result.Candidate, error) {
	id := strings.TrimPrefix(e.Key, r.keyPrefix())

	var meta map[string]any
	if raw := e.Fields[FieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return result.Candidate{}, fmt.Errorf("decode metadata %s: %w", id, err)
		}
	}

	var multi [][]float32
	if raw := e.Fields[fieldColbert]; raw != "" {
		if err := msgpack.Unmarshal([]byte(raw), &multi); err != nil {
			return result.Candidate{}, fmt.Errorf("decode multivector %s: %w", id, err)
		}
	}

	return result.NewCandidate(id, e.Fields[FieldText], meta, multi), nil
}
