package finsight

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/app"
	"github.com/kailas-cloud/finsight/internal/domain"
	dombatch "github.com/kailas-cloud/finsight/internal/domain/batch"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/ticker"
	batchuc "github.com/kailas-cloud/finsight/internal/usecase/batch"
	raguc "github.com/kailas-cloud/finsight/internal/usecase/rag"
)

// DefaultLimit is the per-query retrieval limit used when a caller passes 0.
const DefaultLimit = 3

// Internal interfaces so tests can swap the use cases.
type analysisUseCase interface {
	Analyze(ctx context.Context, text string, limit int) (Bundle, error)
}

type searchUseCase interface {
	Search(ctx context.Context, q *request.Query) ([]result.Result, error)
}

type ragUseCase interface {
	Answer(ctx context.Context, text string, limit int) (raguc.Answer, error)
}

type tickerUseCase interface {
	Resolve(ctx context.Context, text string) (ticker.Symbol, error)
}

type batchUseCase interface {
	Upsert(ctx context.Context, items []batchuc.Passage) []dombatch.Result
	Delete(ctx context.Context, ids []string) []dombatch.Result
}

type indexManager interface {
	DropIndex(ctx context.Context) error
	EnsureIndex(ctx context.Context) error
}

// Client is the finsight SDK entry point.
type Client struct {
	analysisSvc analysisUseCase
	searchSvc   searchUseCase
	ragSvc      ragUseCase
	tickerSvc   tickerUseCase
	batchSvc    batchUseCase // nil on Qdrant
	index       indexManager // nil on Qdrant
	healthSvc   healthUseCase
	obs         *observer
	closeFn     func()
}

// New creates a Client, connects to the configured stores and checks readiness.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg := cc.cfg
	cfg.ApplyDefaults()
	if err := cfg.ValidateServices(); err != nil {
		return nil, fmt.Errorf("finsight: %w", err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	logger := cc.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("finsight: %w", err)
	}

	c := &Client{
		analysisSvc: a.Analysis,
		searchSvc:   a.Search,
		ragSvc:      a.RAG,
		tickerSvc:   a.Resolver,
		healthSvc:   a.Health,
		obs:         obs,
		closeFn:     a.Close,
	}
	// Avoid a typed nil in the interface.
	if a.Batch != nil {
		c.batchSvc = a.Batch
	}
	if a.Chunks != nil {
		c.index = a.Chunks
	}
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Analyze resolves the company in query and returns the three-stream analysis
// with a final recommendation. limit bounds the passages retrieved per query.
// Failures inside a stream unwrap to *StreamError.
func (c *Client) Analyze(ctx context.Context, query string, limit int) (_ Bundle, err error) {
	start := time.Now()
	defer func() { c.obs.observe("analyze", start, err) }()

	b, err := c.analysisSvc.Analyze(ctx, query, orDefault(limit))
	if err != nil {
		return Bundle{}, fmt.Errorf("analyze: %w", err)
	}
	return b, nil
}

// Search runs hybrid retrieval. filters are AND-ed equality predicates on metadata.
func (c *Client) Search(
	ctx context.Context, query string, limit int, filters map[string]string,
) (_ []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	expr, err := filter.FromMap(filters)
	if err != nil {
		return nil, fmt.Errorf("search: %w: %w", domain.ErrInvalidFilter, err)
	}
	q, err := request.New(query, expr, orDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("search: %w: %w", domain.ErrInvalidRequest, err)
	}

	results, err := c.searchSvc.Search(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID(),
			Score:    r.Score(),
			RawScore: r.RawScore(),
			Text:     r.Text(),
			Metadata: r.Metadata(),
		}
	}
	return out, nil
}

// Answer retrieves passages for query and asks the completion model to answer from them.
func (c *Client) Answer(ctx context.Context, query string, limit int) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("answer", start, err) }()

	a, err := c.ragSvc.Answer(ctx, query, orDefault(limit))
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	return Answer{Query: a.Query, Answer: a.Answer, Metadata: a.Metadata}, nil
}

// ResolveTicker returns the ticker for the company mentioned in text.
func (c *Client) ResolveTicker(ctx context.Context, text string) (_ string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("resolve_ticker", start, err) }()

	sym, err := c.tickerSvc.Resolve(ctx, text)
	if err != nil {
		return "", fmt.Errorf("resolve ticker: %w", err)
	}
	return sym.String(), nil
}

// IndexPassages embeds and stores pre-chunked passages.
// The returned slice is positional; a non-nil error means nothing was attempted.
func (c *Client) IndexPassages(ctx context.Context, passages []Passage) (_ []BatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index_passages", start, err) }()

	if c.batchSvc == nil {
		return nil, ErrIndexingUnsupported
	}

	items := make([]batchuc.Passage, len(passages))
	for i, p := range passages {
		items[i] = batchuc.Passage{ID: p.ID, Text: p.Text, Metadata: p.Metadata}
	}
	return toBatchResults(c.batchSvc.Upsert(ctx, items)), nil
}

// DeletePassages removes passages by ID.
func (c *Client) DeletePassages(ctx context.Context, ids []string) (_ []BatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_passages", start, err) }()

	if c.batchSvc == nil {
		return nil, ErrIndexingUnsupported
	}
	return toBatchResults(c.batchSvc.Delete(ctx, ids)), nil
}

// ResetIndex drops and recreates the search index over the stored passages,
// e.g. after changing the filter keys. Passages are kept.
func (c *Client) ResetIndex(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reset_index", start, err) }()

	if c.index == nil {
		return ErrIndexingUnsupported
	}
	if err := c.index.DropIndex(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	if err := c.index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	return nil
}

func toBatchResults(results []dombatch.Result) []BatchResult {
	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{ID: r.ID, OK: r.OK(), Err: r.Err}
	}
	return out
}

func orDefault(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	return limit
}
