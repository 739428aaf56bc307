package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
	"github.com/kailas-cloud/finsight/internal/logger"
	"github.com/kailas-cloud/finsight/internal/metrics"
)

// Retrieval stages used as metric labels.
const (
	stageEmbed    = "embed"
	stagePrefetch = "prefetch"
	stageRerank   = "rerank"
)

// Service is the hybrid retrieval engine: fused dense+sparse prefetch followed
// by multivector late-interaction reranking.
type Service struct {
	backend  string
	fused    FusedSearcher
	channels ChannelSearcher
	embed    Embedder
	plan     request.Plan
}

// New creates a search service. Backends implementing FusedSearcher run the
// whole plan server-side; otherwise the backend must implement ChannelSearcher.
func New(backend Backend, embed Embedder, plan request.Plan) (*Service, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	s := &Service{backend: backend.Name(), embed: embed, plan: plan}
	if f, ok := backend.(FusedSearcher); ok {
		s.fused = f
		return s, nil
	}
	if c, ok := backend.(ChannelSearcher); ok {
		s.channels = c
		return s, nil
	}
	return nil, fmt.Errorf("backend %s supports neither fused nor per-channel search", backend.Name())
}

// Plan returns the retrieval plan.
func (s *Service) Plan() request.Plan { return s.plan }

// Search returns at most q.Limit() results ordered by normalized score.
// An empty result is not an error.
func (s *Service) Search(ctx context.Context, q *request.Query) ([]result.Result, error) {
	vecs, err := s.embedQuery(ctx, q.Text())
	if err != nil {
		return nil, err
	}

	var ranked []result.Candidate
	if s.fused != nil {
		ranked, err = s.searchFused(ctx, q, vecs)
	} else {
		ranked, err = s.searchLocal(ctx, q, vecs)
	}
	if err != nil {
		metrics.RetrievalErrorsTotal.WithLabelValues(s.backend, stagePrefetch).Inc()
		if errors.Is(err, domain.ErrInvalidFilter) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}

	results, dropped := normalize(ranked)
	if dropped > 0 {
		metrics.RetrievalDroppedTotal.WithLabelValues(s.backend).Add(float64(dropped))
		logger.FromContext(ctx).Info("Dropped candidates without late-interaction score",
			zap.String("backend", s.backend),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(results)),
		)
	}

	logger.FromContext(ctx).Debug("Hybrid search completed",
		zap.String("backend", s.backend),
		zap.Int("filters", len(q.Filters().Must())),
		zap.Int("limit", q.Limit()),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (s *Service) embedQuery(ctx context.Context, text string) (vector.Representation, error) {
	start := time.Now()
	vecs, err := s.embed.Embed(ctx, text)
	s.observe(stageEmbed, start)
	if err != nil {
		metrics.RetrievalErrorsTotal.WithLabelValues(s.backend, stageEmbed).Inc()
		return vector.Representation{}, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(vecs.Dense) == 0 || len(vecs.Multi) == 0 {
		metrics.RetrievalErrorsTotal.WithLabelValues(s.backend, stageEmbed).Inc()
		return vector.Representation{}, fmt.Errorf("%w: query representation is incomplete", domain.ErrEmbedding)
	}
	return vecs, nil
}

func (s *Service) searchFused(
	ctx context.Context, q *request.Query, vecs vector.Representation,
) ([]result.Candidate, error) {
	start := time.Now()
	ranked, err := s.fused.SearchFused(ctx, vecs, q.Filters(), s.plan, q.Limit())
	s.observe(stagePrefetch, start)
	if err != nil {
		return nil, fmt.Errorf("fused search: %w", err)
	}
	orderByLateInteraction(ranked)
	if len(ranked) > q.Limit() {
		ranked = ranked[:q.Limit()]
	}
	s.count(stageRerank, len(ranked))
	return ranked, nil
}

func (s *Service) searchLocal(
	ctx context.Context, q *request.Query, vecs vector.Representation,
) ([]result.Candidate, error) {
	start := time.Now()
	dense, err := s.channels.DenseCandidates(ctx, vecs.Dense, q.Filters(), s.plan.PrefetchLimit)
	if err != nil {
		return nil, fmt.Errorf("dense candidates: %w", err)
	}
	sparse, err := s.channels.SparseCandidates(ctx, vecs.Sparse, q.Filters(), s.plan.PrefetchLimit)
	if err != nil {
		return nil, fmt.Errorf("sparse candidates: %w", err)
	}
	fused := fuseRRF(dense, sparse, s.plan.RRFK, s.plan.FusionLimit)
	s.observe(stagePrefetch, start)
	s.count(stagePrefetch, len(fused))

	start = time.Now()
	ranked := rerank(vecs.Multi, fused)
	if len(ranked) > q.Limit() {
		ranked = ranked[:q.Limit()]
	}
	s.observe(stageRerank, start)
	s.count(stageRerank, len(ranked))
	return ranked, nil
}

func (s *Service) observe(stage string, start time.Time) {
	metrics.RetrievalStageDuration.WithLabelValues(s.backend, stage).Observe(time.Since(start).Seconds())
}

func (s *Service) count(stage string, n int) {
	metrics.RetrievalCandidates.WithLabelValues(s.backend, stage).Observe(float64(n))
}
