// Package analysis runs the three analysis streams for a ticker and aggregates
// them into a single investment recommendation.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/analysis"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/ticker"
	"github.com/kailas-cloud/finsight/internal/logger"
	"github.com/kailas-cloud/finsight/internal/usecase/completion"
)

// Metadata keys and values the streams filter on.
const (
	keyTicker   = "ticker"
	keyFormType = "form_type"
	keySource   = "source"

	formAnnual    = "10-K"
	formQuarterly = "10-Q"

	// DefaultNewsSource is the source tag of ingested news articles.
	DefaultNewsSource = "news-provider"
)

// Schema names sent to the completion provider.
const (
	schemaFundamental    = "fundamental_analysis"
	schemaMomentum       = "momentum_analysis"
	schemaSentiment      = "sentiment_analysis"
	schemaRecommendation = "final_recommendation"
)

const contextSeparator = "\n\n"

// Options tunes the orchestrator.
type Options struct {
	NewsSource string
}

// Service is the multi-stream analysis orchestrator.
type Service struct {
	resolver   Resolver
	searcher   Searcher
	completer  domain.Completer
	newsSource string
}

// New creates an orchestrator.
func New(r Resolver, s Searcher, c domain.Completer, opts Options) *Service {
	if opts.NewsSource == "" {
		opts.NewsSource = DefaultNewsSource
	}
	return &Service{resolver: r, searcher: s, completer: c, newsSource: opts.NewsSource}
}

// stream describes one analysis stream: what to retrieve and which prompt to fill.
type stream struct {
	name    string
	filters map[string]string
	queries []string
	prompt  string
}

func (s *Service) streams(sym ticker.Symbol) (fundamental, momentum, sentiment stream) {
	t := sym.String()
	fundamental = stream{
		name:    domain.StreamFundamental,
		filters: map[string]string{keyTicker: t, keyFormType: formAnnual},
		queries: fundamentalQueries,
		prompt:  fundamentalPrompt,
	}
	momentum = stream{
		name:    domain.StreamMomentum,
		filters: map[string]string{keyTicker: t, keyFormType: formQuarterly},
		queries: momentumQueries,
		prompt:  momentumPrompt,
	}
	sentiment = stream{
		name:    domain.StreamSentiment,
		filters: map[string]string{keyTicker: t, keySource: s.newsSource},
		queries: []string{sentimentQuery(t)},
		prompt:  sentimentPrompt,
	}
	return fundamental, momentum, sentiment
}

// Analyze resolves the ticker in text, runs the fundamental, momentum and
// sentiment streams concurrently and aggregates them. The first stream error
// cancels the others and fails the whole call.
func (s *Service) Analyze(ctx context.Context, text string, limit int) (analysis.Bundle, error) {
	if _, err := request.New(text, filter.Expression{}, limit); err != nil {
		return analysis.Bundle{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	sym, err := s.resolver.Resolve(ctx, text)
	if err != nil {
		return analysis.Bundle{}, err
	}

	ctx, log := logger.With(ctx, zap.String("ticker", sym.String()))
	start := time.Now()

	fs, ms, ss := s.streams(sym)
	var (
		fundamental analysis.Fundamental
		momentum    analysis.Momentum
		sentiment   analysis.Sentiment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fundamental, err = runStream[analysis.Fundamental](gctx, s, fs, schemaFundamental, limit)
		return err
	})
	g.Go(func() error {
		var err error
		momentum, err = runStream[analysis.Momentum](gctx, s, ms, schemaMomentum, limit)
		return err
	})
	g.Go(func() error {
		var err error
		sentiment, err = runStream[analysis.Sentiment](gctx, s, ss, schemaSentiment, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Warn("Analysis stream failed", zap.Error(err))
		return analysis.Bundle{}, err
	}

	rec, err := s.aggregate(ctx, fundamental, momentum, sentiment)
	if err != nil {
		return analysis.Bundle{}, err
	}

	log.Info("Analysis completed",
		zap.String("action", rec.Action),
		zap.Float64("confidence", rec.Confidence),
		zap.Duration("took", time.Since(start)),
	)
	return analysis.Bundle{
		ID:                  uuid.New(),
		Query:               text,
		Ticker:              sym,
		Fundamental:         fundamental,
		Momentum:            momentum,
		Sentiment:           sentiment,
		FinalRecommendation: rec,
	}, nil
}

// runStream retrieves context for every stream query in order, then asks for T.
func runStream[T any](ctx context.Context, s *Service, st stream, schema string, limit int) (T, error) {
	var zero T
	log := logger.FromContext(ctx).With(zap.String("stream", st.name))

	filters, err := filter.FromMap(st.filters)
	if err != nil {
		return zero, domain.NewStreamError(st.name, domain.StageRetrieval, err)
	}

	var b strings.Builder
	chunks := 0
	for _, text := range st.queries {
		q, err := request.New(text, filters, limit)
		if err != nil {
			return zero, domain.NewStreamError(st.name, domain.StageRetrieval, err)
		}
		results, err := s.searcher.Search(ctx, &q)
		if err != nil {
			return zero, domain.NewStreamError(st.name, domain.StageRetrieval, err)
		}
		for _, r := range results {
			if b.Len() > 0 {
				b.WriteString(contextSeparator)
			}
			b.WriteString(r.Text())
			chunks++
		}
	}
	log.Debug("Stream context retrieved", zap.Int("chunks", chunks), zap.Int("queries", len(st.queries)))

	out, err := completion.Structured[T](ctx, s.completer, schema, streamPrompt(st.prompt, b.String()))
	if err != nil {
		return zero, domain.NewStreamError(st.name, domain.StageAnalysis, err)
	}
	return out, nil
}

func (s *Service) aggregate(
	ctx context.Context, f analysis.Fundamental, m analysis.Momentum, snt analysis.Sentiment,
) (analysis.Recommendation, error) {
	fj, err := analysis.Canonical(f)
	if err != nil {
		return analysis.Recommendation{}, fmt.Errorf("%w: %w", domain.ErrAggregation, err)
	}
	mj, err := analysis.Canonical(m)
	if err != nil {
		return analysis.Recommendation{}, fmt.Errorf("%w: %w", domain.ErrAggregation, err)
	}
	sj, err := analysis.Canonical(snt)
	if err != nil {
		return analysis.Recommendation{}, fmt.Errorf("%w: %w", domain.ErrAggregation, err)
	}

	rec, err := completion.Structured[analysis.Recommendation](ctx, s.completer, schemaRecommendation,
		aggregatePrompt(fj, mj, sj))
	if err != nil {
		return analysis.Recommendation{}, fmt.Errorf("%w: %w", domain.ErrAggregation, err)
	}
	return rec, nil
}
