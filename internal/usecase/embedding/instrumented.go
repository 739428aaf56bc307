package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
	"github.com/kailas-cloud/finsight/internal/metrics"
)

// InstrumentedEmbedder wraps Embedder with dimension checks and logging.
// Transport metrics (requests, duration) are recorded in transport/fastembed.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	vectors  domain.VectorConfig
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. Zero dimensions in vectors disable the matching check.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider string, vectors domain.VectorConfig, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		vectors:  vectors,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder and verifies the channel dimensions.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (vector.Representation, error) {
	start := time.Now()

	rep, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return vector.Representation{}, fmt.Errorf("embed: %w", err)
	}

	if err := p.checkDimensions(rep); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.vectors.DenseModel, "dimension_mismatch").Inc()
		p.logger.Error("Embedding has unexpected shape",
			zap.String("provider", p.provider),
			zap.Error(err),
		)
		return vector.Representation{}, err
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.Duration("duration", duration),
		zap.Int("dense_dimensions", len(rep.Dense)),
		zap.Int("sparse_terms", rep.Sparse.Len()),
		zap.Int("multivector_tokens", len(rep.Multi)),
	)

	return rep, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (p *InstrumentedEmbedder) checkDimensions(rep vector.Representation) error {
	if want := p.vectors.DenseDimensions; want > 0 && len(rep.Dense) != want {
		return fmt.Errorf("%s vector has %d dimensions, want %d", p.vectors.DenseChannel, len(rep.Dense), want)
	}
	if want := p.vectors.MultiDimensions; want > 0 {
		for i, tok := range rep.Multi {
			if len(tok) != want {
				return fmt.Errorf("%s token %d has %d dimensions, want %d", p.vectors.MultiChannel, i, len(tok), want)
			}
		}
	}
	return nil
}
