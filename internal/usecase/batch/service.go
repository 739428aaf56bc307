package batch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	dombatch "github.com/kailas-cloud/finsight/internal/domain/batch"
	"github.com/kailas-cloud/finsight/internal/logger"
	"github.com/kailas-cloud/finsight/internal/repository/chunk"
)

// MaxBatchSize is the maximum number of passages per batch.
const MaxBatchSize = 100

// Passage is one pre-chunked piece of text to index.
type Passage struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Service embeds passages and writes them to the chunk index with per-item results.
type Service struct {
	chunks       ChunkWriter
	embed        Embedder
	maxBatchSize int
}

// New creates a batch service.
func New(chunks ChunkWriter, embed Embedder) *Service {
	return &Service{chunks: chunks, embed: embed, maxBatchSize: MaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Upsert embeds every valid passage and stores them in a single pipeline.
// Results are positional: results[i] describes items[i].
func (s *Service) Upsert(ctx context.Context, items []Passage) []dombatch.Result {
	results := make([]dombatch.Result, len(items))

	if len(items) > s.maxBatchSize {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.ID
		}
		return dombatch.FailAll(ids, s.tooLarge())
	}

	valid := make([]chunk.Chunk, 0, len(items))
	validIdx := make([]int, 0, len(items))

	for i, item := range items {
		if err := validatePassage(item); err != nil {
			results[i] = dombatch.Failed(item.ID, err)
			continue
		}

		rep, err := s.embed.Embed(ctx, item.Text)
		if err != nil {
			err = fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
			// A cancelled context fails every remaining item.
			if ctx.Err() != nil {
				for j := i; j < len(items); j++ {
					results[j] = dombatch.Failed(items[j].ID, err)
				}
				return results
			}
			results[i] = dombatch.Failed(item.ID, err)
			continue
		}

		valid = append(valid, chunk.Chunk{
			ID:       item.ID,
			Text:     item.Text,
			Metadata: item.Metadata,
			Vectors:  rep,
		})
		validIdx = append(validIdx, i)
	}

	if len(valid) == 0 {
		return results
	}

	if err := s.chunks.Upsert(ctx, valid); err != nil {
		for _, i := range validIdx {
			results[i] = dombatch.Failed(items[i].ID, fmt.Errorf("%w: %w", domain.ErrRetrieval, err))
		}
		return results
	}

	for _, i := range validIdx {
		results[i] = dombatch.Succeeded(items[i].ID)
	}

	sum := dombatch.Summarize(results)
	logger.FromContext(ctx).Debug("Passages indexed",
		zap.Int("ok", sum.OK),
		zap.Int("failed", sum.Failed),
	)
	return results
}

// Delete removes passages by ID.
func (s *Service) Delete(ctx context.Context, ids []string) []dombatch.Result {
	if len(ids) > s.maxBatchSize {
		return dombatch.FailAll(ids, s.tooLarge())
	}

	results := make([]dombatch.Result, len(ids))

	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			results[i] = dombatch.Failed(id, fmt.Errorf("passage id is required: %w", domain.ErrInvalidRequest))
			continue
		}
		if err := s.chunks.Delete(ctx, id); err != nil {
			results[i] = dombatch.Failed(id, fmt.Errorf("delete: %w", err))
			continue
		}
		results[i] = dombatch.Succeeded(id)
	}

	return results
}

func (s *Service) tooLarge() error {
	return fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidRequest)
}

func validatePassage(p Passage) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("passage id is required: %w", domain.ErrInvalidRequest)
	}
	if strings.ContainsAny(p.ID, " \t\n") {
		return fmt.Errorf("passage id %q contains whitespace: %w", p.ID, domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("passage %s has no text: %w", p.ID, domain.ErrInvalidRequest)
	}
	return nil
}
