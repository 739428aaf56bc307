// Package rag answers a question from retrieved filing and news chunks.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/logger"
	"github.com/kailas-cloud/finsight/internal/usecase/completion"
)

const answerPrompt = `Based on the following financial documents, answer the question.

Context:
{context}

Question: {query}

Answer:`

// ScoreKey is the metadata key carrying each source's normalized score.
const ScoreKey = "score"

// Searcher runs one hybrid retrieval.
type Searcher interface {
	Search(ctx context.Context, q *request.Query) ([]result.Result, error)
}

// Answer is a generated answer with the metadata of its sources.
type Answer struct {
	Query    string           `json:"query"`
	Answer   string           `json:"answer"`
	Metadata []map[string]any `json:"metadata"`
}

// Service produces retrieval-augmented answers.
type Service struct {
	searcher  Searcher
	completer domain.Completer
}

// New creates a RAG service.
func New(s Searcher, c domain.Completer) *Service {
	return &Service{searcher: s, completer: c}
}

// Answer retrieves up to limit chunks for text and asks the model to answer from them.
func (s *Service) Answer(ctx context.Context, text string, limit int) (Answer, error) {
	q, err := request.New(text, filter.Expression{}, limit)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	results, err := s.searcher.Search(ctx, &q)
	if err != nil {
		return Answer{}, err
	}

	texts := make([]string, 0, len(results))
	sources := make([]map[string]any, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text())
		meta := make(map[string]any, len(r.Metadata())+1)
		for k, v := range r.Metadata() {
			meta[k] = v
		}
		meta[ScoreKey] = r.Score()
		sources = append(sources, meta)
	}

	prompt := strings.NewReplacer(
		"{context}", strings.Join(texts, "\n\n"),
		"{query}", text,
	).Replace(answerPrompt)

	answer, err := completion.Text(ctx, s.completer, prompt)
	if err != nil {
		return Answer{}, err
	}

	logger.FromContext(ctx).Debug("RAG answer generated",
		zap.Int("sources", len(sources)),
		zap.Int("answer_len", len(answer)),
	)
	return Answer{Query: text, Answer: answer, Metadata: sources}, nil
}
