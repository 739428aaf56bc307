package finsight

import (
	"context"

	dombatch "github.com/kailas-cloud/finsight/internal/domain/batch"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/ticker"
	batchuc "github.com/kailas-cloud/finsight/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/finsight/internal/usecase/health"
	raguc "github.com/kailas-cloud/finsight/internal/usecase/rag"
)

// --- analysisUseCase mock ---

type mockAnalysisUC struct {
	analyzeFn func(ctx context.Context, text string, limit int) (Bundle, error)
}

func (m *mockAnalysisUC) Analyze(ctx context.Context, text string, limit int) (Bundle, error) {
	return m.analyzeFn(ctx, text, limit)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, q *request.Query) ([]result.Result, error)
}

func (m *mockSearchUC) Search(ctx context.Context, q *request.Query) ([]result.Result, error) {
	return m.searchFn(ctx, q)
}

// --- ragUseCase mock ---

type mockRagUC struct {
	answerFn func(ctx context.Context, text string, limit int) (raguc.Answer, error)
}

func (m *mockRagUC) Answer(ctx context.Context, text string, limit int) (raguc.Answer, error) {
	return m.answerFn(ctx, text, limit)
}

// --- tickerUseCase mock ---

type mockTickerUC struct {
	resolveFn func(ctx context.Context, text string) (ticker.Symbol, error)
}

func (m *mockTickerUC) Resolve(ctx context.Context, text string) (ticker.Symbol, error) {
	return m.resolveFn(ctx, text)
}

// --- batchUseCase mock ---

type mockBatchUC struct {
	upsertFn func(ctx context.Context, items []batchuc.Passage) []dombatch.Result
	deleteFn func(ctx context.Context, ids []string) []dombatch.Result
}

func (m *mockBatchUC) Upsert(ctx context.Context, items []batchuc.Passage) []dombatch.Result {
	return m.upsertFn(ctx, items)
}

func (m *mockBatchUC) Delete(ctx context.Context, ids []string) []dombatch.Result {
	return m.deleteFn(ctx, ids)
}

// --- indexManager mock ---

type mockIndex struct {
	calls   []string
	dropErr error
}

func (m *mockIndex) DropIndex(_ context.Context) error {
	m.calls = append(m.calls, "drop")
	return m.dropErr
}

func (m *mockIndex) EnsureIndex(_ context.Context) error {
	m.calls = append(m.calls, "ensure")
	return nil
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report {
	return m.report
}
