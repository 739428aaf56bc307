package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/analysis"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/ticker"
	healthuc "github.com/kailas-cloud/finsight/internal/usecase/health"
	raguc "github.com/kailas-cloud/finsight/internal/usecase/rag"
)

// --- Fakes ---

type fakeAnalyzer struct {
	bundle    analysis.Bundle
	err       error
	tokens    []int // simulated completion calls, total tokens each
	lastText  string
	lastLimit int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string, limit int) (analysis.Bundle, error) {
	f.lastText, f.lastLimit = text, limit
	for _, n := range f.tokens {
		domain.UsageFromContext(ctx).Add(n/2, n)
	}
	return f.bundle, f.err
}

type fakeSearcher struct {
	results []result.Result
	err     error
	last    *request.Query
}

func (f *fakeSearcher) Search(_ context.Context, q *request.Query) ([]result.Result, error) {
	f.last = q
	return f.results, f.err
}

type fakeAnswerer struct {
	answer raguc.Answer
	err    error
}

func (f *fakeAnswerer) Answer(_ context.Context, text string, _ int) (raguc.Answer, error) {
	if f.err != nil {
		return raguc.Answer{}, f.err
	}
	a := f.answer
	a.Query = text
	return a, nil
}

type fakeHealth struct {
	report healthuc.Report
}

func (f fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type fixture struct {
	analyzer *fakeAnalyzer
	searcher *fakeSearcher
	answerer *fakeAnswerer
	health   fakeHealth
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		analyzer: &fakeAnalyzer{},
		searcher: &fakeSearcher{},
		answerer: &fakeAnswerer{},
		health: fakeHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentVectorStore: healthuc.CheckOK},
		}},
	}
	f.build()
	return f
}

func (f *fixture) build() {
	srv := NewServer(f.analyzer, f.searcher, f.answerer, f.health)
	f.handler = NewRouter(srv, RouterConfig{}, zap.NewNop())
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestRoot(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "GET", "/", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "online" {
		t.Errorf("body = %v", body)
	}
}

func TestAgent_OK(t *testing.T) {
	f := newFixture(t)
	f.analyzer.bundle = analysis.Bundle{
		Query:               "Should I invest in Apple?",
		Ticker:              ticker.Symbol("AAPL"),
		FinalRecommendation: analysis.Recommendation{Action: "HOLD"},
	}

	rr := f.do(t, "POST", "/agent", `{"query":"Should I invest in Apple?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if f.analyzer.lastLimit != request.DefaultLimit {
		t.Errorf("default limit = %d, want %d", f.analyzer.lastLimit, request.DefaultLimit)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var got map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["ticker"] != "AAPL" {
		t.Errorf("ticker = %v", got["ticker"])
	}
	rec, _ := got["final_recommendation"].(map[string]any)
	if rec["action"] != "HOLD" {
		t.Errorf("final_recommendation = %v", got["final_recommendation"])
	}
}

func TestAgent_CompletionUsageHeaders(t *testing.T) {
	f := newFixture(t)
	f.analyzer.tokens = []int{100, 120, 80, 200}

	rr := f.do(t, "POST", "/agent", `{"query":"Should I invest in Apple?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("X-Completion-Tokens"); got != "500" {
		t.Errorf("X-Completion-Tokens = %q, want 500", got)
	}
	if got := rr.Header().Get("X-Completion-Calls"); got != "4" {
		t.Errorf("X-Completion-Calls = %q, want 4", got)
	}
}

func TestAgent_NoUsageHeadersWithoutCalls(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "POST", "/agent", `{"query":"Should I invest in Apple?"}`)
	if rr.Header().Get("X-Completion-Tokens") != "" {
		t.Error("usage header must be absent when no completion ran")
	}
}

func TestAgent_ExplicitLimit(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "POST", "/agent", `{"query":"tesla","limit":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.analyzer.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", f.analyzer.lastLimit)
	}
}

func TestAgent_BadRequests(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{"query":`, `{"query":"x","limit":0}`, `{"query":"x","limit":-1}`} {
		rr := f.do(t, "POST", "/agent", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestAgent_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
		stream string
	}{
		{"ticker not found", domain.ErrTickerNotFound, http.StatusBadRequest, ErrorCodeTickerNotFound, ""},
		{"invalid request", fmt.Errorf("%w: query is required", domain.ErrInvalidRequest),
			http.StatusBadRequest, ErrorCodeValidationFailed, ""},
		{"resolution", fmt.Errorf("%w: %w", domain.ErrResolution, domain.ErrCompletionProvider),
			http.StatusBadGateway, ErrorCodeResolutionFailed, ""},
		{"momentum schema",
			domain.NewStreamError(domain.StreamMomentum, domain.StageAnalysis,
				fmt.Errorf("%w: momentum_analysis: bad enum", domain.ErrAnalysisSchema)),
			http.StatusBadGateway, ErrorCodeSchemaViolation, domain.StreamMomentum},
		{"retrieval",
			domain.NewStreamError(domain.StreamSentiment, domain.StageRetrieval,
				fmt.Errorf("%w: connection refused", domain.ErrRetrieval)),
			http.StatusBadGateway, ErrorCodeRetrievalFailed, domain.StreamSentiment},
		{"aggregation", fmt.Errorf("%w: %w", domain.ErrAggregation, domain.ErrAnalysisSchema),
			http.StatusBadGateway, ErrorCodeAggregationFailed, ""},
		{"embedding", fmt.Errorf("%w: timeout", domain.ErrEmbedding),
			http.StatusBadGateway, ErrorCodeEmbeddingFailed, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.analyzer.err = tc.err

			rr := f.do(t, "POST", "/agent", `{"query":"q"}`)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.code {
				t.Errorf("code = %s, want %s", resp.Code, tc.code)
			}
			if resp.Stream != tc.stream {
				t.Errorf("stream = %q, want %q", resp.Stream, tc.stream)
			}
		})
	}
}

func TestAgent_ErrorMessageHidesInternals(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = fmt.Errorf("%w: dial tcp 10.0.0.5:6334: refused", domain.ErrRetrieval)

	rr := f.do(t, "POST", "/agent", `{"query":"q"}`)
	resp := decodeError(t, rr)
	if resp.Message != domain.ErrRetrieval.Error() {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSearch_OK(t *testing.T) {
	f := newFixture(t)
	f.searcher.results = []result.Result{
		result.New(result.NewCandidate("c1", "Revenue grew", map[string]any{"ticker": "AAPL"}, nil), 5, 1),
		result.New(result.NewCandidate("c2", "Margins fell", map[string]any{"ticker": "AAPL"}, nil), 2.5, 0.5),
	}

	rr := f.do(t, "POST", "/search", `{"query":"apple revenue","limit":3,"filter":{"ticker":"AAPL","form_type":"10-K"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if n := len(f.searcher.last.Filters().Must()); n != 2 {
		t.Errorf("filters = %d, want 2", n)
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	if resp.Results[0].Score != 1 || resp.Results[1].Score != 0.5 {
		t.Errorf("scores = %v, %v", resp.Results[0].Score, resp.Results[1].Score)
	}
}

func TestSearch_EmptyResultIsOK(t *testing.T) {
	f := newFixture(t)
	f.searcher.results = []result.Result{}

	rr := f.do(t, "POST", "/search", `{"query":"nothing matches"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp SearchResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty results array, got %v", resp.Results)
	}
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{"query":""}`, `{"query":"x","limit":1000}`} {
		rr := f.do(t, "POST", "/search", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
	if f.searcher.last != nil {
		t.Error("searcher must not be called for invalid requests")
	}
}

func TestSearch_InvalidFilterFromStore(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = fmt.Errorf("%w: field %q is not indexed", domain.ErrInvalidFilter, "sector")

	rr := f.do(t, "POST", "/search", `{"query":"x","filter":{"sector":"tech"}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeInvalidFilter {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestRAG_OK(t *testing.T) {
	f := newFixture(t)
	f.answerer.answer = raguc.Answer{
		Answer:   "Revenue grew.",
		Metadata: []map[string]any{{"ticker": "AAPL", "score": 1.0}},
	}

	rr := f.do(t, "POST", "/rag", `{"query":"How is Apple doing?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got raguc.Answer
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Query != "How is Apple doing?" || got.Answer != "Revenue grew." {
		t.Errorf("answer = %+v", got)
	}
}

func TestRAG_ProviderError(t *testing.T) {
	f := newFixture(t)
	f.answerer.err = fmt.Errorf("complete text: %w", domain.ErrCompletionProvider)

	rr := f.do(t, "POST", "/rag", `{"query":"q"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	f.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentEmbedding: healthuc.CheckError},
	}
	f.build()
	rr = f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	var report healthuc.Report
	_ = json.NewDecoder(rr.Body).Decode(&report)
	if report.Checks[healthuc.ComponentEmbedding] != healthuc.CheckError {
		t.Errorf("checks = %v", report.Checks)
	}
}

func TestNotFoundRoute(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "GET", "/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeInternalError {
		t.Errorf("code = %s", resp.Code)
	}
}
