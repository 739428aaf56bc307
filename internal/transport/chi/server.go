package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/analysis"
	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/logger"
	healthuc "github.com/kailas-cloud/finsight/internal/usecase/health"
	raguc "github.com/kailas-cloud/finsight/internal/usecase/rag"
)

// Analyzer runs the multi-stream analysis.
type Analyzer interface {
	Analyze(ctx context.Context, text string, limit int) (analysis.Bundle, error)
}

// Searcher runs hybrid retrieval.
type Searcher interface {
	Search(ctx context.Context, q *request.Query) ([]result.Result, error)
}

// Answerer produces retrieval-augmented answers.
type Answerer interface {
	Answer(ctx context.Context, text string, limit int) (raguc.Answer, error)
}

// HealthReporter reports dependency health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// QueryRequest is the body of POST /agent and POST /rag.
type QueryRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query  string            `json:"query"`
	Limit  *int              `json:"limit,omitempty"`
	Filter map[string]string `json:"filter,omitempty"`
}

// SearchResultItem is one hit in a search response.
type SearchResultItem struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResponse is the body of a successful POST /search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []SearchResultItem `json:"results"`
}

// Server holds the HTTP handlers of the API.
type Server struct {
	analyzer Analyzer
	search   Searcher
	rag      Answerer
	health   HealthReporter
}

// NewServer creates an HTTP API server.
func NewServer(
	analyzer Analyzer,
	search Searcher,
	rag Answerer,
	health HealthReporter,
) *Server {
	return &Server{
		analyzer: analyzer,
		search:   search,
		rag:      rag,
		health:   health,
	}
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.Root)
	r.Post("/agent", s.Agent)
	r.Post("/search", s.Search)
	r.Post("/rag", s.RAG)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "online"})
}

// Agent handles POST /agent.
func (s *Server) Agent(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	limit, err := resolveLimit(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	bundle, err := s.analyzer.Analyze(ctx, req.Query, limit)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, bundle)
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	limit, err := resolveLimit(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	filters, err := filter.FromMap(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidFilter, err.Error())
		return
	}
	q, err := request.New(req.Query, filters, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), &q)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i, res := range results {
		items[i] = SearchResultItem{
			ID:       res.ID(),
			Score:    res.Score(),
			Text:     res.Text(),
			Metadata: res.Metadata(),
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: req.Query, Results: items})
}

// RAG handles POST /rag.
func (s *Server) RAG(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	limit, err := resolveLimit(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.rag.Answer(ctx, req.Query, limit)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, answer)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.TokenUsage) {
	if _, total, calls := usage.Snapshot(); calls > 0 {
		w.Header().Set("X-Completion-Tokens", strconv.Itoa(total))
		w.Header().Set("X-Completion-Calls", strconv.Itoa(calls))
	}
}

func resolveLimit(p *int) (int, error) {
	if p == nil {
		return request.DefaultLimit, nil
	}
	if *p <= 0 || *p > request.MaxLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", request.MaxLimit)
	}
	return *p, nil
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
