package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/finsight/internal/domain"
)

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeInvalidFilter      ErrorCode = "invalid_filter"
	ErrorCodeTickerNotFound     ErrorCode = "ticker_not_found"
	ErrorCodeResolutionFailed   ErrorCode = "ticker_resolution_failed"
	ErrorCodeEmbeddingFailed    ErrorCode = "embedding_failed"
	ErrorCodeRetrievalFailed    ErrorCode = "retrieval_failed"
	ErrorCodeSchemaViolation    ErrorCode = "analysis_schema_violation"
	ErrorCodeAggregationFailed  ErrorCode = "aggregation_failed"
	ErrorCodeCompletionProvider ErrorCode = "completion_provider_error"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stream  string    `json:"stream,omitempty"`
	Stage   string    `json:"stage,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Matched in order: wrappers before the sentinels they may wrap.
var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrTickerNotFound, http.StatusBadRequest, ErrorCodeTickerNotFound),
	sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
	sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, ErrorCodeInvalidFilter),
	sentinelHandler(domain.ErrResolution, http.StatusBadGateway, ErrorCodeResolutionFailed),
	sentinelHandler(domain.ErrAggregation, http.StatusBadGateway, ErrorCodeAggregationFailed),
	sentinelHandler(domain.ErrAnalysisSchema, http.StatusBadGateway, ErrorCodeSchemaViolation),
	sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, ErrorCodeEmbeddingFailed),
	sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, ErrorCodeRetrievalFailed),
	sentinelHandler(domain.ErrCompletionProvider, http.StatusBadGateway, ErrorCodeCompletionProvider),
}

var sentinels = []error{
	domain.ErrTickerNotFound,
	domain.ErrInvalidRequest,
	domain.ErrInvalidFilter,
	domain.ErrResolution,
	domain.ErrAggregation,
	domain.ErrAnalysisSchema,
	domain.ErrEmbedding,
	domain.ErrRetrieval,
	domain.ErrCompletionProvider,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Stream failures also report which stream and stage broke.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := ErrorResponse{Code: code, Message: msg}
		var se *domain.StreamError
		if errors.As(err, &se) {
			resp.Stream = se.Stream
			resp.Stage = se.Stage
		}
		writeJSON(w, status, resp)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
