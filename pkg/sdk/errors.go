package finsight

import (
	"errors"

	"github.com/kailas-cloud/finsight/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrTickerNotFound     = domain.ErrTickerNotFound
	ErrResolution         = domain.ErrResolution
	ErrRetrieval          = domain.ErrRetrieval
	ErrEmbedding          = domain.ErrEmbedding
	ErrAnalysisSchema     = domain.ErrAnalysisSchema
	ErrAggregation        = domain.ErrAggregation
	ErrCompletionProvider = domain.ErrCompletionProvider
	ErrInvalidRequest     = domain.ErrInvalidRequest
	ErrInvalidFilter      = domain.ErrInvalidFilter
)

// ErrIndexingUnsupported is returned by IndexPassages on a Qdrant-backed client.
var ErrIndexingUnsupported = errors.New("finsight: passage indexing requires a valkey or redis vector store")

// StreamError identifies the analysis stream and stage behind an Analyze failure.
// Use errors.As() to extract it.
type StreamError = domain.StreamError
