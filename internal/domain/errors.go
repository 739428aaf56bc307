package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTickerNotFound signals that no ticker could be determined for the query.
	ErrTickerNotFound = errors.New("ticker not found")
	// ErrResolution signals a ticker extraction provider failure or malformed output.
	ErrResolution = errors.New("ticker resolution failed")
	// ErrRetrieval signals a vector store failure.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrEmbedding signals an embedding provider failure.
	ErrEmbedding = errors.New("embedding failed")
	// ErrAnalysisSchema signals a completion that does not conform to the requested schema.
	ErrAnalysisSchema = errors.New("analysis schema violation")
	// ErrAggregation signals a failure of the final recommendation call.
	ErrAggregation = errors.New("aggregation failed")
	// ErrCompletionProvider signals a completion provider transport or API failure.
	ErrCompletionProvider = errors.New("completion provider error")
	// ErrInvalidRequest signals a malformed client request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidFilter signals an unsupported or malformed filter.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Analysis stream names.
const (
	StreamFundamental = "fundamental"
	StreamMomentum    = "momentum"
	StreamSentiment   = "sentiment"
)

// Stages within a stream.
const (
	StageRetrieval = "retrieval"
	StageAnalysis  = "analysis"
)

// StreamError records which analysis stream and stage failed.
type StreamError struct {
	Stream string
	Stage  string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stream %s: %v", e.Stream, e.Stage, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// NewStreamError wraps err with stream and stage context.
func NewStreamError(stream, stage string, err error) error {
	return &StreamError{Stream: stream, Stage: stage, Err: err}
}
