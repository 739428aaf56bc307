package finsight

import "github.com/kailas-cloud/finsight/internal/domain/analysis"

// Analysis result types, shared with the HTTP API.
type (
	Bundle         = analysis.Bundle
	Fundamental    = analysis.Fundamental
	Momentum       = analysis.Momentum
	Sentiment      = analysis.Sentiment
	Recommendation = analysis.Recommendation
)

// Company maps a company name to its ticker for the static resolver.
type Company struct {
	Name   string
	Ticker string
}

// SearchResult is a single retrieval hit.
type SearchResult struct {
	ID       string
	Score    float64 // normalized to (0, 1] within one result set
	RawScore float64 // late-interaction score before normalization
	Text     string
	Metadata map[string]any
}

// Answer is a retrieval-augmented answer with the metadata of its sources.
type Answer struct {
	Query    string
	Answer   string
	Metadata []map[string]any
}

// Passage is one pre-chunked text to embed and index.
type Passage struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// BatchResult is the outcome of one passage in IndexPassages.
type BatchResult struct {
	ID  string
	OK  bool
	Err error
}
