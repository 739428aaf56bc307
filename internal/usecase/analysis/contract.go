package analysis

import (
	"context"

	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/ticker"
)

// Resolver maps free-form text to a ticker.
type Resolver interface {
	Resolve(ctx context.Context, text string) (ticker.Symbol, error)
}

// Searcher runs one hybrid retrieval.
type Searcher interface {
	Search(ctx context.Context, q *request.Query) ([]result.Result, error)
}
