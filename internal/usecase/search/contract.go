package search

import (
	"context"

	"github.com/kailas-cloud/finsight/internal/domain/search/filter"
	"github.com/kailas-cloud/finsight/internal/domain/search/request"
	"github.com/kailas-cloud/finsight/internal/domain/search/result"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

// Backend is a vector store adapter. It must also implement FusedSearcher or ChannelSearcher.
type Backend interface {
	Name() string
}

// FusedSearcher executes both retrieval stages inside the store and returns
// candidates ordered by late-interaction score, at most limit of them.
type FusedSearcher interface {
	SearchFused(
		ctx context.Context, vectors vector.Representation, filters filter.Expression,
		plan request.Plan, limit int,
	) ([]result.Candidate, error)
}

// ChannelSearcher answers single-channel top-k queries; fusion and reranking happen locally.
// Returned candidates must carry their multivector.
type ChannelSearcher interface {
	DenseCandidates(
		ctx context.Context, dense []float32, filters filter.Expression, k int,
	) ([]result.Candidate, error)

	SparseCandidates(
		ctx context.Context, sparse vector.Sparse, filters filter.Expression, k int,
	) ([]result.Candidate, error)
}

// Embedder vectorizes the query text into all three channels.
type Embedder interface {
	Embed(ctx context.Context, text string) (vector.Representation, error)
}
