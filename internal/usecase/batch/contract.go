package batch

import (
	"context"

	"github.com/kailas-cloud/finsight/internal/domain/vector"
	"github.com/kailas-cloud/finsight/internal/repository/chunk"
)

// ChunkWriter persists embedded chunks.
type ChunkWriter interface {
	Upsert(ctx context.Context, chunks []chunk.Chunk) error
	Delete(ctx context.Context, id string) error
}

// Embedder vectorizes passage text into all three representations.
type Embedder interface {
	Embed(ctx context.Context, text string) (vector.Representation, error)
}
