package domain

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

// Embedder is the shared text vectorization contract between layers.
// One call yields all three representations for the same text.
type Embedder interface {
	Embed(ctx context.Context, text string) (vector.Representation, error)
}

// HealthChecker verifies an external dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (vector.Representation, error) {
	rep, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return vector.Representation{}, fmt.Errorf("instruction embed: %w", err)
	}
	return rep, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
