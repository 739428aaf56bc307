// Package completion turns free-form chat completions into typed, validated values.
package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/analysis"
	"github.com/kailas-cloud/finsight/internal/metrics"
)

// Structured asks the provider for an instance of T. The JSON schema is derived
// from T's json, description and enum tags; the reply is checked against it and
// then against T's validate tags. Non-conforming replies are never retried.
func Structured[T any](ctx context.Context, c domain.Completer, name, prompt string) (T, error) {
	var out T

	schema, err := jsonschema.GenerateSchemaForType(out)
	if err != nil {
		return out, fmt.Errorf("schema for %s: %w", name, err)
	}

	raw, err := c.Complete(ctx, domain.CompletionRequest{
		Prompt:     prompt,
		SchemaName: name,
		Schema:     schema,
	})
	if err != nil {
		return out, fmt.Errorf("complete %s: %w", name, err)
	}

	if err := schema.Unmarshal(stripFence(raw), &out); err != nil {
		metrics.CompletionSchemaFailuresTotal.WithLabelValues(name).Inc()
		return out, fmt.Errorf("%w: %s: %w", domain.ErrAnalysisSchema, name, err)
	}
	if err := analysis.Validate(out); err != nil {
		metrics.CompletionSchemaFailuresTotal.WithLabelValues(name).Inc()
		return out, fmt.Errorf("%w: %s: %w", domain.ErrAnalysisSchema, name, err)
	}
	return out, nil
}

// Text asks the provider for a free-form answer.
func Text(ctx context.Context, c domain.Completer, prompt string) (string, error) {
	raw, err := c.Complete(ctx, domain.CompletionRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("complete text: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// stripFence removes a surrounding markdown code fence that some models add in json_object mode.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
