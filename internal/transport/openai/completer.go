package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/metrics"
)

// Response format modes.
const (
	FormatJSONSchema = "json_schema"
	FormatJSONObject = "json_object"
)

// temperature is sent instead of 0, which the request struct would omit as empty.
const temperature = math.SmallestNonzeroFloat32

// Completer is a chat completion provider using the OpenAI-compatible API (Groq, OpenAI).
type Completer struct {
	client    *openai.Client
	model     string
	format    string
	maxTokens int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// Config holds the completion provider settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	ResponseFormat    string  // json_schema (default) or json_object
	MaxTokens         int     // 0 = provider default
	RequestsPerSecond float64 // 0 = unlimited
	Burst             int
	Logger            *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	format := cfg.ResponseFormat
	if format == "" {
		format = FormatJSONSchema
	}

	return &Completer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		format:    format,
		maxTokens: cfg.MaxTokens,
		limiter:   limiter,
		logger:    cfg.Logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	chatReq, err := c.buildRequest(req)
	if err != nil {
		return "", err
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		c.logger.Warn("Completion request failed",
			zap.String("model", c.model),
			zap.String("schema", req.SchemaName),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProvider)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	domain.UsageFromContext(ctx).Add(resp.Usage.PromptTokens, resp.Usage.TotalTokens)
	if resp.Usage.TotalTokens > 0 {
		metrics.CompletionTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.CompletionTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	c.logger.Debug("Completion request completed",
		zap.String("model", c.model),
		zap.String("schema", req.SchemaName),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Completer) buildRequest(req domain.CompletionRequest) (openai.ChatCompletionRequest, error) {
	prompt := req.Prompt
	var format *openai.ChatCompletionResponseFormat

	if req.Schema != nil {
		switch c.format {
		case FormatJSONObject:
			schema, err := req.Schema.MarshalJSON()
			if err != nil {
				return openai.ChatCompletionRequest{}, fmt.Errorf("encode schema %s: %w", req.SchemaName, err)
			}
			prompt += "\n\nRespond only with a JSON object that conforms to this JSON schema:\n" + string(schema)
			format = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		default:
			format = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: true,
				},
			}
		}
	}

	return openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature:    temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: format,
	}, nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrCompletionProvider for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrCompletionProvider

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("completion request: %w: %w", wrap, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("completion API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("completion request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
