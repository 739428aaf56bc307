// Package fastembed is a client for the embedding sidecar that serves dense,
// sparse and late-interaction vectors for a text in one call.
package fastembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
	"github.com/kailas-cloud/finsight/internal/metrics"
	"github.com/kailas-cloud/finsight/internal/version"
)

const provider = "fastembed"

// Kinds of text; document and query embeddings differ for asymmetric models.
const (
	KindQuery    = "query"
	KindDocument = "document"
)

// Config holds the sidecar settings.
type Config struct {
	BaseURL string
	APIKey  string
	Kind    string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client calls POST {base_url}/embed.
type Client struct {
	baseURL string
	apiKey  string
	kind    string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a sidecar client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	kind := cfg.Kind
	if kind == "" {
		kind = KindQuery
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		kind:    kind,
		http:    &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

type embedRequest struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

type embedResponse struct {
	Dense  []float32 `json:"dense"`
	Sparse struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	} `json:"sparse"`
	Multivector [][]float32 `json:"multivector"`
	Model       string      `json:"model"`
}

// Embed implements domain.Embedder.
func (c *Client) Embed(ctx context.Context, text string) (vector.Representation, error) {
	body, err := json.Marshal(embedRequest{Text: text, Kind: c.kind})
	if err != nil {
		return vector.Representation{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return vector.Representation{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.fail("transport")
		return vector.Representation{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.fail("status")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return vector.Representation{}, fmt.Errorf("embed sidecar: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.fail("decode")
		return vector.Representation{}, fmt.Errorf("decode: %w", err)
	}

	rep := vector.Representation{
		Dense:  out.Dense,
		Sparse: vector.Sparse{Indices: out.Sparse.Indices, Values: out.Sparse.Values},
		Multi:  out.Multivector,
	}
	if err := rep.Validate(); err != nil {
		c.fail("invalid_response")
		return vector.Representation{}, fmt.Errorf("embed sidecar: %w", err)
	}

	model := out.Model
	if model == "" {
		model = "unknown"
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())

	return rep, nil
}

// HealthCheck calls GET {base_url}/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embed sidecar health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fail(errorType string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, "unknown", "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(provider, "unknown", errorType).Inc()
	c.logger.Debug("Embedding sidecar request failed", zap.String("error_type", errorType))
}

var _ domain.Embedder = (*Client)(nil)
