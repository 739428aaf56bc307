package finsight

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg config.Config

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithQdrant stores and searches chunks in a Qdrant collection (gRPC port).
func WithQdrant(host string, port int, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Driver = config.DriverQdrant
		c.cfg.VectorStore.Qdrant.Host = host
		c.cfg.VectorStore.Qdrant.Port = port
		c.cfg.VectorStore.Qdrant.APIKey = apiKey
	})
}

// WithQdrantCollection overrides the collection name and optionally creates it on start.
func WithQdrantCollection(name string, create bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Qdrant.Collection = name
		c.cfg.VectorStore.Qdrant.CreateCollection = create
	})
}

// WithValkey stores chunks in a Valkey search index.
// The same connection backs the embedding cache when enabled.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Driver = config.DriverValkey
		c.cfg.Database.Driver = config.DriverValkey
		c.cfg.Database.Addrs = []string{addr}
		c.cfg.Database.Password = password
	})
}

// WithRedis stores chunks in a Redis Stack search index.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.VectorStore.Driver = config.DriverRedis
		c.cfg.Database.Driver = config.DriverRedis
		c.cfg.Database.Addrs = []string{addr}
		c.cfg.Database.Password = password
	})
}

// WithEmbedding sets the embedding sidecar base URL.
func WithEmbedding(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.BaseURL = baseURL
	})
}

// WithEmbeddingCache caches query embeddings in Valkey/Redis at addr.
// With a Valkey/Redis vector store, pass an empty addr to reuse its connection.
func WithEmbeddingCache(addr string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Cache.Enabled = true
		c.cfg.Embedding.Cache.TTLHours = int(ttl / time.Hour)
		if addr != "" {
			c.cfg.Database.Addrs = []string{addr}
		}
	})
}

// WithCompletion sets the OpenAI-compatible completion credentials.
// An empty model keeps the default.
func WithCompletion(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Completion.APIKey = apiKey
		c.cfg.Completion.Model = model
	})
}

// WithCompletionBaseURL points the completion client at another OpenAI-compatible API.
func WithCompletionBaseURL(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Completion.BaseURL = baseURL
	})
}

// WithCompanies replaces the static company-name-to-ticker mapping.
// Order matters: the first name found in the query wins.
func WithCompanies(companies ...Company) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Resolver.Companies = c.cfg.Resolver.Companies[:0]
		for _, co := range companies {
			c.cfg.Resolver.Companies = append(c.cfg.Resolver.Companies, config.CompanyConfig{
				Name:   co.Name,
				Ticker: co.Ticker,
			})
		}
	})
}

// WithNewsSource sets the metadata source value the sentiment stream filters on.
func WithNewsSource(source string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Agent.NewsSource = source
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
