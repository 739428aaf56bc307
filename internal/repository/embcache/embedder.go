package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/finsight/internal/db"
	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures cache keys and expiry.
type Options struct {
	KeyPrefix string
	Namespace   string // model set identifier; changing it invalidates old entries
	TTL         time.Duration
	CallTimeout time.Duration // bound on a shared inner call; zero means defaultCallTimeout
}

const defaultCallTimeout = 30 * time.Second

// CachedEmbedder caches the full vector triple of a text in a key-value store.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	prefix     string
	ttl        time.Duration
	timeout    time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	inflight   singleflight.Group
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	prefix := opts.KeyPrefix + "emb_cache:"
	if opts.Namespace != "" {
		prefix += opts.Namespace + ":"
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		prefix:     prefix,
		ttl:        opts.TTL,
		timeout:    timeout,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached representation or calls the inner embedder.
// Concurrent misses for the same text share one inner call. That call is
// detached from every caller's cancellation and bounded by the call timeout;
// each caller stops waiting only when its own context ends.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (vector.Representation, error) {
	key := c.cacheKey(text)

	if rep, ok := c.lookup(ctx, key); ok {
		c.incCache("hit")
		return rep, nil
	}
	c.incCache("miss")

	ch := c.inflight.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		rep, err := c.inner.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}
		c.remember(callCtx, key, rep)
		return rep, nil
	})

	select {
	case <-ctx.Done():
		return vector.Representation{}, fmt.Errorf("embed text: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return vector.Representation{}, fmt.Errorf("embed text: %w", res.Err)
		}
		if res.Shared {
			c.logger.Debug("Shared in-flight embedding", zap.String("key", key))
		}
		return res.Val.(vector.Representation), nil
	}
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) (vector.Representation, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return vector.Representation{}, false
	}
	if len(data) == 0 {
		return vector.Representation{}, false
	}

	var rep vector.Representation
	if err := msgpack.Unmarshal(data, &rep); err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return vector.Representation{}, false
	}
	if err := rep.Validate(); err != nil {
		c.logger.Warn("Discarding invalid cached embedding", zap.String("key", key), zap.Error(err))
		return vector.Representation{}, false
	}

	return rep, true
}

func (c *CachedEmbedder) remember(ctx context.Context, key string, rep vector.Representation) {
	data, err := msgpack.Marshal(rep)
	if err != nil {
		c.logger.Warn("Failed to encode embedding", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
