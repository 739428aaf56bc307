package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/db"
	"github.com/kailas-cloud/finsight/internal/domain/vector"
)

type mockEmbedder struct {
	result vector.Representation
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (vector.Representation, error) {
	m.calls++
	return m.result, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func testOptions() Options {
	return Options{KeyPrefix: "finsight:", Namespace: "minilm-bm25-colbert", TTL: time.Hour}
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, testOptions(), nil, zap.NewNop())
	return ce, ms
}

func testRepresentation(first float32) vector.Representation {
	return vector.Representation{
		Dense:  []float32{first, 0.2, 0.3},
		Sparse: vector.Sparse{Indices: []uint32{5, 9}, Values: []float32{1.5, 0.5}},
		Multi:  [][]float32{{1, 0}, {0, 1}},
	}
}
