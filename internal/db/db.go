// Package db defines the storage contracts behind the passage index and the
// embedding cache. internal/db/redis implements them over Valkey Search or
// RediSearch; internal/db/qdrant covers the Qdrant backend separately.
package db

import (
	"context"
	"time"
)

// Store is everything the redis adapter offers. Repositories depend on the
// narrow interfaces below instead.
//
//nolint:interfacebloat // aggregate of the narrow interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one passage hash written by HSetMulti.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore writes and removes passage hashes.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	Del(ctx context.Context, key string) error
}

// KVStore backs the embedding cache. Get returns ErrKeyNotFound on a miss.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager handles the passage index lifecycle.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs the dense KNN and sparse term channels.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchTags(ctx context.Context, q *TagQuery) (*SearchResult, error)
}
