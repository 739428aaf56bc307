// Package qdrant wraps the Qdrant gRPC client for the chunk collection.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Config holds connection parameters for a Qdrant store.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Layout names the vector channels and indexed payload fields of the collection.
type Layout struct {
	Dense        string
	Sparse       string
	Multi        string
	DenseDim     uint64
	MultiDim     uint64
	TextField    string   // payload key holding the chunk text
	MetadataRoot string   // payload object holding filterable metadata
	IndexedKeys  []string // metadata keys with keyword payload indexes
}

// Store talks to one Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
}

// NewStore creates a gRPC client for the configured collection.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Store{client: client, collection: cfg.Collection}, nil
}

// Collection returns the collection name.
func (s *Store) Collection() string { return s.collection }

// HealthCheck verifies the server responds.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	return nil
}

// WaitForReady polls HealthCheck until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for qdrant: %w", ctx.Err())
		case <-ticker.C:
			if err := s.HealthCheck(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close releases the gRPC connection.
func (s *Store) Close() {
	_ = s.client.Close()
}

// EnsureCollection creates the collection and its keyword payload indexes when absent.
func (s *Store) EnsureCollection(ctx context.Context, layout Layout) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("collection exists: %w", err)
	}
	if exists {
		return false, nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			layout.Dense: {
				Size:     layout.DenseDim,
				Distance: qdrant.Distance_Cosine,
			},
			layout.Multi: {
				Size:     layout.MultiDim,
				Distance: qdrant.Distance_Cosine,
				MultivectorConfig: &qdrant.MultiVectorConfig{
					Comparator: qdrant.MultiVectorComparator_MaxSim,
				},
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			layout.Sparse: {},
		}),
	})
	if err != nil {
		return false, fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	for _, key := range layout.IndexedKeys {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      payloadPath(layout.MetadataRoot, key),
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return false, fmt.Errorf("create payload index %s: %w", key, err)
		}
	}
	return true, nil
}

func payloadPath(root, key string) string {
	if root == "" {
		return key
	}
	return root + "." + key
}
