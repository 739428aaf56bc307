// Package app assembles the finsight services from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/config"
	"github.com/kailas-cloud/finsight/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/finsight/internal/db/redis"
	"github.com/kailas-cloud/finsight/internal/domain"
	"github.com/kailas-cloud/finsight/internal/metrics"
	"github.com/kailas-cloud/finsight/internal/repository/chunk"
	"github.com/kailas-cloud/finsight/internal/repository/embcache"
	"github.com/kailas-cloud/finsight/internal/transport/fastembed"
	"github.com/kailas-cloud/finsight/internal/transport/openai"
	analysisuc "github.com/kailas-cloud/finsight/internal/usecase/analysis"
	batchuc "github.com/kailas-cloud/finsight/internal/usecase/batch"
	embeddinguc "github.com/kailas-cloud/finsight/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/finsight/internal/usecase/health"
	raguc "github.com/kailas-cloud/finsight/internal/usecase/rag"
	searchuc "github.com/kailas-cloud/finsight/internal/usecase/search"
	tickeruc "github.com/kailas-cloud/finsight/internal/usecase/ticker"
	"github.com/kailas-cloud/finsight/internal/version"
)

const embeddingProvider = "fastembed"

// App holds the wired use cases and the connections they share.
type App struct {
	Search   *searchuc.Service
	Resolver *tickeruc.Resolver
	Analysis *analysisuc.Service
	RAG      *raguc.Service
	Health   *healthuc.Service
	// Batch and Chunks are nil when the vector store is Qdrant.
	Batch  *batchuc.Service
	Chunks *chunk.Repo

	closers []func()
}

// Build connects to the configured stores and wires every service.
// On error, connections opened so far are closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	a := &App{}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	var kv *dbRedis.Store
	if cfg.NeedsDatabase() {
		var err error
		kv, err = connectDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Close)
	}

	vectors := vectorConfig(cfg)
	var (
		backend     searchuc.Backend
		vectorStore healthuc.Checker
	)
	switch cfg.VectorStore.Driver {
	case config.DriverQdrant:
		qs, err := connectQdrant(ctx, cfg, vectors, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, qs.Close)
		backend = chunk.NewFused(qs, layout(cfg, vectors))
		vectorStore = qs
	default:
		repo := chunk.New(kv, chunk.Options{
			KeyPrefix:       cfg.Storage.KeyPrefix,
			FilterKeys:      cfg.VectorStore.FilterKeys,
			DenseDimensions: vectors.DenseDimensions,
			DenseFlat:       cfg.VectorStore.DenseIndex == config.DenseIndexFlat,
			HNSWM:           cfg.VectorStore.HNSWM,
			HNSWEFConstruct: cfg.VectorStore.HNSWEFConstruct,
			SparsePool:      cfg.Retrieval.SparsePool,
			SparseScanMax:   cfg.Retrieval.SparseScanMax,
			SparseTruncated: metrics.RetrievalSparseTruncatedTotal,
		})
		if err := repo.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure chunk index: %w", err)
		}
		a.Chunks = repo
		a.Batch = batchuc.New(repo, buildEmbedder(cfg, fastembed.KindDocument, vectors, nil, logger))
		backend = repo
		vectorStore = kv
	}

	embedder := buildEmbedder(cfg, fastembed.KindQuery, vectors, kv, logger)
	completer := openai.NewCompleter(&openai.Config{
		APIKey:            cfg.Completion.APIKey,
		BaseURL:           cfg.Completion.BaseURL,
		Model:             cfg.Completion.Model,
		ResponseFormat:    cfg.Completion.ResponseFormat,
		MaxTokens:         cfg.Completion.MaxTokens,
		RequestsPerSecond: cfg.Completion.RequestsPerSecond,
		Burst:             cfg.Completion.Burst,
		Logger:            logger,
	})

	search, err := searchuc.New(backend, embedder, cfg.Plan())
	if err != nil {
		return nil, fmt.Errorf("search service: %w", err)
	}
	a.Search = search
	a.Resolver = tickeruc.NewResolver(cfg.Aliases(), completer)
	a.Analysis = analysisuc.New(a.Resolver, a.Search, completer, analysisuc.Options{
		NewsSource: cfg.Agent.NewsSource,
	})
	a.RAG = raguc.New(a.Search, completer)

	components := healthuc.Components{
		VectorStore: vectorStore,
		Completion:  completer,
	}
	if hc, ok := embedder.(healthuc.Checker); ok {
		components.Embedding = hc
	}
	if cfg.Embedding.Cache.Enabled {
		components.Cache = kv
	}
	a.Health = healthuc.New(components)

	logger.Info("Services wired",
		zap.String("vector_store", backend.Name()),
		zap.String("completion_model", cfg.Completion.Model),
		zap.Bool("embedding_cache", cfg.Embedding.Cache.Enabled),
	)
	built = true
	return a, nil
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func connectDatabase(ctx context.Context, cfg config.Config, logger *zap.Logger) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		ClientName: "finsight-" + version.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
	)
	return store, nil
}

func connectQdrant(
	ctx context.Context, cfg config.Config, vectors domain.VectorConfig, logger *zap.Logger,
) (*qdrant.Store, error) {
	qc := cfg.VectorStore.Qdrant
	store, err := qdrant.NewStore(qdrant.Config{
		Host:       qc.Host,
		Port:       qc.Port,
		APIKey:     qc.APIKey,
		UseTLS:     qc.UseTLS,
		Collection: qc.Collection,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(qc.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("qdrant not ready: %w", err)
	}
	if qc.CreateCollection {
		created, err := store.EnsureCollection(ctx, layout(cfg, vectors))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure collection: %w", err)
		}
		if created {
			logger.Info("Created qdrant collection", zap.String("collection", qc.Collection))
		}
	}
	logger.Info("Connected to qdrant", zap.String("host", qc.Host), zap.String("collection", qc.Collection))
	return store, nil
}

// buildEmbedder assembles the decorator chain: fastembed -> cached -> instrumented -> instruction.
// A nil kv disables caching.
func buildEmbedder(
	cfg config.Config, kind string, vectors domain.VectorConfig, kv *dbRedis.Store, logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = fastembed.New(&fastembed.Config{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Kind:    kind,
		Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	if cfg.Embedding.Cache.Enabled && kv != nil {
		embedder = embcache.New(embedder, kv, embcache.Options{
			KeyPrefix:   cfg.Storage.KeyPrefix,
			Namespace:   cfg.Embedding.Cache.Namespace,
			TTL:         time.Duration(cfg.Embedding.Cache.TTLHours) * time.Hour,
			CallTimeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embeddingProvider, vectors, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	instruction := cfg.Embedding.QueryInstruction
	if kind == fastembed.KindDocument {
		instruction = cfg.Embedding.DocumentInstruction
	}
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func vectorConfig(cfg config.Config) domain.VectorConfig {
	v := domain.DefaultVectorConfig()
	v.DenseDimensions = cfg.Embedding.DenseDimensions
	v.MultiDimensions = cfg.Embedding.MultiDimensions
	return v
}

func layout(cfg config.Config, v domain.VectorConfig) qdrant.Layout {
	return qdrant.Layout{
		Dense:        v.DenseChannel,
		Sparse:       v.SparseChannel,
		Multi:        v.MultiChannel,
		DenseDim:     uint64(v.DenseDimensions),
		MultiDim:     uint64(v.MultiDimensions),
		TextField:    chunk.FieldText,
		MetadataRoot: chunk.FieldMetadata,
		IndexedKeys:  cfg.VectorStore.FilterKeys,
	}
}
