// Package pipeline assembles the document QA pipeline from configuration.
// It owns the construction order and lifecycle of the chunker, embedding
// stack, vector index, document store, event publisher, and generation
// backend, plus the retrieval, synthesis, and ingestion layers built on top,
// so the server and the CLI wire components exactly the same way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/answer"
	"github.com/passagehq/passage/pkg/chunk"
	"github.com/passagehq/passage/pkg/config"
	"github.com/passagehq/passage/pkg/credentials"
	"github.com/passagehq/passage/pkg/embeddings"
	embeddingutils "github.com/passagehq/passage/pkg/embeddings/utils"
	"github.com/passagehq/passage/pkg/eventstream"
	eventstreamutils "github.com/passagehq/passage/pkg/eventstream/utils"
	"github.com/passagehq/passage/pkg/generation"
	generationutils "github.com/passagehq/passage/pkg/generation/utils"
	"github.com/passagehq/passage/pkg/ingest"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/retrieval"
	"github.com/passagehq/passage/pkg/storage"
	"github.com/passagehq/passage/pkg/storage/inmemory"
	"github.com/passagehq/passage/pkg/storage/sqlite"
	"github.com/passagehq/passage/pkg/vector"
	vectorutils "github.com/passagehq/passage/pkg/vector/utils"
)

// Data files created inside the .passage/ directory when the sqlite
// providers are selected without explicit paths.
const (
	documentsFile = "passage.db"
	indexFile     = "index.db"
	cacheFile     = "cache.db"
)

// Pipeline holds every assembled component. The fields are exported so the
// API server and the CLI commands can pick exactly the pieces they serve.
type Pipeline struct {
	Config *config.Config

	Chunker      *chunk.Chunker
	Embedder     embeddings.Embedder
	Index        vector.Driver
	Store        storage.Driver
	Publisher    eventstream.Publisher
	Generator    generation.Backend
	Retriever    *retrieval.Retriever
	Synthesizer  *answer.Synthesizer
	Orchestrator *ingest.Orchestrator

	logger *zap.Logger
}

// New assembles the full pipeline, including the generation backend and
// answer synthesizer. dataDir is the resolved .passage/ directory; sqlite
// providers configured without explicit paths place their databases there.
func New(ctx context.Context, cfg *config.Config, dataDir string, logger *zap.Logger) (*Pipeline, error) {
	p, err := newBase(ctx, cfg, dataDir, logger)
	if err != nil {
		return nil, err
	}

	apiKey, err := resolveKey(cfg.Generation.Provider, dataDir)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("resolving generation credentials: %w", err)
	}

	p.Generator, err = generationutils.NewBackend(&generationutils.NewBackendOpts{
		ProviderType: cfg.Generation.Provider,
		TargetURL:    cfg.Generation.Target,
		Model:        cfg.Generation.Model,
		APIKey:       apiKey,
		Temperature:  cfg.Generation.Temperature,
		MaxTokens:    cfg.Generation.MaxTokens,
		Timeout:      time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BackoffBase:  time.Duration(cfg.Retry.BackoffBaseMS) * time.Millisecond,
		BackoffMax:   time.Duration(cfg.Retry.BackoffMaxMS) * time.Millisecond,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating generation backend: %w", err)
	}

	p.Synthesizer = answer.New(p.Generator, answer.Config{
		MaxContextChars: int(cfg.Answer.MaxContextChars),
	}, logger)

	return p, nil
}

// NewIngestion assembles the pipeline without the generation stack, for
// commands that only ingest, search, or manage documents.
func NewIngestion(ctx context.Context, cfg *config.Config, dataDir string, logger *zap.Logger) (*Pipeline, error) {
	return newBase(ctx, cfg, dataDir, logger)
}

func newBase(ctx context.Context, cfg *config.Config, dataDir string, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	p := &Pipeline{Config: cfg, logger: logger}

	chunker, err := chunk.NewChunker(chunk.Config{
		Size:           cfg.Chunking.Size,
		Overlap:        cfg.Chunking.Overlap,
		BoundaryWindow: cfg.Chunking.BoundaryWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	p.Chunker = chunker

	apiKey, err := resolveKey(cfg.Embedding.Provider, dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving embedding credentials: %w", err)
	}

	// The embedding cache is keyed by content hash, which is only sound
	// when identical input yields identical vectors.
	cacheMode := cfg.Embedding.Cache
	if !cfg.Embedding.IsDeterministic() {
		cacheMode = "none"
	}

	p.Embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       apiKey,
		Cache:        cacheMode,
		CachePath:    filepath.Join(dataDir, cacheFile),
		Timeout:      time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BackoffBase:  time.Duration(cfg.Retry.BackoffBaseMS) * time.Millisecond,
		BackoffMax:   time.Duration(cfg.Retry.BackoffMaxMS) * time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	indexTarget := cfg.VectorStore.Target
	if indexTarget == "" && cfg.VectorStore.Provider == "sqlite" {
		indexTarget = filepath.Join(dataDir, indexFile)
	}
	p.Index, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    indexTarget,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	p.Store, err = newStore(cfg, dataDir, logger)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	p.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	p.Orchestrator, err = ingest.NewOrchestrator(&ingest.Config{
		Chunker:   p.Chunker,
		Embedder:  p.Embedder,
		Index:     p.Index,
		Store:     p.Store,
		Publisher: p.Publisher,
		Logger:    logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating ingestion orchestrator: %w", err)
	}

	p.Retriever = retrieval.New(p.Embedder, p.Index, logger)

	return p, nil
}

func newStore(cfg *config.Config, dataDir string, logger *zap.Logger) (storage.Driver, error) {
	switch cfg.Storage.Provider {
	case "memory":
		return inmemory.NewDriver(), nil
	case "", "sqlite":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(dataDir, documentsFile)
		}
		return sqlite.NewDriver(sqlite.Config{DBPath: path}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

// resolveKey looks up the API key for providers that need one. Providers
// without a registered key source resolve to an empty key.
func resolveKey(provider, dataDir string) (string, error) {
	if !credentials.IsSupportedProvider(provider) {
		return "", nil
	}

	mgr, err := credentials.NewManager(dataDir)
	if err != nil {
		return "", err
	}

	return mgr.Resolve(provider)
}

// NewPool starts an ingestion worker pool sized from the configuration.
// onResult, when non-nil, receives every completed ingestion's result on a
// worker goroutine.
func (p *Pipeline) NewPool(onResult func(rag.IngestionResult)) (*ingest.Pool, error) {
	return ingest.NewPool(&ingest.PoolConfig{
		Orchestrator: p.Orchestrator,
		NumWorkers:   p.Config.Ingest.Workers,
		QueueSize:    p.Config.Ingest.QueueSize,
		OnResult:     onResult,
		Logger:       p.logger,
	})
}

// NewReindexer returns a reindexer over the pipeline's store, embedder, and
// index.
func (p *Pipeline) NewReindexer(opts ingest.Options) *ingest.Reindexer {
	return ingest.NewReindexer(p.Store, p.Embedder, p.Index, opts, p.logger)
}

// Status reports the live state of the pipeline's backing stores together
// with the providers it was assembled with.
type Status struct {
	Documents      int `json:"documents"`
	Chunks         int `json:"chunks"`
	IndexedRecords int `json:"indexed_records"`

	StorageProvider    string `json:"storage_provider"`
	VectorProvider     string `json:"vector_provider"`
	EmbeddingProvider  string `json:"embedding_provider"`
	EmbeddingModel     string `json:"embedding_model"`
	GenerationProvider string `json:"generation_provider,omitempty"`
	GenerationModel    string `json:"generation_model,omitempty"`
}

// Status collects store and index counts. Generation fields are reported
// only when the pipeline carries a generation backend.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	stats, err := p.Store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store stats: %w", err)
	}

	indexed, err := p.Index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting indexed records: %w", err)
	}

	s := &Status{
		Documents:         stats.Documents,
		Chunks:            stats.Chunks,
		IndexedRecords:    indexed,
		StorageProvider:   p.Config.Storage.Provider,
		VectorProvider:    p.Config.VectorStore.Provider,
		EmbeddingProvider: p.Config.Embedding.Provider,
		EmbeddingModel:    p.Config.Embedding.Model,
	}
	if p.Generator != nil {
		s.GenerationProvider = p.Config.Generation.Provider
		s.GenerationModel = p.Config.Generation.Model
	}

	return s, nil
}

// Close releases every assembled component. Safe to call on a partially
// assembled pipeline.
func (p *Pipeline) Close() error {
	var errs []error

	if p.Publisher != nil {
		errs = append(errs, p.Publisher.Close())
	}
	if p.Generator != nil {
		errs = append(errs, p.Generator.Close())
	}
	if p.Embedder != nil {
		errs = append(errs, p.Embedder.Close())
	}
	if p.Index != nil {
		errs = append(errs, p.Index.Close())
	}
	if p.Store != nil {
		errs = append(errs, p.Store.Close())
	}

	return errors.Join(errs...)
}
