package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/passagehq/passage/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PASSAGE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (PASSAGE_API_LISTEN, PASSAGE_EMBEDDING_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: PASSAGE_API_LISTEN, PASSAGE_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("PASSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the resolved viper state, so the
// pipeline and server constructors see one flat Config regardless of whether
// a value arrived via flag, env var, file, or default.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider:   v.GetString("storage.provider"),
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
			Target:   v.GetString("vector_store.target"),
			Metric:   v.GetString("vector_store.metric"),
		},
		Embedding: EmbeddingConfig{
			Provider:       v.GetString("embedding.provider"),
			Target:         v.GetString("embedding.target"),
			Model:          v.GetString("embedding.model"),
			Dimensions:     v.GetUint("embedding.dimensions"),
			Cache:          v.GetString("embedding.cache"),
			Deterministic:  boolPtr(v.GetBool("embedding.deterministic")),
			TimeoutSeconds: v.GetUint("embedding.timeout_seconds"),
		},
		Generation: GenerationConfig{
			Provider:       v.GetString("generation.provider"),
			Target:         v.GetString("generation.target"),
			Model:          v.GetString("generation.model"),
			Temperature:    v.GetFloat64("generation.temperature"),
			MaxTokens:      v.GetUint("generation.max_tokens"),
			TimeoutSeconds: v.GetUint("generation.timeout_seconds"),
		},
		Chunking: ChunkingConfig{
			Size:           v.GetUint("chunking.size"),
			Overlap:        v.GetUint("chunking.overlap"),
			BoundaryWindow: v.GetUint("chunking.boundary_window"),
		},
		Retrieval: RetrievalConfig{
			TopK:      v.GetUint("retrieval.top_k"),
			Threshold: v.GetFloat64("retrieval.threshold"),
		},
		Answer: AnswerConfig{
			MaxContextChars: v.GetUint("answer.max_context_chars"),
		},
		Ingest: IngestConfig{
			Workers:   v.GetUint("ingest.workers"),
			QueueSize: v.GetUint("ingest.queue_size"),
		},
		Retry: RetryConfig{
			MaxAttempts:   v.GetUint("retry.max_attempts"),
			BackoffBaseMS: v.GetUint("retry.backoff_base_ms"),
			BackoffMaxMS:  v.GetUint("retry.backoff_max_ms"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Log: LogConfig{
			Path: v.GetString("log.path"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.metric", d.VectorStore.Metric)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.cache", d.Embedding.Cache)
	v.SetDefault("embedding.deterministic", d.Embedding.IsDeterministic())
	v.SetDefault("embedding.timeout_seconds", d.Embedding.TimeoutSeconds)

	// Generation
	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.target", d.Generation.Target)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.timeout_seconds", d.Generation.TimeoutSeconds)

	// Chunking
	v.SetDefault("chunking.size", d.Chunking.Size)
	v.SetDefault("chunking.overlap", d.Chunking.Overlap)
	v.SetDefault("chunking.boundary_window", d.Chunking.BoundaryWindow)

	// Retrieval
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.threshold", d.Retrieval.Threshold)

	// Answer
	v.SetDefault("answer.max_context_chars", d.Answer.MaxContextChars)

	// Ingest
	v.SetDefault("ingest.workers", d.Ingest.Workers)
	v.SetDefault("ingest.queue_size", d.Ingest.QueueSize)

	// Retry
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.backoff_base_ms", d.Retry.BackoffBaseMS)
	v.SetDefault("retry.backoff_max_ms", d.Retry.BackoffMaxMS)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Log
	v.SetDefault("log.path", d.Log.Path)
}
