package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent passage configuration stored as config.toml
// in the .passage/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Generation  GenerationConfig  `toml:"generation"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Answer      AnswerConfig      `toml:"answer"`
	Ingest      IngestConfig      `toml:"ingest"`
	Retry       RetryConfig       `toml:"retry"`
	Events      EventsConfig      `toml:"events"`
	Log         LogConfig         `toml:"log"`
}

// StorageConfig holds document store settings shared by the server and the
// local pipeline commands. An empty SQLitePath resolves to passage.db inside
// the .passage/ directory.
type StorageConfig struct {
	Provider   string `toml:"provider,omitempty" validate:"omitempty,oneof=sqlite memory"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// passage server (e.g. passage ask, passage search).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig holds vector index settings. Cosine is the only
// supported metric; the key exists so a future metric lands as a config
// change rather than an interface change.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty" validate:"omitempty,oneof=sqlite pgvector chroma memory"`
	Target   string `toml:"target,omitempty"`
	Metric   string `toml:"metric,omitempty" validate:"omitempty,oneof=cosine"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty" validate:"omitempty,oneof=ollama openai"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	Cache      string `toml:"cache,omitempty" validate:"omitempty,oneof=none memory sqlite"`

	// Deterministic declares whether the backend returns identical vectors
	// for identical input. The cache is keyed on content hashes, which is
	// only sound under that assumption, so false bypasses the cache
	// entirely. A pointer so that an explicit false survives defaulting;
	// unset means true.
	Deterministic *bool `toml:"deterministic,omitempty"`

	TimeoutSeconds uint `toml:"timeout_seconds,omitempty"`
}

// IsDeterministic reports whether the embedding backend is assumed to return
// identical vectors for identical input. Unset reads as true.
func (c EmbeddingConfig) IsDeterministic() bool {
	return c.Deterministic == nil || *c.Deterministic
}

// GenerationConfig holds answer generation backend settings.
type GenerationConfig struct {
	Provider       string  `toml:"provider,omitempty" validate:"omitempty,oneof=ollama openai"`
	Target         string  `toml:"target,omitempty"`
	Model          string  `toml:"model,omitempty"`
	Temperature    float64 `toml:"temperature,omitempty" validate:"gte=0,lte=2"`
	MaxTokens      uint    `toml:"max_tokens,omitempty"`
	TimeoutSeconds uint    `toml:"timeout_seconds,omitempty"`
}

// ChunkingConfig holds document chunking settings. BoundaryWindow is the
// look-back window (in runes) searched for a sentence or word break before
// hard-cutting; zero derives it from the chunk size.
type ChunkingConfig struct {
	Size           uint `toml:"size,omitempty"`
	Overlap        uint `toml:"overlap,omitempty"`
	BoundaryWindow uint `toml:"boundary_window,omitempty"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	TopK      uint    `toml:"top_k,omitempty"`
	Threshold float64 `toml:"threshold,omitempty" validate:"gte=0,lte=1"`
}

// AnswerConfig holds answer synthesis settings.
type AnswerConfig struct {
	MaxContextChars uint `toml:"max_context_chars,omitempty"`
}

// IngestConfig holds ingestion worker pool settings.
type IngestConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// RetryConfig bounds retries against external model providers. Backoff
// doubles from BackoffBaseMS per attempt, capped at BackoffMaxMS.
type RetryConfig struct {
	MaxAttempts   uint `toml:"max_attempts,omitempty" validate:"omitempty,lte=10"`
	BackoffBaseMS uint `toml:"backoff_base_ms,omitempty"`
	BackoffMaxMS  uint `toml:"backoff_max_ms,omitempty"`
}

// EventsConfig holds indexing event publication settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty" validate:"omitempty,oneof=nop kafka"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// LogConfig holds logging settings. An empty path logs to stdout only.
type LogConfig struct {
	Path string `toml:"path,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.metric": {
		get: func(c *Config) string { return c.VectorStore.Metric },
		set: func(c *Config, v string) error { c.VectorStore.Metric = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.cache": {
		get: func(c *Config) string { return c.Embedding.Cache },
		set: func(c *Config, v string) error { c.Embedding.Cache = v; return nil },
	},
	"embedding.deterministic": {
		get: func(c *Config) string {
			return strconv.FormatBool(c.Embedding.IsDeterministic())
		},
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.deterministic: %w", err)
			}
			c.Embedding.Deterministic = &b
			return nil
		},
	},
	"embedding.timeout_seconds": {
		get: func(c *Config) string {
			if c.Embedding.TimeoutSeconds == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.TimeoutSeconds), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.timeout_seconds: %w", err)
			}
			c.Embedding.TimeoutSeconds = uint(n)
			return nil
		},
	},
	"generation.provider": {
		get: func(c *Config) string { return c.Generation.Provider },
		set: func(c *Config, v string) error { c.Generation.Provider = v; return nil },
	},
	"generation.target": {
		get: func(c *Config) string { return c.Generation.Target },
		set: func(c *Config, v string) error { c.Generation.Target = v; return nil },
	},
	"generation.model": {
		get: func(c *Config) string { return c.Generation.Model },
		set: func(c *Config, v string) error { c.Generation.Model = v; return nil },
	},
	"generation.temperature": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Generation.Temperature, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for generation.temperature: %w", err)
			}
			c.Generation.Temperature = f
			return nil
		},
	},
	"generation.max_tokens": {
		get: func(c *Config) string {
			if c.Generation.MaxTokens == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Generation.MaxTokens), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for generation.max_tokens: %w", err)
			}
			c.Generation.MaxTokens = uint(n)
			return nil
		},
	},
	"generation.timeout_seconds": {
		get: func(c *Config) string {
			if c.Generation.TimeoutSeconds == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Generation.TimeoutSeconds), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for generation.timeout_seconds: %w", err)
			}
			c.Generation.TimeoutSeconds = uint(n)
			return nil
		},
	},
	"chunking.size": {
		get: func(c *Config) string {
			if c.Chunking.Size == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Chunking.Size), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chunking.size: %w", err)
			}
			c.Chunking.Size = uint(n)
			return nil
		},
	},
	"chunking.overlap": {
		get: func(c *Config) string {
			return strconv.FormatUint(uint64(c.Chunking.Overlap), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chunking.overlap: %w", err)
			}
			c.Chunking.Overlap = uint(n)
			return nil
		},
	},
	"chunking.boundary_window": {
		get: func(c *Config) string {
			if c.Chunking.BoundaryWindow == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Chunking.BoundaryWindow), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chunking.boundary_window: %w", err)
			}
			c.Chunking.BoundaryWindow = uint(n)
			return nil
		},
	},
	"retrieval.top_k": {
		get: func(c *Config) string {
			if c.Retrieval.TopK == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Retrieval.TopK), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.top_k: %w", err)
			}
			c.Retrieval.TopK = uint(n)
			return nil
		},
	},
	"retrieval.threshold": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Retrieval.Threshold, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.threshold: %w", err)
			}
			c.Retrieval.Threshold = f
			return nil
		},
	},
	"answer.max_context_chars": {
		get: func(c *Config) string {
			if c.Answer.MaxContextChars == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Answer.MaxContextChars), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for answer.max_context_chars: %w", err)
			}
			c.Answer.MaxContextChars = uint(n)
			return nil
		},
	},
	"ingest.workers": {
		get: func(c *Config) string {
			if c.Ingest.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Ingest.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for ingest.workers: %w", err)
			}
			c.Ingest.Workers = uint(n)
			return nil
		},
	},
	"ingest.queue_size": {
		get: func(c *Config) string {
			if c.Ingest.QueueSize == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Ingest.QueueSize), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for ingest.queue_size: %w", err)
			}
			c.Ingest.QueueSize = uint(n)
			return nil
		},
	},
	"retry.max_attempts": {
		get: func(c *Config) string {
			if c.Retry.MaxAttempts == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Retry.MaxAttempts), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retry.max_attempts: %w", err)
			}
			c.Retry.MaxAttempts = uint(n)
			return nil
		},
	},
	"retry.backoff_base_ms": {
		get: func(c *Config) string {
			if c.Retry.BackoffBaseMS == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Retry.BackoffBaseMS), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retry.backoff_base_ms: %w", err)
			}
			c.Retry.BackoffBaseMS = uint(n)
			return nil
		},
	},
	"retry.backoff_max_ms": {
		get: func(c *Config) string {
			if c.Retry.BackoffMaxMS == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Retry.BackoffMaxMS), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retry.backoff_max_ms: %w", err)
			}
			c.Retry.BackoffMaxMS = uint(n)
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"log.path": {
		get: func(c *Config) string { return c.Log.Path },
		set: func(c *Config, v string) error { c.Log.Path = v; return nil },
	},
}
