package config

const (
	defaultAPIListen       = ":8080"
	defaultClientAPITarget = "http://localhost:8080"

	defaultStorageProvider = "sqlite"

	defaultVectorProvider = "sqlite"
	defaultVectorMetric   = "cosine"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingCache      = "memory"
	defaultEmbeddingTimeout    = 120

	defaultGenerationProvider    = "ollama"
	defaultGenerationTarget      = "http://localhost:11434"
	defaultGenerationModel       = "llama3.2"
	defaultGenerationTemperature = 0.7
	defaultGenerationMaxTokens   = 1000
	defaultGenerationTimeout     = 120

	defaultChunkSize    = 1000
	defaultChunkOverlap = 200

	defaultTopK      = 5
	defaultThreshold = 0.7

	defaultMaxContextChars = 4000

	defaultIngestWorkers   = 3
	defaultIngestQueueSize = 256

	defaultRetryMaxAttempts   = 3
	defaultRetryBackoffBaseMS = 200
	defaultRetryBackoffMaxMS  = 5000

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "passage.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
			Metric:   defaultVectorMetric,
		},
		Embedding: EmbeddingConfig{
			Provider:       defaultEmbeddingProvider,
			Target:         defaultEmbeddingTarget,
			Model:          defaultEmbeddingModel,
			Dimensions:     defaultEmbeddingDimensions,
			Cache:          defaultEmbeddingCache,
			Deterministic:  boolPtr(true),
			TimeoutSeconds: defaultEmbeddingTimeout,
		},
		Generation: GenerationConfig{
			Provider:       defaultGenerationProvider,
			Target:         defaultGenerationTarget,
			Model:          defaultGenerationModel,
			Temperature:    defaultGenerationTemperature,
			MaxTokens:      defaultGenerationMaxTokens,
			TimeoutSeconds: defaultGenerationTimeout,
		},
		Chunking: ChunkingConfig{
			Size:    defaultChunkSize,
			Overlap: defaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{
			TopK:      defaultTopK,
			Threshold: defaultThreshold,
		},
		Answer: AnswerConfig{
			MaxContextChars: defaultMaxContextChars,
		},
		Ingest: IngestConfig{
			Workers:   defaultIngestWorkers,
			QueueSize: defaultIngestQueueSize,
		},
		Retry: RetryConfig{
			MaxAttempts:   defaultRetryMaxAttempts,
			BackoffBaseMS: defaultRetryBackoffBaseMS,
			BackoffMaxMS:  defaultRetryBackoffMaxMS,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
