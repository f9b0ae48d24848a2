package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage"
	"github.com/passagehq/passage/pkg/vector"
)

// Options configures reindex behavior.
type Options struct {
	// All re-embeds every stored document. The default repairs only
	// documents with chunks missing from the index.
	All bool

	// DryRun reports what a run would do without writing to the index.
	DryRun bool
}

// Result contains statistics from a reindex run.
type Result struct {
	Scanned   int
	Reindexed int
	Skipped   int
	Failed    int
}

// Summary returns a human-readable summary of the reindex result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Reindex complete: %d reindexed, %d skipped (already indexed), %d failed\n"+
			"Scanned %d documents",
		r.Reindexed, r.Skipped, r.Failed,
		r.Scanned,
	)
}

// Reindexer re-embeds stored chunks and repairs gaps between the document
// store and the vector index, after an embedding model change or a crash
// between commits.
type Reindexer struct {
	store    storage.Driver
	embedder embeddings.Embedder
	index    vector.Driver
	options  Options
	logger   *zap.Logger
}

// NewReindexer creates a Reindexer over the given store, embedder, and index.
func NewReindexer(store storage.Driver, embedder embeddings.Embedder, index vector.Driver, opts Options, logger *zap.Logger) *Reindexer {
	return &Reindexer{
		store:    store,
		embedder: embedder,
		index:    index,
		options:  opts,
		logger:   logger,
	}
}

// Run scans stored documents and re-embeds the ones needing repair. Failures
// stay per-document; the scan always completes.
func (r *Reindexer) Run(ctx context.Context) (*Result, error) {
	docs, err := r.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	indexedIDs, err := r.index.ChunkIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexed chunks: %w", err)
	}

	indexed := make(map[string]struct{}, len(indexedIDs))
	for _, id := range indexedIDs {
		indexed[id] = struct{}{}
	}

	result := &Result{}
	for _, doc := range docs {
		result.Scanned++

		chunks, err := r.store.Chunks(ctx, doc.ID)
		if err != nil {
			result.Failed++
			r.logger.Error("loading stored chunks failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
			continue
		}

		if !r.options.All && fullyIndexed(chunks, indexed) {
			result.Skipped++
			continue
		}

		if r.options.DryRun {
			result.Reindexed++
			r.logger.Info("would reindex document",
				zap.String("document_id", doc.ID),
				zap.Int("chunk_count", len(chunks)),
			)
			continue
		}

		if err := r.reindexDocument(ctx, doc, chunks); err != nil {
			result.Failed++
			r.logger.Error("reindexing document failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
			continue
		}

		result.Reindexed++
		r.logger.Info("document reindexed",
			zap.String("document_id", doc.ID),
			zap.Int("chunk_count", len(chunks)),
		)
	}

	return result, nil
}

// reindexDocument re-embeds a document's stored chunks and upserts them into
// the index.
func (r *Reindexer) reindexDocument(ctx context.Context, doc *rag.Document, chunks []rag.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	batch, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if err := batch.FirstError(); err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	vectors := embeddings.NormalizeAll(batch.Vectors)

	records := make([]vector.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Record{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Start:      c.Start,
			End:        c.End,
			Embedding:  vectors[i],
			Metadata:   doc.Metadata,
		}
	}

	return r.index.Upsert(ctx, records)
}

// fullyIndexed reports whether every chunk ID is present in the index.
func fullyIndexed(chunks []rag.Chunk, indexed map[string]struct{}) bool {
	for _, c := range chunks {
		if _, ok := indexed[c.ID]; !ok {
			return false
		}
	}
	return true
}
