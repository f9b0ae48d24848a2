// Package ingest drives documents through the ingestion pipeline:
// replace-delete, chunk, embed, then an index-and-store commit. Indexing is
// all-or-nothing per document: either every chunk reaches the index or none
// does.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/chunk"
	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/eventstream"
	"github.com/passagehq/passage/pkg/eventstream/nop"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage"
	"github.com/passagehq/passage/pkg/utils"
	"github.com/passagehq/passage/pkg/vector"
)

// Config is the configuration options for the ingestion orchestrator.
type Config struct {
	// Chunker splits document text into retrieval units.
	Chunker *chunk.Chunker

	// Embedder generates chunk embeddings.
	Embedder embeddings.Embedder

	// Index is the vector store chunks are committed to.
	Index vector.Driver

	// Store persists documents and their chunks.
	Store storage.Driver

	// Publisher receives one document event per completed ingestion or
	// deletion. Defaults to the no-op publisher.
	Publisher eventstream.Publisher

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Orchestrator runs the per-document ingestion state machine.
type Orchestrator struct {
	chunker   *chunk.Chunker
	embedder  embeddings.Embedder
	index     vector.Driver
	store     storage.Driver
	publisher eventstream.Publisher
	logger    *zap.Logger
}

// NewOrchestrator validates the configuration and returns an Orchestrator.
func NewOrchestrator(c *Config) (*Orchestrator, error) {
	if c.Chunker == nil || c.Embedder == nil || c.Index == nil || c.Store == nil {
		return nil, fmt.Errorf("%w: chunker, embedder, index, and store are required", rag.ErrConfiguration)
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	return &Orchestrator{
		chunker:   c.Chunker,
		embedder:  c.Embedder,
		index:     c.Index,
		store:     c.Store,
		publisher: publisher,
		logger:    c.Logger,
	}, nil
}

// Ingest runs one document through the pipeline and reports its terminal
// status; failures carry the stage the pipeline stopped at and never leave
// partial state in the index. Any previously indexed version of the document
// is removed first, so re-ingesting replaces rather than appends.
func (o *Orchestrator) Ingest(ctx context.Context, req rag.IngestRequest) rag.IngestionResult {
	start := time.Now()
	result := o.ingest(ctx, req)

	if result.Err != nil {
		result.Error = result.Err.Error()
		o.logger.Error("document ingestion failed",
			zap.String("document_id", result.DocumentID),
			zap.String("stage", string(result.Stage)),
			zap.Error(result.Err),
		)
	} else {
		o.logger.Info("document ingested",
			zap.String("document_id", result.DocumentID),
			zap.Int("chunk_count", result.ChunkCount),
			zap.Duration("took", time.Since(start)),
		)
	}

	o.publish(ctx, eventstream.EventTypeDocumentIngested, result, time.Since(start))

	return result
}

// ingest is the state machine body. Ingest wraps it with logging and events.
func (o *Orchestrator) ingest(ctx context.Context, req rag.IngestRequest) rag.IngestionResult {
	docID := req.DocumentID
	if strings.TrimSpace(docID) == "" {
		return failed("", rag.StageReceived,
			fmt.Errorf("%w: document ID is required", rag.ErrConfiguration))
	}

	// Replace semantics: clear any previous version before indexing anew.
	if err := o.index.DeleteByDocument(ctx, docID); err != nil {
		return failed(docID, rag.StageReceived, fmt.Errorf("clearing indexed chunks: %w", err))
	}
	if err := o.store.DeleteDocument(ctx, docID); err != nil {
		var nf storage.NotFoundError
		if !errors.As(err, &nf) {
			return failed(docID, rag.StageReceived, fmt.Errorf("clearing stored document: %w", err))
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		// The replace-delete already ran, so re-ingesting a document with
		// empty text behaves as deletion.
		return failed(docID, rag.StageReceived,
			fmt.Errorf("%w: document %s has no extractable text", rag.ErrExtractionUnavailable, docID))
	}

	chunks := o.chunker.Split(docID, req.Text)
	if len(chunks) == 0 {
		return failed(docID, rag.StageChunked,
			fmt.Errorf("%w: no chunks produced for document %s", rag.ErrExtractionUnavailable, docID))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	batch, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return failed(docID, rag.StageEmbedded, fmt.Errorf("embedding chunks: %w", err))
	}
	if err := batch.FirstError(); err != nil {
		// One failed chunk fails the whole document: partially indexed
		// documents would make retrieval silently incomplete.
		return failed(docID, rag.StageEmbedded, fmt.Errorf("embedding chunks: %w", err))
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
			Metadata:   req.Metadata,
		}
	}

	if err := o.index.Upsert(ctx, records); err != nil {
		o.rollback(ctx, docID)
		return failed(docID, rag.StageIndexed, fmt.Errorf("indexing chunks: %w", err))
	}

	doc := &rag.Document{
		ID:          docID,
		Filename:    req.Filename,
		ContentHash: utils.HashText(req.Text),
		PageCount:   req.PageCount,
		Metadata:    req.Metadata,
		IngestedAt:  time.Now().UTC(),
	}

	if _, err := o.store.PutDocument(ctx, doc, chunks); err != nil {
		o.rollback(ctx, docID)
		return failed(docID, rag.StageIndexed, fmt.Errorf("storing document: %w", err))
	}

	return rag.IngestionResult{
		DocumentID: docID,
		ChunkCount: len(chunks),
		Status:     rag.StatusIndexed,
	}
}

// IngestBatch ingests documents concurrently with at most workers in flight,
// returning one result per request in input order. Failures stay
// per-document and never abort the rest of the batch.
func (o *Orchestrator) IngestBatch(ctx context.Context, reqs []rag.IngestRequest, workers uint) []rag.IngestionResult {
	if workers == 0 {
		workers = defaultNumWorkers
	}

	results := make([]rag.IngestionResult, len(reqs))
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = o.Ingest(ctx, req)
		}()
	}
	wg.Wait()

	return results
}

// Delete removes a document from both the index and the store, then emits a
// deletion event. Unknown documents return storage.NotFoundError.
func (o *Orchestrator) Delete(ctx context.Context, documentID string) error {
	start := time.Now()

	chunks, err := o.store.Chunks(ctx, documentID)
	if err != nil {
		return err
	}

	if err := o.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clearing indexed chunks: %w", err)
	}
	if err := o.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	o.logger.Info("document deleted",
		zap.String("document_id", documentID),
		zap.Int("chunk_count", len(chunks)),
	)

	o.publish(ctx, eventstream.EventTypeDocumentDeleted,
		rag.IngestionResult{DocumentID: documentID, ChunkCount: len(chunks)},
		time.Since(start))

	return nil
}

// rollback clears a document's index records after a failed commit. Failures
// are logged; the integrity check purges whatever survives.
func (o *Orchestrator) rollback(ctx context.Context, documentID string) {
	if err := o.index.DeleteByDocument(ctx, documentID); err != nil {
		o.logger.Error("rollback of indexed chunks failed",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}

// publish emits a document event. Publish failures are logged and swallowed
// so eventing problems never fail the write path.
func (o *Orchestrator) publish(ctx context.Context, eventType string, result rag.IngestionResult, took time.Duration) {
	event := eventstream.NewDocumentEvent(eventType, result, took)
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("publishing document event failed",
			zap.String("event_type", eventType),
			zap.String("document_id", result.DocumentID),
			zap.Error(err),
		)
	}
}

func failed(documentID string, stage rag.Stage, err error) rag.IngestionResult {
	return rag.IngestionResult{
		DocumentID: documentID,
		Status:     rag.StatusFailed,
		Stage:      stage,
		Err:        err,
	}
}
