// Package rag defines the shared domain types for the passage pipeline:
// documents, chunks, retrieval evidence, answers, and ingestion results.
// It is a leaf package imported by every component and imports none of them.
package rag

import (
	"strconv"
	"time"
)

// Document is one ingested source file. Documents are immutable once stored;
// re-ingesting a document ID replaces every derived chunk rather than
// updating in place.
type Document struct {
	// ID uniquely identifies the document. Generated (uuid) when the caller
	// does not supply one.
	ID string `json:"id"`

	// Filename is the original source file name, when known.
	Filename string `json:"filename,omitempty"`

	// ContentHash is the sha256 hex digest of the extracted text.
	ContentHash string `json:"content_hash"`

	// PageCount is the source page count reported by the extractor, if any.
	PageCount int `json:"page_count,omitempty"`

	// Metadata carries arbitrary source metadata (document type, origin, ...).
	Metadata map[string]string `json:"metadata,omitempty"`

	// IngestedAt is when the document was last (re-)ingested.
	IngestedAt time.Time `json:"ingested_at"`
}

// Chunk is a contiguous, bounded slice of a document's text, the atomic unit
// of retrieval. Chunk IDs are deterministic given (document ID, index).
type Chunk struct {
	// ID is "<documentID>_chunk_<index>".
	ID string `json:"id"`

	// DocumentID is the owning document.
	DocumentID string `json:"document_id"`

	// Index is the zero-based position of the chunk within its document.
	Index int `json:"index"`

	// Text is the chunk's text span.
	Text string `json:"text"`

	// Start and End are rune offsets of the span within the document text.
	// Spans increase monotonically and overlap only with their immediate
	// neighbor, by at most the configured overlap.
	Start int `json:"start"`
	End   int `json:"end"`
}

// ChunkID builds the deterministic chunk identifier for a document and
// sequence index.
func ChunkID(documentID string, index int) string {
	return documentID + "_chunk_" + strconv.Itoa(index)
}

// EvidenceItem is a single retrieval result. Created per query, never
// persisted.
type EvidenceItem struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Rank       int     `json:"rank"`
}

// Citation maps a span of generated answer text back to the chunk that
// grounds it.
type Citation struct {
	// Label is the 1-based evidence label referenced inline (e.g. [2]).
	Label int `json:"label"`

	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`

	// Text is the cited chunk's text.
	Text string `json:"text"`
}

// Answer is a synthesized response grounded in retrieved evidence. Created
// per query, never persisted.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`

	// Evidence is the ranked evidence set the answer was grounded in. Kept on
	// the answer so callers can fall back to raw passages when generation is
	// degraded.
	Evidence []EvidenceItem `json:"evidence"`

	// Confidence is the position-weighted mean of evidence similarity scores.
	Confidence float32 `json:"confidence"`

	// Grounded is false for the fixed insufficient-information answer
	// returned when no evidence survives retrieval.
	Grounded bool `json:"grounded"`
}

// IngestRequest is the ingestion entry point payload: a document identifier
// plus extracted text and source metadata. Text extraction itself happens
// upstream.
type IngestRequest struct {
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Filename   string            `json:"filename,omitempty"`
	PageCount  int               `json:"page_count,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Stage identifies a step of the per-document ingestion state machine.
type Stage string

const (
	StageReceived Stage = "received"
	StageChunked  Stage = "chunked"
	StageEmbedded Stage = "embedded"
	StageIndexed  Stage = "indexed"
)

// Status is the terminal state of one document's ingestion.
type Status string

const (
	// StatusIndexed means every chunk of the document reached the index.
	StatusIndexed Status = "indexed"

	// StatusFailed means the document was rolled back to no indexed chunks.
	// The Stage on the result records where the pipeline stopped.
	StatusFailed Status = "failed"
)

// IngestionResult reports one document's ingestion outcome. Indexing is
// all-or-nothing per document: either every chunk reached the index or none
// did.
type IngestionResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	Status     Status `json:"status"`

	// Stage is the state machine stage the document failed at, empty on
	// success.
	Stage Stage `json:"stage,omitempty"`

	// Err holds the failure cause. Not serialized; Error carries the message
	// across the API boundary.
	Err error `json:"-"`

	// Error is the failure message, for transport.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the transport shape for API errors.
type ErrorResponse struct {
	Error string `json:"error"`

	// Evidence carries the retrieved evidence when answer synthesis failed,
	// so clients can fall back to presenting raw passages.
	Evidence []EvidenceItem `json:"evidence,omitempty"`
}
