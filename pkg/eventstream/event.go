package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/passagehq/passage/pkg/rag"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIngested is emitted after a document's chunks reach
	// the index.
	EventTypeDocumentIngested = "passage.document.ingested"

	// EventTypeDocumentDeleted is emitted after a document is removed from
	// the store and the index.
	EventTypeDocumentDeleted = "passage.document.deleted"
)

// DocumentEvent is a transport-neutral event payload describing one
// document ingestion or deletion outcome.
type DocumentEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`

	// Status is the ingestion outcome; empty on deletion events.
	Status rag.Status `json:"status,omitempty"`

	// Stage records where a failed ingestion stopped, empty on success.
	Stage rag.Stage `json:"stage,omitempty"`

	DurationMs int64 `json:"duration_ms"`
}

// NewDocumentEvent builds an event of the given type from an ingestion
// result, stamping a fresh event ID and emission time.
func NewDocumentEvent(eventType string, result rag.IngestionResult, duration time.Duration) *DocumentEvent {
	return &DocumentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		DocumentID:    result.DocumentID,
		ChunkCount:    result.ChunkCount,
		Status:        result.Status,
		Stage:         result.Stage,
		DurationMs:    duration.Milliseconds(),
	}
}
