// Package sqlite provides a SQLite-backed document store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage"
)

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the SQLite document store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewDriver creates a new SQLite-backed document store.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id           TEXT PRIMARY KEY,
			filename     TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			page_count   INTEGER NOT NULL DEFAULT 0,
			metadata     TEXT NOT NULL DEFAULT '{}',
			ingested_at  TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id           TEXT PRIMARY KEY,
			document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index  INTEGER NOT NULL,
			text         TEXT NOT NULL DEFAULT '',
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset   INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunk index: %w", err)
	}

	logger.Debug("sqlite document store initialized",
		zap.String("db_path", c.DBPath),
	)

	return &Driver{
		db:     db,
		logger: logger,
	}, nil
}

// PutDocument stores a document and all of its chunks in one transaction,
// replacing any prior version under the same ID. Returns true if a document
// was replaced.
func (d *Driver) PutDocument(ctx context.Context, doc *rag.Document, chunks []rag.Chunk) (bool, error) {
	if doc == nil {
		return false, fmt.Errorf("cannot store nil document")
	}
	if doc.ID == "" {
		return false, fmt.Errorf("cannot store document without ID")
	}

	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return false, fmt.Errorf("encoding metadata for document %s: %w", doc.ID, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete-then-insert keeps replacement atomic; the FK cascade clears the
	// old chunks with the old document row.
	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID)
	if err != nil {
		return false, fmt.Errorf("deleting prior document %s: %w", doc.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking prior document %s: %w", doc.ID, err)
	}
	replaced := affected > 0

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents(id, filename, content_hash, page_count, metadata, ingested_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.ContentHash, doc.PageCount, string(metaJSON), doc.IngestedAt,
	); err != nil {
		return false, fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(id, document_id, chunk_index, text, start_offset, end_offset) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.Index, c.Text, c.Start, c.End,
		); err != nil {
			return false, fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("stored document",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
		zap.Bool("replaced", replaced),
	)

	return replaced, nil
}

// GetDocument retrieves a document by its ID.
func (d *Driver) GetDocument(ctx context.Context, id string) (*rag.Document, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, filename, content_hash, page_count, metadata, ingested_at FROM documents WHERE id = ?`, id,
	)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, storage.NotFoundError{DocumentID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}

	return doc, nil
}

// ListDocuments returns all stored documents ordered by ID.
func (d *Driver) ListDocuments(ctx context.Context) ([]*rag.Document, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, filename, content_hash, page_count, metadata, ingested_at FROM documents ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*rag.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a document; the FK cascade removes its chunks.
func (d *Driver) DeleteDocument(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of document %s: %w", id, err)
	}
	if affected == 0 {
		return storage.NotFoundError{DocumentID: id}
	}

	d.logger.Debug("deleted document",
		zap.String("document_id", id),
	)

	return nil
}

// Chunks returns a document's chunks ordered by index.
func (d *Driver) Chunks(ctx context.Context, documentID string) ([]rag.Chunk, error) {
	var exists int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE id = ?`, documentID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking document %s: %w", documentID, err)
	}
	if exists == 0 {
		return nil, storage.NotFoundError{DocumentID: documentID}
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, text, start_offset, end_offset FROM chunks WHERE document_id = ? ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chunks for document %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []rag.Chunk
	for rows.Next() {
		var c rag.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.Start, &c.End); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// ChunkIDs returns every stored chunk ID in ascending order.
func (d *Driver) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}

	return ids, nil
}

// Stats reports document and chunk counts.
func (d *Driver) Stats(ctx context.Context) (*storage.Stats, error) {
	var stats storage.Stats

	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.Chunks); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}

	return &stats, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanDocument.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*rag.Document, error) {
	var doc rag.Document
	var metaJSON string
	var ingestedAt time.Time

	if err := s.Scan(&doc.ID, &doc.Filename, &doc.ContentHash, &doc.PageCount, &metaJSON, &ingestedAt); err != nil {
		return nil, err
	}

	doc.IngestedAt = ingestedAt

	if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for document %s: %w", doc.ID, err)
		}
	}

	return &doc, nil
}

// Ensure Driver implements storage.Driver
var _ storage.Driver = (*Driver)(nil)
