// Package pgvector provides a PostgreSQL-backed vector driver using the
// pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	pgvec "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/vector"
)

// Driver implements vector.Driver on PostgreSQL with the pgvector extension.
// Similarity is computed server-side as 1 - (embedding <=> query), the
// cosine distance operator inverted back to a similarity.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the pgvector driver.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Required; the vector column is created with a fixed width.
	Dimensions uint
}

// NewDriver connects to PostgreSQL, ensures the pgvector extension and the
// chunk table exist, and returns the driver.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("pgvector embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("pgx", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", vector.ErrConnection, err)
	}

	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS passage_chunks (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset INTEGER NOT NULL DEFAULT 0,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)
	`, c.Dimensions)
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_passage_chunks_document ON passage_chunks(document_id)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating document index: %w", err)
	}

	logger.Info("pgvector vector driver initialized",
		zap.Uint("dimensions", c.Dimensions),
	)

	return &Driver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// Upsert stores records, replacing any existing record with the same chunk ID.
func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if uint(len(r.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: expected %d, got %d for chunk %s",
				vector.ErrDimensionMismatch, d.dimensions, len(r.Embedding), r.ChunkID)
		}

		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for chunk %s: %w", r.ChunkID, err)
		}
		if r.Metadata == nil {
			metaJSON = []byte("{}")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO passage_chunks (chunk_id, document_id, text, start_offset, end_offset, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (chunk_id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				text = EXCLUDED.text,
				start_offset = EXCLUDED.start_offset,
				end_offset = EXCLUDED.end_offset,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding
		`, r.ChunkID, r.DocumentID, r.Text, r.Start, r.End, string(metaJSON), pgvec.NewVector(r.Embedding))
		if err != nil {
			return fmt.Errorf("upserting chunk %s: %w", r.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted chunks to pgvector",
		zap.Int("count", len(records)),
	)

	return nil
}

// Delete removes records by chunk ID. Unknown IDs are ignored.
func (d *Driver) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	if _, err := d.db.ExecContext(ctx,
		`DELETE FROM passage_chunks WHERE chunk_id = ANY($1)`, chunkIDs,
	); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	d.logger.Debug("deleted chunks from pgvector",
		zap.Int("count", len(chunkIDs)),
	)

	return nil
}

// DeleteByDocument removes every record belonging to the document.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := d.db.ExecContext(ctx,
		`DELETE FROM passage_chunks WHERE document_id = $1`, documentID,
	); err != nil {
		return fmt.Errorf("deleting document chunks: %w", err)
	}

	d.logger.Debug("deleted document from pgvector",
		zap.String("document_id", documentID),
	)

	return nil
}

// Search returns the k most similar records to the embedding.
func (d *Driver) Search(ctx context.Context, embedding []float32, k int, filters vector.Filters) ([]vector.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			vector.ErrDimensionMismatch, d.dimensions, len(embedding))
	}

	args := []any{pgvec.NewVector(embedding)}
	where, args, err := buildFilterClause(filters, args)
	if err != nil {
		return nil, err
	}
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT
			chunk_id,
			document_id,
			text,
			start_offset,
			end_offset,
			metadata,
			1 - (embedding <=> $1) AS similarity
		FROM passage_chunks
		%s
		ORDER BY similarity DESC, chunk_id ASC
		LIMIT $%d
	`, where, len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var r vector.Record
		var metaJSON []byte
		var similarity float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Text, &r.Start, &r.End, &metaJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		if len(metaJSON) > 0 && string(metaJSON) != "{}" {
			if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for chunk %s: %w", r.ChunkID, err)
			}
		}

		results = append(results, vector.SearchResult{
			Record: r,
			Score:  float32(similarity),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	vector.SortResults(results)

	d.logger.Debug("queried pgvector",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// ChunkIDs returns every indexed chunk ID in ascending order.
func (d *Driver) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT chunk_id FROM passage_chunks ORDER BY chunk_id`)
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

// Count returns the number of indexed records.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passage_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

// buildFilterClause renders filters as a WHERE fragment, extending args with
// the filter values. Positional parameters continue from len(args)+1.
func buildFilterClause(f vector.Filters, args []any) (string, []any, error) {
	var clauses []string

	if len(f.DocumentIDs) > 0 {
		args = append(args, f.DocumentIDs)
		clauses = append(clauses, fmt.Sprintf("document_id = ANY($%d)", len(args)))
	}

	if len(f.Metadata) > 0 {
		metaJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return "", nil, fmt.Errorf("encoding metadata filter: %w", err)
		}
		args = append(args, string(metaJSON))
		clauses = append(clauses, fmt.Sprintf("metadata @> $%d::jsonb", len(args)))
	}

	if len(clauses) == 0 {
		return "", args, nil
	}

	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
