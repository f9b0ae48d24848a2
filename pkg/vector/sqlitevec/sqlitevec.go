// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/vector"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
//
// vec0 virtual tables key rows by integer rowid, so chunk records live in a
// plain mapping table (vec_chunks) and embeddings live in the vec0 table
// (vec_embeddings) under the same rowid.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Required; the vec0 table is created with a fixed width.
	Dimensions uint
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_vec_chunks_document ON vec_chunks(document_id)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating document index: %w", err)
	}

	// Create the vec0 virtual table for vector storage and KNN queries.
	// Cosine distance matches the similarity contract: score = 1 - distance.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
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

		embBlob := serializeFloat32(r.Embedding)

		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for chunk %s: %w", r.ChunkID, err)
		}

		// Check if the chunk already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_chunks WHERE chunk_id = ?`, r.ChunkID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_chunks SET document_id = ?, text = ?, start_offset = ?, end_offset = ?, metadata = ? WHERE rowid = ?`,
				r.DocumentID, r.Text, r.Start, r.End, string(metaJSON), existingRowID,
			); err != nil {
				return fmt.Errorf("updating chunk %s: %w", r.ChunkID, err)
			}

			// Update embedding in vec0 table via DELETE + INSERT
			// (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for chunk %s: %w", r.ChunkID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for chunk %s: %w", r.ChunkID, err)
			}
		case sql.ErrNoRows:
			// New chunk — insert into mapping table first to get the rowid
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_chunks(chunk_id, document_id, text, start_offset, end_offset, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
				r.ChunkID, r.DocumentID, r.Text, r.Start, r.End, string(metaJSON),
			)
			if err != nil {
				return fmt.Errorf("inserting chunk %s: %w", r.ChunkID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for chunk %s: %w", r.ChunkID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for chunk %s: %w", r.ChunkID, err)
			}
		default:
			return fmt.Errorf("checking for existing chunk %s: %w", r.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted chunks to sqlite-vec",
		zap.Int("count", len(records)),
	)

	return nil
}

// Delete removes records by chunk ID. Unknown IDs are ignored.
func (d *Driver) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	query := fmt.Sprintf(
		`SELECT rowid FROM vec_chunks WHERE chunk_id IN (%s)`, inClause,
	)
	rowIDs, err := collectRowIDs(ctx, tx, query, args...)
	if err != nil {
		return err
	}

	// Delete embeddings from vec0 table
	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	deleteQuery := fmt.Sprintf(
		`DELETE FROM vec_chunks WHERE chunk_id IN (%s)`, inClause,
	)
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted chunks from sqlite-vec",
		zap.Int("count", len(chunkIDs)),
	)

	return nil
}

// DeleteByDocument removes every record belonging to the document.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rowIDs, err := collectRowIDs(ctx, tx,
		`SELECT rowid FROM vec_chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return err
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vec_chunks WHERE document_id = ?`, documentID,
	); err != nil {
		return fmt.Errorf("deleting document chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted document from sqlite-vec",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(rowIDs)),
	)

	return nil
}

// Search returns the k most similar records to the embedding. Unfiltered
// searches use the vec0 KNN index; filtered searches fall back to a scalar
// cosine-distance scan over the filtered candidate set.
func (d *Driver) Search(ctx context.Context, embedding []float32, k int, filters vector.Filters) ([]vector.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			vector.ErrDimensionMismatch, d.dimensions, len(embedding))
	}

	queryBlob := serializeFloat32(embedding)

	var rows *sql.Rows
	var err error

	if filters.Empty() {
		// KNN query via vec0 MATCH, joined back to hydrate chunk fields.
		rows, err = d.db.QueryContext(ctx, `
			SELECT
				c.chunk_id,
				c.document_id,
				c.text,
				c.start_offset,
				c.end_offset,
				c.metadata,
				ve.distance
			FROM vec_embeddings ve
			INNER JOIN vec_chunks c ON c.rowid = ve.rowid
			WHERE ve.embedding MATCH ?
				AND ve.k = ?
			ORDER BY ve.distance
		`, queryBlob, k)
	} else {
		where, args := buildFilterClause(filters)
		args = append([]any{queryBlob}, args...)
		args = append(args, k)

		// vec0 KNN queries cannot carry extra WHERE terms, so filtered
		// searches score the candidate set with the scalar distance function.
		query := fmt.Sprintf(`
			SELECT
				c.chunk_id,
				c.document_id,
				c.text,
				c.start_offset,
				c.end_offset,
				c.metadata,
				vec_distance_cosine(ve.embedding, ?) AS distance
			FROM vec_chunks c
			INNER JOIN vec_embeddings ve ON ve.rowid = c.rowid
			WHERE %s
			ORDER BY distance
			LIMIT ?
		`, where)
		rows, err = d.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var r vector.Record
		var metaJSON string
		var distance float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Text, &r.Start, &r.End, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for chunk %s: %w", r.ChunkID, err)
			}
		}

		results = append(results, vector.SearchResult{
			Record: r,
			// Cosine distance is 1 - similarity, so invert it back.
			Score: float32(1.0 - distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	vector.SortResults(results)

	d.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// ChunkIDs returns every indexed chunk ID in ascending order.
func (d *Driver) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT chunk_id FROM vec_chunks ORDER BY chunk_id`)
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
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

// collectRowIDs runs a rowid query inside tx and drains the cursor before
// returning, since SQLite transactions dislike interleaved statements.
func collectRowIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rowids: %w", err)
	}
	defer rows.Close()

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			return nil, fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rowids: %w", err)
	}

	return rowIDs, nil
}

// buildFilterClause renders filters as a SQL WHERE fragment over vec_chunks.
func buildFilterClause(f vector.Filters) (string, []any) {
	var clauses []string
	var args []any

	if len(f.DocumentIDs) > 0 {
		placeholders := make([]string, len(f.DocumentIDs))
		for i, id := range f.DocumentIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, fmt.Sprintf("c.document_id IN (%s)", strings.Join(placeholders, ",")))
	}

	for key, value := range f.Metadata {
		clauses = append(clauses, "json_extract(c.metadata, ?) = ?")
		args = append(args, "$."+key, value)
	}

	return strings.Join(clauses, " AND "), args
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
