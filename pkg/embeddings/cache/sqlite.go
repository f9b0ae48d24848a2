package cache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore persists cached vectors in a SQLite database so they survive
// process restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// SQLiteConfig holds configuration for the SQLite store.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewSQLiteStore creates a durable vector store backed by SQLite.
func NewSQLiteStore(cfg SQLiteConfig, logger *zap.Logger) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS embedding_cache (
			model_id     TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			embedding    BLOB NOT NULL,
			PRIMARY KEY (model_id, content_hash)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	logger.Debug("sqlite embedding cache initialized",
		zap.String("db_path", cfg.DBPath),
	)

	return &SQLiteStore{
		db:     db,
		logger: logger,
	}, nil
}

// Get returns the cached vector for (modelID, contentHash).
func (s *SQLiteStore) Get(ctx context.Context, modelID, contentHash string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM embedding_cache WHERE model_id = ? AND content_hash = ?`,
		modelID, contentHash,
	).Scan(&blob)

	switch err {
	case nil:
		vector, err := deserializeFloat32(blob)
		if err != nil {
			return nil, false, fmt.Errorf("deserializing cached embedding: %w", err)
		}
		return vector, true, nil
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}
}

// Put stores a vector under (modelID, contentHash). Existing entries are
// left untouched.
func (s *SQLiteStore) Put(ctx context.Context, modelID, contentHash string, vector []float32) error {
	blob, err := serializeFloat32(vector)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO embedding_cache(model_id, content_hash, embedding) VALUES (?, ?, ?)`,
		modelID, contentHash, blob,
	); err != nil {
		return fmt.Errorf("inserting cache entry: %w", err)
	}

	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice.
func serializeFloat32(v []float32) ([]byte, error) {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
