package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteIndex is an Index backed by a local SQLite database. Vectors are
// stored as little-endian float32 blobs and scored with a brute-force cosine
// scan, which is ample for note-library scale.
type SQLiteIndex struct {
	// db is the underlying connection pool.
	db *sql.DB
}

// Open opens (or creates) a SQLiteIndex at the given path and bootstraps the
// schema. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteIndex, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteIndex{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteIndex) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS collections (
    name        TEXT    PRIMARY KEY,
    dimensions  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS vectors (
    vector_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    collection  TEXT    NOT NULL,
    embedding   BLOB    NOT NULL,
    metadata    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vectors_collection ON vectors (collection);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("vector: migrate: %w", err)
	}
	return nil
}

// CreateIndex idempotently provisions a collection of the given width.
func (s *SQLiteIndex) CreateIndex(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("vector: collection %q: dimensions must be positive, got %d", name, dimensions)
	}

	var existing int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions FROM collections WHERE name = ?`, name).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO collections (name, dimensions) VALUES (?, ?)`, name, dimensions); err != nil {
			return fmt.Errorf("vector: create collection %q: %w", name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("vector: create collection %q: %w", name, err)
	case existing != dimensions:
		return fmt.Errorf("vector: collection %q already exists with %d dimensions, requested %d — delete the index to change width",
			name, existing, dimensions)
	default:
		return nil
	}
}

// dimensions returns the provisioned width of a collection.
func (s *SQLiteIndex) dimensions(ctx context.Context, name string) (int, error) {
	var dims int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions FROM collections WHERE name = ?`, name).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("vector: collection %q does not exist", name)
	}
	if err != nil {
		return 0, fmt.Errorf("vector: collection %q: %w", name, err)
	}
	return dims, nil
}

// Upsert stores vectors with positionally paired metadata.
func (s *SQLiteIndex) Upsert(ctx context.Context, name string, vectors [][]float32, metadata []Metadata) error {
	if len(vectors) != len(metadata) {
		return fmt.Errorf("vector: upsert: %d vectors but %d metadata entries", len(vectors), len(metadata))
	}

	dims, err := s.dimensions(ctx, name)
	if err != nil {
		return err
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector: upsert: vector %d has %d dimensions, collection %q expects %d",
				i, len(v), name, dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vector: upsert: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO vectors (collection, embedding, metadata) VALUES (?, ?, ?)`
	for i, v := range vectors {
		meta, err := json.Marshal(metadata[i])
		if err != nil {
			return fmt.Errorf("vector: upsert: marshal metadata %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, q, name, encodeVector(v), string(meta)); err != nil {
			return fmt.Errorf("vector: upsert: insert %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vector: upsert: commit: %w", err)
	}
	return nil
}

// Query scans the collection and returns the topK rows by cosine similarity,
// highest first.
func (s *SQLiteIndex) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT embedding, metadata FROM vectors WHERE collection = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("vector: query %q: %w", name, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var blob []byte
		var metaJSON string
		if err := rows.Scan(&blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("vector: query scan: %w", err)
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vector: query decode: %w", err)
		}
		if len(stored) != len(vector) {
			continue // row from a previous width; unreachable once rebuilt
		}
		var meta Metadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("vector: query metadata: %w", err)
		}
		matches = append(matches, Match{Metadata: meta, Score: cosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector: query rows: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByID removes every row whose metadata document id matches and
// returns the deleted payloads. Zero matches surfaces ErrNotFound.
func (s *SQLiteIndex) DeleteByID(ctx context.Context, name string, documentID int64) ([]Metadata, error) {
	const q = `
DELETE FROM vectors
WHERE  collection = ?
AND    json_extract(metadata, '$.documentId') = ?
RETURNING metadata`

	rows, err := s.db.QueryContext(ctx, q, name, documentID)
	if err != nil {
		return nil, fmt.Errorf("vector: delete by id %d: %w", documentID, err)
	}
	defer rows.Close()

	var deleted []Metadata
	for rows.Next() {
		var metaJSON string
		if err := rows.Scan(&metaJSON); err != nil {
			return nil, fmt.Errorf("vector: delete by id scan: %w", err)
		}
		var meta Metadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("vector: delete by id metadata: %w", err)
		}
		deleted = append(deleted, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector: delete by id rows: %w", err)
	}

	if len(deleted) == 0 {
		return nil, fmt.Errorf("vector: delete by id %d in %q: %w", documentID, name, ErrNotFound)
	}
	return deleted, nil
}

// TruncateIndex removes all rows but keeps the collection row.
func (s *SQLiteIndex) TruncateIndex(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("vector: truncate %q: %w", name, err)
	}
	return nil
}

// DeleteIndex drops the collection and all its rows.
func (s *SQLiteIndex) DeleteIndex(ctx context.Context, name string) error {
	if err := s.TruncateIndex(ctx, name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("vector: delete index %q: %w", name, err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteIndex) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("vector: close: %w", err)
	}
	return nil
}

// encodeVector serialises a vector as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserialises a little-endian float32 blob.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Returns 0 for zero-magnitude inputs.
func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
