// Package sqlite implements storage.ChunkStore on SQLite via
// modernc.org/sqlite. Each index namespace is one self-contained database
// file under the index root, so a personality's index can be copied,
// deleted, or rebuilt without touching the others.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/civiclens/avatar/internal/storage"
	"github.com/civiclens/avatar/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	source    TEXT NOT NULL,
	position  INTEGER NOT NULL,
	content   TEXT NOT NULL,
	embedding BLOB NOT NULL,
	dimension INTEGER NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Opener creates and opens per-namespace SQLite chunk stores under a
// root directory.
type Opener struct {
	root string
}

// NewOpener creates an opener rooted at dir. The directory is created on
// first build, not here, so a read-only deployment can still Open.
func NewOpener(dir string) *Opener {
	return &Opener{root: dir}
}

// Create opens the namespace database for a fresh build, truncating any
// previously persisted chunks.
func (o *Opener) Create(ctx context.Context, namespace string) (storage.ChunkStore, error) {
	path, err := o.namespacePath(namespace)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(o.root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create index directory: %v", storage.ErrUnavailable, err)
	}

	store, err := openChunkStore(path)
	if err != nil {
		return nil, err
	}

	if _, err := store.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to truncate namespace %q: %w", namespace, err)
	}

	return store, nil
}

// Open opens a previously persisted namespace. Returns storage.ErrNotFound
// when no database file exists for it, or when the file holds no chunks.
// A successful build always stores at least one chunk, so an empty
// database is the remnant of an interrupted build, not a usable index.
func (o *Opener) Open(ctx context.Context, namespace string) (storage.ChunkStore, error) {
	path, err := o.namespacePath(namespace)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: namespace %q", storage.ErrNotFound, namespace)
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	store, err := openChunkStore(path)
	if err != nil {
		return nil, err
	}
	count, err := store.Count(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if count == 0 {
		_ = store.Close()
		return nil, fmt.Errorf("%w: namespace %q", storage.ErrNotFound, namespace)
	}
	return store, nil
}

// Remove deletes the namespace database file and its WAL sidecars.
func (o *Opener) Remove(_ context.Context, namespace string) error {
	path, err := o.namespacePath(namespace)
	if err != nil {
		return err
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove namespace %q: %w", namespace, err)
		}
	}
	return nil
}

// Close is a no-op: each namespace owns its own database handle.
func (o *Opener) Close() error {
	return nil
}

// namespacePath maps a namespace to its database file, rejecting names
// that would escape the index root.
func (o *Opener) namespacePath(namespace string) (string, error) {
	if namespace == "" {
		return "", fmt.Errorf("%w: namespace is required", storage.ErrInvalidInput)
	}
	if strings.ContainsAny(namespace, `/\`) || namespace == "." || namespace == ".." {
		return "", fmt.Errorf("%w: invalid namespace %q", storage.ErrInvalidInput, namespace)
	}
	return filepath.Join(o.root, namespace+".db"), nil
}

// ChunkStore implements storage.ChunkStore on one SQLite database file.
type ChunkStore struct {
	db *sql.DB
}

// openChunkStore opens a SQLite database, configures WAL mode, and
// creates the schema.
func openChunkStore(path string) (*ChunkStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", storage.ErrUnavailable, err)
	}

	// SQLite supports only one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load; WAL
	// mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s failed: %v", storage.ErrUnavailable, pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %v", storage.ErrUnavailable, err)
	}

	return &ChunkStore{db: db}, nil
}

// AddChunk stores a chunk with its embedding.
func (s *ChunkStore) AddChunk(ctx context.Context, chunk types.Chunk, embedding []float32) error {
	if chunk.ID == "" {
		return fmt.Errorf("%w: chunk ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, source, position, content, embedding, dimension)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			position = excluded.position,
			content = excluded.content,
			embedding = excluded.embedding,
			dimension = excluded.dimension
	`, chunk.ID, chunk.Source, chunk.Position, chunk.Text, serializeEmbedding(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("failed to store chunk: %w", err)
	}
	return nil
}

// Search ranks every stored chunk by cosine similarity to the query
// vector and returns the top k. Candidates are scanned in insertion
// order and ranked with a stable sort, so equal scores keep input order.
func (s *ChunkStore) Search(ctx context.Context, query []float32, k int) ([]types.Chunk, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query embedding cannot be empty", storage.ErrInvalidInput)
	}
	if k <= 0 {
		return []types.Chunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, position, content, embedding, dimension
		FROM chunks
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		chunk types.Chunk
		score float64
	}
	var candidates []scored

	for rows.Next() {
		var chunk types.Chunk
		var blob []byte
		var dim int
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Position, &chunk.Text, &blob, &dim); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		embedding, err := deserializeEmbedding(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		candidates = append(candidates, scored{chunk, cosineSimilarity(query, embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]types.Chunk, 0, k)
	for _, c := range candidates[:k] {
		results = append(results, c.chunk)
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Close closes the database handle.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}

// serializeEmbedding converts a float32 slice to little-endian bytes.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts little-endian bytes back to a float32
// slice, validating the buffer against the stored dimension.
func deserializeEmbedding(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("embedding size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}
	embedding := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding, nil
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Compile-time assertions.
var (
	_ storage.ChunkStore = (*ChunkStore)(nil)
	_ storage.Opener     = (*Opener)(nil)
)
