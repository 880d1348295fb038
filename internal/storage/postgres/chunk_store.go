// Package postgres implements storage.ChunkStore on PostgreSQL with the
// pgvector extension. All namespaces share one database; rows are scoped
// by a namespace column and ranked server-side with the vector cosine
// distance operator.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pgvector/pgvector-go"

	"github.com/civiclens/avatar/internal/storage"
	"github.com/civiclens/avatar/pkg/types"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS avatar_chunks (
	seq        BIGSERIAL PRIMARY KEY,
	namespace  TEXT NOT NULL,
	id         TEXT NOT NULL,
	source     TEXT NOT NULL,
	position   INTEGER NOT NULL,
	content    TEXT NOT NULL,
	embedding  vector NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_avatar_chunks_namespace ON avatar_chunks (namespace);
`

// Opener hands out namespace-scoped views of a shared pgvector database.
type Opener struct {
	db *sql.DB
}

// NewOpener connects to PostgreSQL and ensures the chunk schema exists.
func NewOpener(dsn string) (*Opener, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", storage.ErrUnavailable, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", storage.ErrUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %v", storage.ErrUnavailable, err)
	}

	return &Opener{db: db}, nil
}

// Create returns a store for a fresh build of the namespace, deleting
// any previously persisted chunks.
func (o *Opener) Create(ctx context.Context, namespace string) (storage.ChunkStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", storage.ErrInvalidInput)
	}

	if _, err := o.db.ExecContext(ctx, "DELETE FROM avatar_chunks WHERE namespace = $1", namespace); err != nil {
		return nil, fmt.Errorf("failed to truncate namespace %q: %w", namespace, err)
	}

	return &ChunkStore{db: o.db, namespace: namespace}, nil
}

// Open returns a store for a previously built namespace. Returns
// storage.ErrNotFound when the namespace holds no chunks.
func (o *Opener) Open(ctx context.Context, namespace string) (storage.ChunkStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", storage.ErrInvalidInput)
	}

	var count int
	err := o.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM avatar_chunks WHERE namespace = $1", namespace).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check namespace %q: %v", storage.ErrUnavailable, namespace, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: namespace %q", storage.ErrNotFound, namespace)
	}

	return &ChunkStore{db: o.db, namespace: namespace}, nil
}

// Remove deletes all chunks persisted for the namespace.
func (o *Opener) Remove(ctx context.Context, namespace string) error {
	if namespace == "" {
		return fmt.Errorf("%w: namespace is required", storage.ErrInvalidInput)
	}
	if _, err := o.db.ExecContext(ctx, "DELETE FROM avatar_chunks WHERE namespace = $1", namespace); err != nil {
		return fmt.Errorf("failed to remove namespace %q: %w", namespace, err)
	}
	return nil
}

// Close closes the shared database handle. Stores handed out earlier
// become unusable.
func (o *Opener) Close() error {
	return o.db.Close()
}

// ChunkStore is a namespace-scoped view of the shared chunk table.
type ChunkStore struct {
	db        *sql.DB
	namespace string
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
		INSERT INTO avatar_chunks (namespace, id, source, position, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace, id) DO UPDATE SET
			source = EXCLUDED.source,
			position = EXCLUDED.position,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`, s.namespace, chunk.ID, chunk.Source, chunk.Position, chunk.Text, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to store chunk: %w", err)
	}
	return nil
}

// Search returns the k chunks nearest to the query vector by cosine
// distance. Ties keep insertion order via the seq column.
func (s *ChunkStore) Search(ctx context.Context, query []float32, k int) ([]types.Chunk, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query embedding cannot be empty", storage.ErrInvalidInput)
	}
	if k <= 0 {
		return []types.Chunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, position, content
		FROM avatar_chunks
		WHERE namespace = $1
		ORDER BY embedding <=> $2, seq ASC
		LIMIT $3
	`, s.namespace, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Position, &chunk.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}
	if results == nil {
		results = []types.Chunk{}
	}
	return results, nil
}

// Count returns the number of chunks in the namespace.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM avatar_chunks WHERE namespace = $1", s.namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Close is a no-op: the database handle is owned by the Opener.
func (s *ChunkStore) Close() error {
	return nil
}

var (
	_ storage.ChunkStore = (*ChunkStore)(nil)
	_ storage.Opener     = (*Opener)(nil)
)
