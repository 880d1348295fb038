// Package storage defines the persistence interfaces for document indexes
// and the errors shared by all backend implementations. Each personality
// owns one namespace; a namespace is self-contained and independently
// loadable and rebuildable.
package storage

import (
	"context"
	"errors"

	"github.com/civiclens/avatar/pkg/types"
)

// Common errors returned by storage operations.
var (
	// ErrNotFound indicates the requested namespace (or record) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates the backing storage cannot be reached.
	// Engines degrade to fallback mode on this error instead of failing
	// requests.
	ErrUnavailable = errors.New("index storage unavailable")
)

// ChunkStore persists the chunks and embeddings of one index namespace
// and answers nearest-neighbour queries over them. Implementations must
// support concurrent Search calls; AddChunk is only invoked during the
// single-writer build phase.
type ChunkStore interface {
	// AddChunk stores a chunk with its embedding vector. Insertion order
	// is preserved and used for stable tie-breaking in Search.
	AddChunk(ctx context.Context, chunk types.Chunk, embedding []float32) error

	// Search returns the k chunks nearest to the query embedding by
	// cosine similarity, ties broken by insertion order.
	Search(ctx context.Context, query []float32, k int) ([]types.Chunk, error)

	// Count returns the number of chunks in the namespace.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}

// Opener creates and opens chunk stores by namespace.
type Opener interface {
	// Create opens the namespace for a fresh build, discarding any
	// previously persisted content.
	Create(ctx context.Context, namespace string) (ChunkStore, error)

	// Open opens a previously persisted namespace. Returns ErrNotFound
	// when the namespace has never been built; it never triggers a build.
	Open(ctx context.Context, namespace string) (ChunkStore, error)

	// Remove discards all persisted content for a namespace, so a later
	// Open reports ErrNotFound. Removing an absent namespace is a no-op.
	Remove(ctx context.Context, namespace string) error

	// Close releases any resources shared across namespaces.
	Close() error
}
