// Package index builds and queries per-personality retrieval indexes:
// documents are chunked, embedded, and persisted through a
// storage.Opener, then queried by cosine similarity at answer time.
package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/civiclens/avatar/internal/llm"
	"github.com/civiclens/avatar/internal/storage"
	"github.com/civiclens/avatar/pkg/types"
)

// DefaultTopK is how many chunks a query returns.
const DefaultTopK = 4

// PlaceholderSource marks the single synthetic chunk indexed when a
// personality has no usable documents.
const PlaceholderSource = "builtin:placeholder"

const placeholderText = "No reference documents have been provided for this assistant. " +
	"Answers rely on general knowledge only."

// Manager builds and opens namespace indexes. Builds for the same
// namespace are serialized; different namespaces build concurrently.
type Manager struct {
	opener   storage.Opener
	embedder llm.EmbeddingGenerator
	chunker  *Chunker
	docRoot  string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates an index manager. docRoot is the directory holding
// source documents, either per-namespace subdirectories or shared files.
func NewManager(opener storage.Opener, embedder llm.EmbeddingGenerator, docRoot string) *Manager {
	return &Manager{
		opener:   opener,
		embedder: embedder,
		chunker:  NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		docRoot:  docRoot,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Ensure returns the index for a namespace, building it first if no
// persisted index exists.
func (m *Manager) Ensure(ctx context.Context, namespace string) (*Index, error) {
	store, err := m.opener.Open(ctx, namespace)
	if err == nil {
		return &Index{store: store, embedder: m.embedder, topK: DefaultTopK}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return m.Build(ctx, namespace)
}

// Build constructs the namespace index from scratch, replacing any
// existing one. When the namespace has no usable documents the index is
// built from a single placeholder chunk, so Ensure will not rebuild on
// every request.
func (m *Manager) Build(ctx context.Context, namespace string) (*Index, error) {
	lock := m.buildLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	store, err := m.opener.Create(ctx, namespace)
	if err != nil {
		return nil, err
	}

	docs := m.loadSources(namespace)
	indexed := 0
	for _, doc := range docs {
		pieces := m.chunker.Split(doc.Text)
		for pos, piece := range pieces {
			embedding, err := m.embedder.Embed(ctx, piece)
			if err != nil {
				m.discard(ctx, store, namespace)
				return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", pos, doc.Source, err)
			}
			chunk := types.Chunk{
				ID:       chunkID(namespace),
				Text:     piece,
				Source:   doc.Source,
				Position: pos,
			}
			if err := store.AddChunk(ctx, chunk, embedding); err != nil {
				m.discard(ctx, store, namespace)
				return nil, fmt.Errorf("failed to index chunk from %s: %w", doc.Source, err)
			}
			indexed++
		}
	}

	if indexed == 0 {
		embedding, err := m.embedder.Embed(ctx, placeholderText)
		if err != nil {
			m.discard(ctx, store, namespace)
			return nil, fmt.Errorf("failed to embed placeholder: %w", err)
		}
		chunk := types.Chunk{
			ID:     chunkID(namespace),
			Text:   placeholderText,
			Source: PlaceholderSource,
		}
		if err := store.AddChunk(ctx, chunk, embedding); err != nil {
			m.discard(ctx, store, namespace)
			return nil, fmt.Errorf("failed to index placeholder: %w", err)
		}
		log.Printf("Built empty index for namespace %s (no documents found)", namespace)
	} else {
		log.Printf("Built index for namespace %s: %d chunks from %d documents", namespace, indexed, len(docs))
	}

	return &Index{store: store, embedder: m.embedder, topK: DefaultTopK}, nil
}

// discard drops the partial namespace written by a failed build. Leaving
// it behind would let the next Ensure open a half-built index instead of
// rebuilding once the embedder recovers.
func (m *Manager) discard(ctx context.Context, store storage.ChunkStore, namespace string) {
	_ = store.Close()
	if err := m.opener.Remove(ctx, namespace); err != nil {
		log.Printf("Failed to clean up partial index for namespace %s: %v", namespace, err)
	}
}

// loadSources finds documents for a namespace: a dedicated subdirectory
// wins, otherwise files at the document root are shared by everyone.
func (m *Manager) loadSources(namespace string) []Document {
	if docs := LoadDocuments(filepath.Join(m.docRoot, namespace)); len(docs) > 0 {
		return docs
	}
	return LoadDocuments(m.docRoot)
}

func (m *Manager) buildLock(namespace string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[namespace]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[namespace] = lock
	}
	return lock
}

// chunkID generates a chunk identifier scoped to its namespace.
func chunkID(namespace string) string {
	return fmt.Sprintf("chunk:%s:%s", namespace, uuid.New().String()[:8])
}

// Index is a read view over one namespace's persisted chunks. Safe for
// concurrent queries.
type Index struct {
	store    storage.ChunkStore
	embedder llm.EmbeddingGenerator
	topK     int
}

// Query embeds the question and returns the most similar chunks.
func (idx *Index) Query(ctx context.Context, question string) ([]types.Chunk, error) {
	embedding, err := idx.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return idx.store.Search(ctx, embedding, idx.topK)
}

// Count reports how many chunks the index holds.
func (idx *Index) Count(ctx context.Context) (int, error) {
	return idx.store.Count(ctx)
}

// Close releases the underlying store.
func (idx *Index) Close() error {
	return idx.store.Close()
}
