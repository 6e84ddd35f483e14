package vectordb

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
)

// InMemoryStore is a simple in-memory chunk index for development and tests.
// Open-Closed: interchangeable with SQLiteStore without touching usecases.
type InMemoryStore struct {
	mu       sync.RWMutex
	embedder ports.EmbeddingService
	chunks   []ports.StoredChunk
}

// NewInMemoryStore creates a new in-memory chunk index.
func NewInMemoryStore(embedder ports.EmbeddingService) *InMemoryStore {
	return &InMemoryStore{embedder: embedder}
}

// Store saves chunks with their embeddings.
func (s *InMemoryStore) Store(ctx context.Context, chunks []ports.StoredChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Retrieve embeds the query and returns the most similar chunks honoring the
// doc-type filter and similarity threshold.
func (s *InMemoryStore) Retrieve(ctx context.Context, query string, opts ports.RetrieveOptions) ([]entities.ContextChunk, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []entities.ContextChunk
	for _, stored := range s.chunks {
		chunk := stored.Chunk
		chunk.Similarity = cosineSimilarity(queryEmbedding, stored.Embedding)
		if matchesOptions(chunk, opts) {
			scored = append(scored, chunk)
		}
	}

	return topK(scored, opts.TopK), nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = nil
	return nil
}

// Len returns the number of stored chunks.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
