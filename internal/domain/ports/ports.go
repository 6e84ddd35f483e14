// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
// This follows Dependency Inversion Principle (DIP) strictly.
package ports

import (
	"context"
	"errors"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
)

// ErrGenerationTimeout classifies a generation call that exceeded its
// deadline. Adapters map their transport deadline errors onto this so the
// caller can distinguish a slow backend from an unavailable one.
var ErrGenerationTimeout = errors.New("generation timeout")

// RetrieveOptions narrows a retrieval call.
// A nil/empty DocTypes means no category filtering.
type RetrieveOptions struct {
	TopK                int
	DocTypes            []string
	SimilarityThreshold float64
}

// Retriever finds the most relevant knowledge-base chunks for a query.
// Implementations must never return chunks below the similarity threshold
// or outside the doc-type filter; fewer than TopK results means the index
// was exhausted or the filter rejected the remainder.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]entities.ContextChunk, error)
}

// Generator produces a language-model completion for a prompt.
// The raw text is returned as-is; JSON parsing and fallback extraction are
// the caller's responsibility, not the port's.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier maps a query to zero or more doc-type tags used to filter
// retrieval. Treated as a black box returning a set of tags.
type Classifier interface {
	Classify(ctx context.Context, query string) ([]string, error)
}

// EmbeddingService generates vector embeddings for text.
// Interface Segregation: Only embedding responsibility, nothing else.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StoredChunk is a chunk plus its embedding as persisted in the index.
type StoredChunk struct {
	Chunk     entities.ContextChunk
	Embedding []float32
}

// ChunkStore loads and replaces the chunk index backing a Retriever.
// The core never writes through this interface; it exists for the
// boundary-side loading step of the external ingestion pipeline.
type ChunkStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []StoredChunk) error

	// Clear removes all data from the store.
	Clear(ctx context.Context) error
}

// FileWatcher monitors a path for changes.
type FileWatcher interface {
	// Watch starts monitoring the path and emits events.
	Watch(ctx context.Context, path string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
