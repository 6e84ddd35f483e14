// Package loader loads knowledge-base chunk metadata into a chunk store.
// Chunking and embedding of source documents happen in the external
// ingestion pipeline; this adapter covers the boundary-side loading step.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
)

// chunkRecord mirrors one entry of the ingestion pipeline's chunk metadata
// file.
type chunkRecord struct {
	ChunkID string   `json:"chunk_id"`
	DocID   string   `json:"doc_id"`
	DocType []string `json:"doc_type"`
	Service string   `json:"service"`
	Text    string   `json:"text"`
}

// ChunkLoader reads a chunk metadata JSON file, embeds the chunks, and
// replaces the contents of a chunk store.
type ChunkLoader struct {
	embedder ports.EmbeddingService
	store    ports.ChunkStore
	logger   *zap.Logger
}

// NewChunkLoader creates a ChunkLoader with injected dependencies.
func NewChunkLoader(embedder ports.EmbeddingService, store ports.ChunkStore, logger *zap.Logger) *ChunkLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChunkLoader{embedder: embedder, store: store, logger: logger}
}

// Load reads the metadata file at path and replaces the store's contents.
// Records without a doc id or text are skipped.
func (l *ChunkLoader) Load(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading chunk metadata: %w", err)
	}

	var records []chunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("parsing chunk metadata: %w", err)
	}

	var (
		texts  []string
		chunks []ports.StoredChunk
	)
	for _, rec := range records {
		if rec.DocID == "" || rec.Text == "" {
			l.logger.Warn("skipping incomplete chunk record", zap.String("chunk_id", rec.ChunkID))
			continue
		}
		texts = append(texts, rec.Text)
		chunks = append(chunks, ports.StoredChunk{
			Chunk: entities.ContextChunk{
				DocID:    rec.DocID,
				DocTypes: rec.DocType,
				Text:     rec.Text,
			},
		})
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("chunk metadata %s contained no usable chunks", path)
	}

	embeddings, err := l.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := l.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clearing chunk store: %w", err)
	}
	if err := l.store.Store(ctx, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}

	l.logger.Info("loaded chunk metadata",
		zap.String("path", path), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
