// Package vectordb provides retrieval backend adapters.
// Clean Architecture: Adapters implementing ports.Retriever and
// ports.ChunkStore over an embedded similarity index.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
)

// SQLiteStore is a persistent chunk index backed by SQLite with brute-force
// cosine scoring. Because every candidate is scored, the doc-type filter and
// similarity threshold apply exactly - no over-fetch multiplier is needed the
// way an ANN index would require.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder ports.EmbeddingService
	dataPath string
}

// NewSQLiteStore opens (or creates) the index at dataPath.
func NewSQLiteStore(dataPath string, embedder ports.EmbeddingService) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "chunks.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		embedder: embedder,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		rowid INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_id TEXT NOT NULL,
		doc_types TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_doc_id ON chunks(doc_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Store saves chunks with their embeddings.
func (s *SQLiteStore) Store(ctx context.Context, chunks []ports.StoredChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (doc_id, doc_types, content, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		typesJSON, err := json.Marshal(chunk.Chunk.DocTypes)
		if err != nil {
			return fmt.Errorf("encoding doc types: %w", err)
		}
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			chunk.Chunk.DocID,
			typesJSON,
			chunk.Chunk.Text,
			embeddingJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	return tx.Commit()
}

// Retrieve embeds the query and returns the most similar chunks honoring the
// doc-type filter and similarity threshold.
func (s *SQLiteStore) Retrieve(ctx context.Context, query string, opts ports.RetrieveOptions) ([]entities.ContextChunk, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, doc_types, content, embedding FROM chunks
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var scored []entities.ContextChunk
	for rows.Next() {
		var (
			docID         string
			typesJSON     []byte
			content       string
			embeddingJSON []byte
		)
		if err := rows.Scan(&docID, &typesJSON, &content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var docTypes []string
		if err := json.Unmarshal(typesJSON, &docTypes); err != nil {
			continue // Skip corrupted rows
		}
		var embedding []float32
		if err := json.Unmarshal(embeddingJSON, &embedding); err != nil {
			continue
		}

		chunk := entities.ContextChunk{
			DocID:      docID,
			DocTypes:   docTypes,
			Text:       content,
			Similarity: cosineSimilarity(queryEmbedding, embedding),
		}
		if matchesOptions(chunk, opts) {
			scored = append(scored, chunk)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return topK(scored, opts.TopK), nil
}

// Clear removes all data from the store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	return err
}

// ChunkCount returns the number of stored chunks.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// matchesOptions applies the doc-type filter and similarity threshold.
func matchesOptions(chunk entities.ContextChunk, opts ports.RetrieveOptions) bool {
	if chunk.Similarity < opts.SimilarityThreshold {
		return false
	}
	if len(opts.DocTypes) == 0 {
		return true
	}
	for _, want := range opts.DocTypes {
		for _, have := range chunk.DocTypes {
			if want == have {
				return true
			}
		}
	}
	return false
}

// topK sorts by similarity descending and cuts the list at k.
func topK(chunks []entities.ContextChunk, k int) []entities.ContextChunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})
	if k > 0 && len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
