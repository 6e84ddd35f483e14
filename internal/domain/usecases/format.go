package usecases

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
)

// formatContext renders retrieved chunks into the documentation block fed to
// prompts, one "[DOC-ID] (relevance, types)" section per chunk.
func formatContext(chunks []entities.ContextChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf(
			"[%s] (relevance: %.2f, type: %s)\n%s\n",
			c.DocID, c.Similarity, strings.Join(c.DocTypes, ", "), c.Text,
		))
	}
	return strings.Join(parts, "\n---\n")
}

// sourceIDs lists the doc ids of the chunks actually used as generation
// context.
func sourceIDs(chunks []entities.ContextChunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.DocID)
	}
	return ids
}

// meanSimilarity averages chunk similarity scores; 0.0 for an empty slice.
func meanSimilarity(chunks []entities.ContextChunk) float64 {
	if len(chunks) == 0 {
		return 0.0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Similarity
	}
	return sum / float64(len(chunks))
}

// dedupeByDocID keeps the first chunk seen for each doc id, preserving order.
func dedupeByDocID(chunks []entities.ContextChunk) []entities.ContextChunk {
	seen := make(map[string]bool, len(chunks))
	var unique []entities.ContextChunk
	for _, c := range chunks {
		if c.DocID == "" || seen[c.DocID] {
			continue
		}
		seen[c.DocID] = true
		unique = append(unique, c)
	}
	return unique
}
