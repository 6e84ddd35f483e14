// Package classifier provides the query classifier adapter.
// Clean Architecture: Adapter implementing ports.Classifier. The classifier
// is a thin black box over the generation backend - it maps a query onto the
// closed doc-type vocabulary used to filter retrieval.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
	"github.com/0xcro3dile/adaptiverag-go/internal/llmjson"
	"github.com/0xcro3dile/adaptiverag-go/internal/prompts"
)

const maxDocTypes = 4

// LLMClassifier implements ports.Classifier using the generation backend.
type LLMClassifier struct {
	llm     ports.Generator
	prompts *prompts.Builder
	logger  *zap.Logger
}

// NewLLMClassifier creates a classifier adapter.
func NewLLMClassifier(llm ports.Generator, builder *prompts.Builder, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{llm: llm, prompts: builder, logger: logger}
}

// Classify maps a query to up to four doc-type tags. Tags outside the
// allowed vocabulary are silently dropped; an unparseable response falls
// back to scanning the text for known tags, then to ["reference"].
func (c *LLMClassifier) Classify(ctx context.Context, query string) ([]string, error) {
	prompt, err := c.prompts.Render(prompts.Classify, prompts.Data{
		Query:    query,
		DocTypes: strings.Join(entities.AllowedDocTypes, ", "),
	})
	if err != nil {
		return nil, err
	}

	response, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classifying query: %w", err)
	}

	return c.extractDocTypes(response), nil
}

// extractDocTypes pulls valid tags out of the model response.
func (c *LLMClassifier) extractDocTypes(response string) []string {
	raw, res := llmjson.StringSlice(response, "doc_types")
	if res.OK {
		var valid []string
		for _, dt := range raw {
			if entities.IsAllowedDocType(dt) {
				valid = append(valid, dt)
				if len(valid) >= maxDocTypes {
					break
				}
			}
		}
		if len(valid) > 0 {
			return valid
		}
	}

	// Last resort: scan the response for any allowed tag it mentions.
	lower := strings.ToLower(response)
	var found []string
	for _, dt := range entities.AllowedDocTypes {
		if strings.Contains(lower, dt) {
			found = append(found, dt)
			if len(found) >= maxDocTypes {
				break
			}
		}
	}
	if len(found) > 0 {
		return found
	}

	c.logger.Warn("classifier response unusable, defaulting to reference")
	return []string{"reference"}
}
