package usecases

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
	"github.com/0xcro3dile/adaptiverag-go/internal/llmjson"
	"github.com/0xcro3dile/adaptiverag-go/internal/prompts"
)

// Decomposer splits multi-intent queries into self-contained sub-queries.
// Single Responsibility: Only decomposition logic.
type Decomposer struct {
	llm     ports.Generator
	prompts *prompts.Builder
	logger  *zap.Logger
}

// NewDecomposer creates a Decomposer with injected dependencies.
func NewDecomposer(llm ports.Generator, builder *prompts.Builder, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{llm: llm, prompts: builder, logger: logger}
}

// multiPartIndicators signal that a query bundles several intents.
var multiPartIndicators = []string{
	" and ", " or ", " also ",
	"compare", "difference between", "versus", "vs",
	"both", "either",
	"as well as",
	"additionally",
	"furthermore",
}

// actionWords are the interrogative/action words counted by the heuristic.
var actionWords = []string{"how", "what", "why", "when", "where", "explain", "describe", "show"}

const (
	maxSubQueries    = 4
	minSubQueryWords = 5
)

// ShouldDecompose reports whether a query has multiple independent
// sub-intents. Intentionally conservative: a false negative just skips
// decomposition, which is always safe.
func (d *Decomposer) ShouldDecompose(query string) bool {
	lower := strings.ToLower(query)

	if strings.Count(query, "?") > 1 {
		return true
	}

	hasMultiPart := false
	for _, ind := range multiPartIndicators {
		if strings.Contains(lower, ind) {
			hasMultiPart = true
			break
		}
	}
	if !hasMultiPart {
		return false
	}

	actionCount := 0
	for _, w := range actionWords {
		if strings.Contains(lower, w) {
			actionCount++
		}
	}
	return actionCount >= 2
}

// Decompose splits a query into 2-4 self-contained sub-queries, or returns
// [query] when decomposition is not needed or not usable. Decomposition
// failure is never fatal: any malformed model output falls back to the
// original query.
func (d *Decomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	if !d.ShouldDecompose(query) {
		d.logger.Debug("query does not need decomposition")
		return []string{query}, nil
	}

	prompt, err := d.prompts.Render(prompts.Decompose, prompts.Data{Query: query})
	if err != nil {
		return nil, err
	}

	response, err := d.llm.Generate(ctx, prompt)
	if err != nil {
		// Backend failure is fatal for the request; only parse failures
		// fall back to the original query.
		return nil, err
	}

	subQueries := d.extractSubQueries(response, query)
	d.logger.Info("decomposed query",
		zap.Int("sub_queries", len(subQueries)))
	return subQueries, nil
}

// extractSubQueries validates the model's sub-query list. Sub-queries under
// five words are discarded as too vague to be self-contained; the list is
// capped at four; anything that leaves fewer than two usable sub-queries
// falls back to the original query.
func (d *Decomposer) extractSubQueries(response, original string) []string {
	raw, res := llmjson.StringSlice(response, "sub_queries")
	if !res.OK || len(raw) == 0 {
		d.logger.Warn("invalid sub_queries format, using original query")
		return []string{original}
	}

	var usable []string
	for _, q := range raw {
		if len(strings.Fields(q)) < minSubQueryWords {
			d.logger.Debug("dropping vague sub-query", zap.String("sub_query", q))
			continue
		}
		usable = append(usable, q)
	}

	if len(usable) > maxSubQueries {
		d.logger.Warn("too many sub-queries, limiting",
			zap.Int("got", len(usable)), zap.Int("limit", maxSubQueries))
		usable = usable[:maxSubQueries]
	}

	if len(usable) <= 1 {
		return []string{original}
	}
	return usable
}
