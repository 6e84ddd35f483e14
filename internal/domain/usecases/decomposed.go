package usecases

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
	"github.com/0xcro3dile/adaptiverag-go/internal/prompts"
)

// processDecomposed answers a multi-intent query by decomposing it, running
// the generate-evaluate-retry loop per sub-query, and synthesizing the
// sub-answers into one final answer.
func (o *Orchestrator) processDecomposed(ctx context.Context, query string, filterEnabled bool) (*entities.PipelineResult, error) {
	subQueries, err := o.decomposer.Decompose(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(subQueries) == 1 {
		// Decomposition determined not needed after all.
		return o.processSingle(ctx, query, filterEnabled)
	}

	var (
		subResults []entities.SubResult
		allSources []string
		allChunks  []entities.ContextChunk
		relevance  float64
	)
	seenSource := make(map[string]bool)

	for i, subQuery := range subQueries {
		o.logger.Info("processing sub-query",
			zap.Int("index", i+1), zap.Int("total", len(subQueries)),
			zap.String("sub_query", subQuery))

		docTypes, err := o.classifyIfEnabled(ctx, subQuery, filterEnabled)
		if err != nil {
			return nil, err
		}

		subResult, err := o.processSubQuery(ctx, subQuery, docTypes)
		if err != nil {
			return nil, err
		}
		if subResult == nil {
			continue
		}

		subResults = append(subResults, *subResult)
		relevance += subResult.Relevance
		allChunks = append(allChunks, subResult.Chunks...)
		for _, source := range subResult.Sources {
			if !seenSource[source] {
				seenSource[source] = true
				allSources = append(allSources, source)
			}
		}
	}

	if len(subResults) == 0 {
		o.logger.Warn("no valid sub-results, falling back")
		return o.handleLowConfidence(ctx, query, 0.3)
	}

	confidence := relevance / float64(len(subResults))
	return o.synthesize(ctx, query, subResults, allSources, allChunks, confidence)
}

// processSubQuery runs the retry loop at sub-query granularity. Returns nil
// (not an error) when retrieval finds nothing for the sub-query.
func (o *Orchestrator) processSubQuery(ctx context.Context, subQuery string, docTypes []string) (*entities.SubResult, error) {
	chunks, err := o.retriever.Retrieve(ctx, subQuery, ports.RetrieveOptions{
		TopK:                o.profile.DefaultTopK,
		DocTypes:            docTypes,
		SimilarityThreshold: o.profile.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving sub-query context: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	var best *entities.SubResult

	attempt := 0
	for attempt < o.maxRetries {
		attempt++
		o.logger.Info("sub-query generation attempt",
			zap.Int("attempt", attempt), zap.Int("max_retries", o.maxRetries))

		answer, err := o.generateAnswer(ctx, prompts.SubQuery, prompts.Data{
			Query:   subQuery,
			Context: formatContext(chunks),
		})
		if err != nil {
			return nil, err
		}

		current := &entities.SubResult{
			SubQuery:  subQuery,
			Answer:    answer,
			Sources:   sourceIDs(chunks),
			Attempts:  attempt,
			Relevance: meanSimilarity(chunks),
			Chunks:    chunks,
		}

		if !o.useEvaluation {
			return current, nil
		}

		eval := o.evaluator.Evaluate(ctx, subQuery, answer, current.Sources, chunks)
		current.Evaluation = &eval

		if !eval.NeedsRegeneration {
			return current, nil
		}

		if best == nil || eval.QualityScore > best.Evaluation.QualityScore {
			best = current
		}

		o.logger.Warn("sub-query answer quality poor",
			zap.Float64("quality_score", eval.QualityScore),
			zap.Strings("issues", eval.Issues))

		if attempt < o.maxRetries {
			threshold := o.profile.MinSimilarity - retryThresholdRelax
			if threshold < standardRetryFloor {
				threshold = standardRetryFloor
			}
			widened, err := o.retriever.Retrieve(ctx, subQuery, ports.RetrieveOptions{
				TopK:                o.profile.DefaultTopK + retryTopKIncrease,
				DocTypes:            docTypes,
				SimilarityThreshold: threshold,
			})
			if err != nil {
				return nil, fmt.Errorf("retrieving sub-query context: %w", err)
			}
			if len(widened) > 0 {
				chunks = widened
			}
		}
	}

	if best != nil {
		best.Warning = "Sub-query answer quality below threshold"
		return best, nil
	}
	return nil, nil
}

// synthesize combines sub-answers into one coherent final answer, retrying
// with an issue-guided prompt when synthesis quality falls below the bar.
// Synthesis never fails hard: the worst case is the best attempt plus a
// warning.
func (o *Orchestrator) synthesize(
	ctx context.Context,
	query string,
	subResults []entities.SubResult,
	allSources []string,
	allChunks []entities.ContextChunk,
	confidence float64,
) (*entities.PipelineResult, error) {
	pairs := make([]string, 0, len(subResults))
	for _, sr := range subResults {
		pairs = append(pairs, fmt.Sprintf("Q: %s\nA: %s", sr.SubQuery, sr.Answer))
	}
	subAnswers := strings.Join(pairs, "\n\n")
	info := fmt.Sprintf("Answered via %d sub-queries", len(subResults))

	// Evaluate synthesis against the deduplicated union of all sub-query
	// context.
	uniqueChunks := dedupeByDocID(allChunks)

	var best *entities.PipelineResult

	template := prompts.Synthesis
	data := prompts.Data{Query: query, SubAnswers: subAnswers}

	attempt := 0
	for attempt < o.maxRetries {
		attempt++
		o.logger.Info("synthesis attempt",
			zap.Int("attempt", attempt), zap.Int("max_retries", o.maxRetries))

		answer, err := o.generateAnswer(ctx, template, data)
		if err != nil {
			return nil, err
		}

		current := &entities.PipelineResult{
			Answer:            answer,
			Sources:           allSources,
			Strategy:          entities.StrategyDecomposedRAG,
			Confidence:        confidence,
			Info:              info,
			SubResults:        subResults,
			SynthesisAttempts: attempt,
		}

		if !o.useEvaluation {
			return current, nil
		}

		eval := o.evaluator.Evaluate(ctx, query, answer, allSources, uniqueChunks)
		current.Evaluation = &eval
		o.logger.Info("synthesis quality", zap.Float64("quality_score", eval.QualityScore))

		if !eval.NeedsRegeneration {
			o.logger.Info("synthesis quality acceptable")
			return current, nil
		}

		if best == nil || eval.QualityScore > best.Evaluation.QualityScore {
			best = current
		}

		if attempt < o.maxRetries {
			template = prompts.SynthesisRetry
			data.Issues = strings.Join(eval.Issues, "; ")
		}
	}

	o.logger.Warn("max synthesis retries reached, using best attempt")
	if best != nil {
		best.Warning = "Synthesis quality below threshold after retries"
		return best, nil
	}

	return &entities.PipelineResult{
		Answer:     "Synthesis attempt failed to produce a high-quality answer.",
		Sources:    allSources,
		Strategy:   entities.StrategyDecomposedRAG,
		Confidence: confidence,
		Info:       info,
		SubResults: subResults,
		Warning:    "Quality checks failed",
	}, nil
}
