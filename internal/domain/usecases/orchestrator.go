package usecases

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
	"github.com/0xcro3dile/adaptiverag-go/internal/llmjson"
	"github.com/0xcro3dile/adaptiverag-go/internal/prompts"
)

// Retry-loop widening constants. Each retry fetches more context at a
// relaxed threshold, floored per path.
const (
	retryTopKIncrease   = 3
	retryThresholdRelax = 0.1
	standardRetryFloor  = 0.3
	complexRetryFloor   = 0.2
	lowConfidenceTopK   = 3
)

// Options configures an Orchestrator at construction time.
type Options struct {
	Profile          KBProfile
	UseDecomposition bool
	UseEvaluation    bool
	// CitationPattern overrides the [ABC-123] citation id shape; nil keeps
	// the default.
	CitationPattern *regexp.Regexp
}

// Orchestrator is the adaptive pipeline: it routes each query to a
// retrieval/generation strategy, runs the generate-evaluate-retry loop, and
// falls back gracefully when the knowledge base cannot support an answer.
// The router is a pure decision function - every call recomputes from the
// immutable profile, no state survives a request.
type Orchestrator struct {
	classifier ports.Classifier
	retriever  ports.Retriever
	llm        ports.Generator
	decomposer *Decomposer
	evaluator  *Evaluator
	prompts    *prompts.Builder
	logger     *zap.Logger

	profile          KBProfile
	useDecomposition bool
	useEvaluation    bool
	maxRetries       int
}

// NewOrchestrator wires the pipeline with injected ports.
func NewOrchestrator(
	classifier ports.Classifier,
	retriever ports.Retriever,
	llm ports.Generator,
	builder *prompts.Builder,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := 1
	if opts.UseEvaluation {
		maxRetries = 2
	}

	return &Orchestrator{
		classifier:       classifier,
		retriever:        retriever,
		llm:              llm,
		decomposer:       NewDecomposer(llm, builder, logger),
		evaluator:        NewEvaluator(llm, builder, opts.CitationPattern, logger),
		prompts:          builder,
		logger:           logger,
		profile:          opts.Profile,
		useDecomposition: opts.UseDecomposition,
		useEvaluation:    opts.UseEvaluation,
		maxRetries:       maxRetries,
	}
}

// ProcessQuery runs one query through the adaptive pipeline. Backend
// failures from the retrieval or generation ports are fatal and propagate;
// quality failures never are - they surface as a warning on the result.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string, useClassifier bool) (*entities.PipelineResult, error) {
	o.logger.Info("processing query", zap.String("query", query))

	filterEnabled := o.profile.FilterEnabled || useClassifier

	if o.useDecomposition && o.decomposer.ShouldDecompose(query) {
		return o.processDecomposed(ctx, query, filterEnabled)
	}
	return o.processSingle(ctx, query, filterEnabled)
}

// processSingle is the non-decomposed route: classify, probe relevance, then
// pick the low-confidence, complex, or standard path.
func (o *Orchestrator) processSingle(ctx context.Context, query string, filterEnabled bool) (*entities.PipelineResult, error) {
	docTypes, err := o.classifyIfEnabled(ctx, query, filterEnabled)
	if err != nil {
		return nil, err
	}

	relevance, err := o.relevanceScore(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("probing relevance: %w", err)
	}
	o.logger.Info("relevance score", zap.Float64("relevance", relevance))

	if relevance < o.profile.LowConfidence {
		return o.handleLowConfidence(ctx, query, relevance)
	}
	if isComplex(query) {
		return o.handleComplex(ctx, query, docTypes, relevance)
	}
	return o.standardRAG(ctx, query, docTypes, relevance)
}

// classifyIfEnabled returns the doc-type filter for a query, or nil when
// filtering is disabled (small-KB optimization).
func (o *Orchestrator) classifyIfEnabled(ctx context.Context, query string, filterEnabled bool) ([]string, error) {
	if !filterEnabled {
		o.logger.Debug("skipping doc-type filtering")
		return nil, nil
	}
	docTypes, err := o.classifier.Classify(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("classifying query: %w", err)
	}
	o.logger.Info("classified doc types", zap.Strings("doc_types", docTypes))
	return docTypes, nil
}

// relevanceScore probes the index with a zero threshold and averages the
// top-k similarities. 0.0 means the index had nothing at all.
func (o *Orchestrator) relevanceScore(ctx context.Context, query string) (float64, error) {
	chunks, err := o.retriever.Retrieve(ctx, query, ports.RetrieveOptions{
		TopK:                o.profile.DefaultTopK,
		SimilarityThreshold: 0.0,
	})
	if err != nil {
		return 0, err
	}
	return meanSimilarity(chunks), nil
}

// standardRAG answers simple, high-confidence queries with a concise prompt.
func (o *Orchestrator) standardRAG(ctx context.Context, query string, docTypes []string, relevance float64) (*entities.PipelineResult, error) {
	o.logger.Info("standard rag", zap.Float64("relevance", relevance))

	chunks, err := o.retriever.Retrieve(ctx, query, ports.RetrieveOptions{
		TopK:                o.profile.DefaultTopK,
		DocTypes:            docTypes,
		SimilarityThreshold: o.profile.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if len(chunks) == 0 {
		return o.handleLowConfidence(ctx, query, relevance)
	}

	return o.runGenerationLoop(ctx, generationSpec{
		query:       query,
		template:    prompts.Standard,
		strategy:    entities.StrategyStandardRAG,
		docTypes:    docTypes,
		retryFloor:  standardRetryFloor,
		retryFilter: true,
	}, chunks, relevance)
}

// handleComplex answers multi-step queries with extra context and a
// chain-of-thought prompt.
func (o *Orchestrator) handleComplex(ctx context.Context, query string, docTypes []string, relevance float64) (*entities.PipelineResult, error) {
	o.logger.Info("complex query detected, using enhanced retrieval")

	chunks, err := o.retriever.Retrieve(ctx, query, ports.RetrieveOptions{
		TopK:                o.profile.DefaultTopK + 1,
		DocTypes:            docTypes,
		SimilarityThreshold: o.profile.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if len(chunks) == 0 {
		return o.handleLowConfidence(ctx, query, relevance)
	}

	return o.runGenerationLoop(ctx, generationSpec{
		query:      query,
		template:   prompts.Complex,
		strategy:   entities.StrategyComplexRAG,
		docTypes:   docTypes,
		retryFloor: complexRetryFloor,
		// Complex retries cast the widest possible net: the filter comes
		// off along with the relaxed threshold.
		retryFilter: false,
		info:        fmt.Sprintf("Retrieved %d relevant chunks", len(chunks)),
	}, chunks, relevance)
}

// handleLowConfidence is the fallback when retrieval relevance is too low to
// trust the knowledge base: retry with a zero threshold, and if even that
// finds nothing, answer from the model's general knowledge.
func (o *Orchestrator) handleLowConfidence(ctx context.Context, query string, relevance float64) (*entities.PipelineResult, error) {
	o.logger.Warn("low confidence, using fallback", zap.Float64("relevance", relevance))

	chunks, err := o.retriever.Retrieve(ctx, query, ports.RetrieveOptions{
		TopK:                lowConfidenceTopK,
		SimilarityThreshold: 0.0,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	if len(chunks) > 0 {
		answer, err := o.generateAnswer(ctx, prompts.Standard, prompts.Data{
			Query:   query,
			Context: formatContext(chunks),
		})
		if err != nil {
			return nil, err
		}
		return &entities.PipelineResult{
			Answer:     answer,
			Sources:    sourceIDs(chunks),
			Strategy:   entities.StrategyLowConfidenceRAG,
			Confidence: relevance,
			Warning:    "Low confidence - answer may not be fully accurate",
		}, nil
	}

	answer, err := o.generateAnswer(ctx, prompts.NoContext, prompts.Data{Query: query})
	if err != nil {
		return nil, err
	}
	return &entities.PipelineResult{
		Answer:     answer,
		Sources:    []string{},
		Strategy:   entities.StrategyLLMOnly,
		Confidence: 0.0,
		Warning:    "No relevant documentation found - using general knowledge",
	}, nil
}

// generationSpec parameterizes the shared generate-evaluate-retry loop.
type generationSpec struct {
	query    string
	template string
	strategy entities.Strategy
	docTypes []string
	// retryFloor is the hard lower bound on the relaxed threshold.
	retryFloor float64
	// retryFilter keeps the doc-type filter active on widened retrievals.
	retryFilter bool
	info        string
}

// runGenerationLoop is the shared primitive behind the standard and complex
// paths: generate, evaluate, and retry with widened retrieval while quality
// stays below the bar. The best attempt is tracked with first-writer-wins
// tie-breaking - only a strictly higher quality score replaces it.
func (o *Orchestrator) runGenerationLoop(ctx context.Context, spec generationSpec, chunks []entities.ContextChunk, relevance float64) (*entities.PipelineResult, error) {
	var best *entities.PipelineResult

	attempt := 0
	for attempt < o.maxRetries {
		attempt++
		o.logger.Info("generation attempt",
			zap.Int("attempt", attempt), zap.Int("max_retries", o.maxRetries))

		answer, err := o.generateAnswer(ctx, spec.template, prompts.Data{
			Query:   spec.query,
			Context: formatContext(chunks),
		})
		if err != nil {
			return nil, err
		}

		current := &entities.PipelineResult{
			Answer:             answer,
			Sources:            sourceIDs(chunks),
			Strategy:           spec.strategy,
			Confidence:         relevance,
			Info:               spec.info,
			GenerationAttempts: attempt,
		}

		if !o.useEvaluation {
			// Single-pass mode: no quality gate, first answer wins.
			return current, nil
		}

		eval := o.evaluator.Evaluate(ctx, spec.query, answer, current.Sources, chunks)
		current.Evaluation = &eval

		if !eval.NeedsRegeneration {
			o.logger.Info("answer quality acceptable")
			return current, nil
		}

		if best == nil || eval.QualityScore > best.Evaluation.QualityScore {
			best = current
		}

		o.logger.Warn("answer quality poor",
			zap.Float64("quality_score", eval.QualityScore),
			zap.Strings("issues", eval.Issues))

		if attempt < o.maxRetries {
			widened, err := o.widenRetrieval(ctx, spec, chunks)
			if err != nil {
				return nil, err
			}
			chunks = widened
		}
	}

	if best != nil {
		best.Warning = "Answer quality below threshold after retries"
		return best, nil
	}
	// No attempt ever completed; fall back rather than fail.
	return o.handleLowConfidence(ctx, spec.query, relevance)
}

// widenRetrieval fetches more context at a relaxed threshold for a retry.
func (o *Orchestrator) widenRetrieval(ctx context.Context, spec generationSpec, prev []entities.ContextChunk) ([]entities.ContextChunk, error) {
	o.logger.Info("retrieving more context for retry")

	threshold := o.profile.MinSimilarity - retryThresholdRelax
	if threshold < spec.retryFloor {
		threshold = spec.retryFloor
	}

	var docTypes []string
	if spec.retryFilter {
		docTypes = spec.docTypes
	}

	widened, err := o.retriever.Retrieve(ctx, spec.query, ports.RetrieveOptions{
		TopK:                o.profile.DefaultTopK + retryTopKIncrease,
		DocTypes:            docTypes,
		SimilarityThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if len(widened) == 0 {
		// A stricter backend can reject everything on the wider pass;
		// keep the context we already had.
		return prev, nil
	}
	return widened, nil
}

// generateAnswer renders a prompt, calls the generation port, and extracts
// the answer field from the model's JSON-shaped output, tolerating fences
// and stray prose. The raw text is the last-resort answer.
func (o *Orchestrator) generateAnswer(ctx context.Context, template string, data prompts.Data) (string, error) {
	prompt, err := o.prompts.Render(template, data)
	if err != nil {
		return "", err
	}
	raw, err := o.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	answer, _ := llmjson.StringOr(raw, "answer", strings.TrimSpace(raw))
	return answer, nil
}

// complexKeywords signal queries that need multi-step reasoning.
var complexKeywords = []string{
	"how to", "what are", "explain", "compare",
	"difference between", "differences", "steps to", "process for",
	"why", "when should",
}

// isComplex decides whether a query needs the enhanced path, from keywords
// and structure alone.
func isComplex(query string) bool {
	lower := strings.ToLower(query)

	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if strings.Count(query, "?") > 1 {
		return true
	}
	if strings.Contains(lower, " and ") || strings.Contains(lower, " or ") {
		return true
	}
	return len(strings.Fields(query)) > 20
}
