package usecases

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
	"github.com/0xcro3dile/adaptiverag-go/internal/llmjson"
	"github.com/0xcro3dile/adaptiverag-go/internal/prompts"
)

// Evaluation weights and thresholds. These are contractual: the retry policy
// keys off the exact 0.6 boundary.
const (
	citationWeight  = 0.3
	relevanceWeight = 0.4
	supportWeight   = 0.3
	minQualityScore = 0.6

	// judgeFailureScore is the optimistic default when a judge call cannot
	// be parsed or fails. A flaky judge must never fail the pipeline.
	judgeFailureScore = 0.8

	// supportContextLimit caps how much context the fact-check judge sees.
	supportContextLimit = 2000
)

// DefaultCitationPattern matches bracketed document-id tokens like [KB-017].
// The id shape is a configuration point: knowledge bases with different id
// formats supply their own pattern at construction.
var DefaultCitationPattern = regexp.MustCompile(`\[([A-Z]+-\d+)\]`)

// Evaluator scores a generated answer against its citations, the query, and
// the retrieved context. Single Responsibility: Only quality scoring.
type Evaluator struct {
	llm      ports.Generator
	prompts  *prompts.Builder
	logger   *zap.Logger
	citation *regexp.Regexp
}

// NewEvaluator creates an Evaluator. A nil citationPattern selects
// DefaultCitationPattern.
func NewEvaluator(llm ports.Generator, builder *prompts.Builder, citationPattern *regexp.Regexp, logger *zap.Logger) *Evaluator {
	if citationPattern == nil {
		citationPattern = DefaultCitationPattern
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{llm: llm, prompts: builder, logger: logger, citation: citationPattern}
}

// Evaluate runs the three quality checks and combines them into one record.
// Judge failures degrade to optimistic defaults; Evaluate itself never
// returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, query, answer string, sources []string, chunks []entities.ContextChunk) entities.Evaluation {
	citationScore, citationIssues := e.checkCitations(answer, sources)
	relevanceScore, relevanceIssues := e.checkRelevance(ctx, query, answer)
	supportScore, supportIssues := e.checkContextualSupport(ctx, answer, chunks)

	quality := citationWeight*citationScore +
		relevanceWeight*relevanceScore +
		supportWeight*supportScore

	issues := make([]string, 0, len(citationIssues)+len(relevanceIssues)+len(supportIssues))
	issues = append(issues, citationIssues...)
	issues = append(issues, relevanceIssues...)
	issues = append(issues, supportIssues...)

	needsRegen := needsRegeneration(quality)

	eval := entities.Evaluation{
		QualityScore:      round3(quality),
		CitationScore:     round3(citationScore),
		RelevanceScore:    round3(relevanceScore),
		SupportScore:      round3(supportScore),
		Issues:            issues,
		NeedsRegeneration: needsRegen,
		Recommendation:    recommendation(quality, issues),
	}

	e.logger.Info("evaluation complete",
		zap.Float64("quality_score", eval.QualityScore),
		zap.Bool("needs_regeneration", needsRegen))
	return eval
}

// checkCitations validates the [DOC-ID] tokens in the answer against the
// sources actually used as context. Score decreases with each invalid
// citation; short answers without citations are not penalized.
func (e *Evaluator) checkCitations(answer string, sources []string) (float64, []string) {
	var issues []string

	matches := e.citation.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		if len(answer) > 100 {
			issues = append(issues, "No citations found in answer")
			return 0.5, issues
		}
		return 1.0, issues
	}

	valid := make(map[string]bool, len(sources))
	for _, s := range sources {
		valid[s] = true
	}

	var invalid []string
	for _, m := range matches {
		if !valid[m[1]] {
			invalid = append(invalid, m[1])
		}
	}

	if len(invalid) == 0 {
		return 1.0, issues
	}
	issues = append(issues, fmt.Sprintf("Invalid citations (not in sources): %s", strings.Join(invalid, ", ")))
	score := 1.0 - float64(len(invalid))/float64(len(matches))
	return math.Max(score, 0.0), issues
}

// checkRelevance decides whether the answer addresses the query. Cheap
// heuristics short-circuit before the judge call.
func (e *Evaluator) checkRelevance(ctx context.Context, query, answer string) (float64, []string) {
	var issues []string

	if len(answer) < 20 {
		issues = append(issues, "Answer is too short")
		return 0.3, issues
	}

	lower := strings.ToLower(answer)
	if strings.Contains(lower, "i don't know") || strings.Contains(lower, "no information") {
		issues = append(issues, "Answer admits lack of knowledge")
		return 0.4, issues
	}

	prompt, err := e.prompts.Render(prompts.RelevanceJudge, prompts.Data{Query: query, Answer: answer})
	if err != nil {
		e.logger.Warn("relevance judge prompt failed, assuming relevant", zap.Error(err))
		return judgeFailureScore, issues
	}

	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("relevance check failed, assuming relevant", zap.Error(err))
		return judgeFailureScore, issues
	}

	relevant, res := llmjson.Bool(response, "relevant", true)
	if !res.OK {
		e.logger.Warn("relevance verdict unparseable, assuming relevant")
		return judgeFailureScore, issues
	}

	if !relevant {
		reason, _ := llmjson.StringOr(response, "reason", "")
		issues = append(issues, fmt.Sprintf("Answer not relevant: %s", reason))
		return 0.2, issues
	}
	return 1.0, issues
}

// checkContextualSupport asks the fact-check judge whether the answer is
// grounded in the retrieved context. Each unsupported claim costs 0.2.
func (e *Evaluator) checkContextualSupport(ctx context.Context, answer string, chunks []entities.ContextChunk) (float64, []string) {
	var issues []string

	if len(chunks) == 0 {
		issues = append(issues, "No context available to verify answer")
		return 0.5, issues
	}

	fullContext := formatContext(chunks)
	if len(fullContext) > supportContextLimit {
		fullContext = fullContext[:supportContextLimit]
	}

	prompt, err := e.prompts.Render(prompts.SupportJudge, prompts.Data{Context: fullContext, Answer: answer})
	if err != nil {
		e.logger.Warn("support judge prompt failed, assuming supported", zap.Error(err))
		return judgeFailureScore, issues
	}

	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("support check failed, assuming supported", zap.Error(err))
		return judgeFailureScore, issues
	}

	supported, res := llmjson.Bool(response, "supported", true)
	if !res.OK {
		e.logger.Warn("support verdict unparseable, assuming supported")
		return judgeFailureScore, issues
	}
	hallucinations, _ := llmjson.StringSlice(response, "hallucinations")

	if !supported || len(hallucinations) > 0 {
		issues = append(issues, fmt.Sprintf("Possible hallucinations detected: [%s]", strings.Join(hallucinations, ", ")))
		score := 1.0 - float64(len(hallucinations))*0.2
		return math.Max(score, 0.0), issues
	}
	return 1.0, issues
}

// needsRegeneration is the regeneration rule: true iff quality is strictly
// below the 0.6 bar.
func needsRegeneration(quality float64) bool {
	return quality < minQualityScore
}

// recommendation maps a quality score onto a human-readable tier.
func recommendation(quality float64, issues []string) string {
	switch {
	case quality >= 0.9:
		return "Excellent quality - use this answer"
	case quality >= 0.7:
		return "Good quality - minor issues detected"
	case quality >= minQualityScore:
		return "Acceptable quality - consider improvement"
	default:
		return fmt.Sprintf("Poor quality - regenerate with different strategy. Issues: %s", strings.Join(issues, "; "))
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
