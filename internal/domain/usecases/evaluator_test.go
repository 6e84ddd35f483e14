package usecases

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
)

func newTestEvaluator(t *testing.T, gen *mockGenerator) *Evaluator {
	t.Helper()
	return NewEvaluator(gen, newTestPrompts(t), nil, nil)
}

func TestEvaluateValidCitations(t *testing.T) {
	gen := &mockGenerator{generateFn: judgeAwareLLM(func(string) (string, error) {
		return "", nil
	})}
	eval := newTestEvaluator(t, gen)

	answer := "Scale the cluster using the documented runbook procedure [KB-017]."
	result := eval.Evaluate(context.Background(), "How do I scale the cluster?", answer,
		[]string{"KB-017"}, []entities.ContextChunk{chunk("KB-017", 0.82, "runbook")})

	assert.Equal(t, 1.0, result.CitationScore)
	assert.Equal(t, 1.0, result.RelevanceScore)
	assert.Equal(t, 1.0, result.SupportScore)
	assert.Equal(t, 1.0, result.QualityScore)
	assert.False(t, result.NeedsRegeneration)
	assert.Empty(t, result.Issues)
	assert.Equal(t, "Excellent quality - use this answer", result.Recommendation)
}

func TestEvaluateFabricatedCitation(t *testing.T) {
	// The answer cites a document that was never retrieved. The citation
	// check zeroes out and the fact-check judge flags the fabricated claims.
	gen := &mockGenerator{generateFn: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, markerRelevanceJudge):
			return `{"relevant": true, "reason": "addresses the question"}`, nil
		case strings.Contains(prompt, markerSupportJudge):
			return `{"supported": false, "hallucinations": ["reference to DOC-999", "procedure not in context"]}`, nil
		}
		return "", nil
	}}
	eval := newTestEvaluator(t, gen)

	answer := "You should consult [DOC-999] for the full procedure, which covers the rollback steps in detail."
	result := eval.Evaluate(context.Background(), "How do I roll back a deployment?", answer,
		[]string{"KB-001"}, []entities.ContextChunk{chunk("KB-001", 0.7, "runbook")})

	assert.Equal(t, 0.0, result.CitationScore)
	assert.Equal(t, 0.6, result.SupportScore)
	assert.True(t, result.NeedsRegeneration)
	require.Len(t, result.Issues, 2)
	assert.Contains(t, result.Issues[0], "Invalid citations")
	assert.Contains(t, result.Issues[0], "DOC-999")
	assert.Contains(t, result.Recommendation, "Poor quality")
}

func TestCitationScoreDecreasesWithInvalidCitations(t *testing.T) {
	eval := newTestEvaluator(t, &mockGenerator{})
	sources := []string{"KB-001", "KB-002", "KB-003"}

	cases := []struct {
		answer string
		want   float64
	}{
		{"See [KB-001], [KB-002] and [KB-003].", 1.0},
		{"See [KB-001], [KB-002] and [DOC-900].", 2.0 / 3.0},
		{"See [KB-001], [DOC-900] and [DOC-901].", 1.0 / 3.0},
		{"See [DOC-900], [DOC-901] and [DOC-902].", 0.0},
	}

	prev := 1.1
	for _, tc := range cases {
		score, _ := eval.checkCitations(tc.answer, sources)
		assert.InDelta(t, tc.want, score, 1e-9, "answer: %s", tc.answer)
		assert.LessOrEqual(t, score, prev, "score must not increase with more invalid citations")
		prev = score
	}
}

func TestCitationScoreWithoutCitations(t *testing.T) {
	eval := newTestEvaluator(t, &mockGenerator{})

	score, issues := eval.checkCitations("Restart the service.", nil)
	assert.Equal(t, 1.0, score)
	assert.Empty(t, issues)

	long := strings.Repeat("The deployment process involves several steps. ", 5)
	score, issues = eval.checkCitations(long, nil)
	assert.Equal(t, 0.5, score)
	require.Len(t, issues, 1)
	assert.Equal(t, "No citations found in answer", issues[0])
}

func TestRelevanceHeuristics(t *testing.T) {
	// Heuristic short circuits must not reach the judge.
	gen := &mockGenerator{generateFn: func(prompt string) (string, error) {
		t.Fatalf("unexpected judge call: %s", prompt)
		return "", nil
	}}
	eval := newTestEvaluator(t, gen)

	score, issues := eval.checkRelevance(context.Background(), "How do I scale?", "see docs")
	assert.Equal(t, 0.3, score)
	require.Len(t, issues, 1)
	assert.Equal(t, "Answer is too short", issues[0])

	score, issues = eval.checkRelevance(context.Background(), "How do I scale?",
		"I don't know how to answer this question from the documentation.")
	assert.Equal(t, 0.4, score)
	require.Len(t, issues, 1)
	assert.Equal(t, "Answer admits lack of knowledge", issues[0])
}

func TestRelevanceJudgeVerdicts(t *testing.T) {
	answer := "The cluster scales automatically when CPU utilization stays above the threshold."

	gen := &mockGenerator{generateFn: func(string) (string, error) {
		return `{"relevant": false, "reason": "talks about scaling, question was about backups"}`, nil
	}}
	score, issues := newTestEvaluator(t, gen).checkRelevance(context.Background(), "How do backups work?", answer)
	assert.Equal(t, 0.2, score)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "talks about scaling")

	gen = &mockGenerator{generateFn: func(string) (string, error) {
		return `{"relevant": true, "reason": "on topic"}`, nil
	}}
	score, issues = newTestEvaluator(t, gen).checkRelevance(context.Background(), "How does scaling work?", answer)
	assert.Equal(t, 1.0, score)
	assert.Empty(t, issues)
}

func TestJudgeFailuresDegradeOptimistically(t *testing.T) {
	// A judge returning garbage or an error must never fail the evaluation;
	// the affected component falls back to the optimistic default.
	answer := "The cluster scales automatically when CPU utilization stays above the threshold [KB-001]."
	chunks := []entities.ContextChunk{chunk("KB-001", 0.8, "runbook")}

	gen := &mockGenerator{generateFn: func(string) (string, error) {
		return "this is not json in any recoverable shape", nil
	}}
	result := newTestEvaluator(t, gen).Evaluate(context.Background(),
		"How does scaling work?", answer, []string{"KB-001"}, chunks)

	assert.Equal(t, judgeFailureScore, result.RelevanceScore)
	assert.Equal(t, judgeFailureScore, result.SupportScore)
	assert.Equal(t, 1.0, result.CitationScore)
	assert.False(t, result.NeedsRegeneration)

	gen = &mockGenerator{generateFn: func(string) (string, error) {
		return "", context.Canceled
	}}
	result = newTestEvaluator(t, gen).Evaluate(context.Background(),
		"How does scaling work?", answer, []string{"KB-001"}, chunks)

	assert.Equal(t, judgeFailureScore, result.RelevanceScore)
	assert.Equal(t, judgeFailureScore, result.SupportScore)
}

func TestSupportWithoutContext(t *testing.T) {
	eval := newTestEvaluator(t, &mockGenerator{})

	score, issues := eval.checkContextualSupport(context.Background(), "An answer.", nil)
	assert.Equal(t, 0.5, score)
	require.Len(t, issues, 1)
	assert.Equal(t, "No context available to verify answer", issues[0])
}

func TestSupportHallucinationPenalty(t *testing.T) {
	chunks := []entities.ContextChunk{chunk("KB-001", 0.8, "runbook")}

	for _, tc := range []struct {
		hallucinations string
		want           float64
	}{
		{`["claim one"]`, 0.8},
		{`["claim one", "claim two"]`, 0.6},
		{`["a", "b", "c", "d", "e", "f"]`, 0.0},
	} {
		gen := &mockGenerator{generateFn: func(string) (string, error) {
			return `{"supported": false, "hallucinations": ` + tc.hallucinations + `}`, nil
		}}
		score, issues := newTestEvaluator(t, gen).checkContextualSupport(context.Background(), "An answer.", chunks)
		assert.InDelta(t, tc.want, score, 1e-9)
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0], "hallucinations")
	}
}

func TestNeedsRegenerationBoundary(t *testing.T) {
	assert.True(t, needsRegeneration(0.599))
	assert.False(t, needsRegeneration(0.6))
	assert.False(t, needsRegeneration(0.601))
	assert.False(t, needsRegeneration(minQualityScore))
	assert.True(t, needsRegeneration(0.0))
	assert.False(t, needsRegeneration(1.0))
}

func TestRecommendationTiers(t *testing.T) {
	assert.Equal(t, "Excellent quality - use this answer", recommendation(0.95, nil))
	assert.Equal(t, "Good quality - minor issues detected", recommendation(0.75, nil))
	assert.Equal(t, "Acceptable quality - consider improvement", recommendation(0.65, nil))

	poor := recommendation(0.4, []string{"Invalid citations", "Answer is too short"})
	assert.Contains(t, poor, "Poor quality")
	assert.Contains(t, poor, "Invalid citations; Answer is too short")
}

func TestEvaluationWeights(t *testing.T) {
	assert.InDelta(t, 1.0, citationWeight+relevanceWeight+supportWeight, 1e-9)
}
