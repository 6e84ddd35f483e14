package usecases

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
	"github.com/0xcro3dile/adaptiverag-go/internal/prompts"
)

// mockGenerator implements ports.Generator for testing. It records every
// prompt so tests can assert on what the pipeline asked for.
type mockGenerator struct {
	mu         sync.Mutex
	prompts    []string
	generateFn func(prompt string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(prompt)
	}
	return `{"answer": "default answer"}`, nil
}

func (m *mockGenerator) promptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockGenerator) promptContaining(marker string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prompts {
		if strings.Contains(p, marker) {
			return p
		}
	}
	return ""
}

// Prompt markers, one distinctive phrase per template.
const (
	markerRelevanceJudge = "answer quality evaluator"
	markerSupportJudge   = "fact-checker"
	markerDecompose      = "break complex questions"
	markerSynthesis      = "Synthesize multiple sub-answers"
	markerSynthesisRetry = "previous synthesis had issues"
	markerSubQuery       = "Sub-question:"
	markerNoContext      = "No documentation is available"
	markerComplex        = "reason through"
)

// judgeAwareLLM wraps an answer function with judges that always approve.
// Prompts that are not judge calls go to answerFn.
func judgeAwareLLM(answerFn func(prompt string) (string, error)) func(string) (string, error) {
	return func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, markerRelevanceJudge):
			return `{"relevant": true, "reason": "on topic"}`, nil
		case strings.Contains(prompt, markerSupportJudge):
			return `{"supported": true, "hallucinations": []}`, nil
		}
		return answerFn(prompt)
	}
}

// mockRetriever implements ports.Retriever and records the options of each
// call for assertions on widening behavior.
type mockRetriever struct {
	mu         sync.Mutex
	calls      []ports.RetrieveOptions
	retrieveFn func(query string, opts ports.RetrieveOptions) ([]entities.ContextChunk, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, opts ports.RetrieveOptions) ([]entities.ContextChunk, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.mu.Unlock()
	if m.retrieveFn != nil {
		return m.retrieveFn(query, opts)
	}
	return nil, nil
}

func (m *mockRetriever) callOptions() []ports.RetrieveOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.RetrieveOptions, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockClassifier implements ports.Classifier.
type mockClassifier struct {
	mu    sync.Mutex
	calls int
	types []string
	err   error
}

func (m *mockClassifier) Classify(ctx context.Context, query string) ([]string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.types, nil
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestPrompts(t *testing.T) *prompts.Builder {
	t.Helper()
	builder, err := prompts.New()
	require.NoError(t, err)
	return builder
}

func chunk(docID string, similarity float64, docTypes ...string) entities.ContextChunk {
	return entities.ContextChunk{
		DocID:      docID,
		DocTypes:   docTypes,
		Text:       "content of " + docID,
		Similarity: similarity,
	}
}
