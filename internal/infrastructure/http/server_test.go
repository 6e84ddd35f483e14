package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/adaptiverag-go/internal/domain/entities"
	"github.com/0xcro3dile/adaptiverag-go/internal/domain/ports"
)

type stubPipeline struct {
	result *entities.PipelineResult
	err    error

	gotQuery         string
	gotUseClassifier bool
}

func (s *stubPipeline) ProcessQuery(ctx context.Context, query string, useClassifier bool) (*entities.PipelineResult, error) {
	s.gotQuery = query
	s.gotUseClassifier = useClassifier
	return s.result, s.err
}

func postQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	pipeline := &stubPipeline{result: &entities.PipelineResult{
		Answer:     "Scale via replicas [KB-001].",
		Sources:    []string{"KB-001"},
		Strategy:   entities.StrategyStandardRAG,
		Confidence: 0.82,
	}}
	s := NewServer(pipeline, ":0", nil)

	rec := postQuery(t, s, `{"query": "How do I scale?", "use_classifier": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, "How do I scale?", pipeline.gotQuery)
	assert.True(t, pipeline.gotUseClassifier)

	var result entities.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, entities.StrategyStandardRAG, result.Strategy)
	assert.Equal(t, []string{"KB-001"}, result.Sources)
}

func TestHandleQueryValidation(t *testing.T) {
	s := NewServer(&stubPipeline{}, ":0", nil)

	rec := postQuery(t, s, `{"query": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postQuery(t, s, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	rec = httptest.NewRecorder()
	s.handleQuery(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleQueryBackendFailure(t *testing.T) {
	s := NewServer(&stubPipeline{err: errors.New("index unavailable")}, ":0", nil)

	rec := postQuery(t, s, `{"query": "How do I scale?"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "backend failure", body.Error)
}

func TestHandleQueryGenerationTimeout(t *testing.T) {
	wrapped := fmt.Errorf("generating answer: %w", ports.ErrGenerationTimeout)
	s := NewServer(&stubPipeline{err: wrapped}, ":0", nil)

	rec := postQuery(t, s, `{"query": "How do I scale?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "generation_timeout", body.Error)
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(&stubPipeline{}, ":0", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	s := NewServer(&stubPipeline{}, ":0", nil)
	handler := s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	first := rec.Header().Get("X-Request-ID")
	assert.NotEmpty(t, first)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, first, rec.Header().Get("X-Request-ID"))
}
