// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/campusmind-ai/campusmind/internal/action"
	"github.com/campusmind-ai/campusmind/internal/complexity"
	"github.com/campusmind-ai/campusmind/internal/config"
	"github.com/campusmind-ai/campusmind/internal/intent"
	"github.com/campusmind-ai/campusmind/internal/metrics"
	"github.com/campusmind-ai/campusmind/internal/model"
	"github.com/campusmind-ai/campusmind/internal/pipeline"
	"github.com/campusmind-ai/campusmind/internal/prompt"
	"github.com/campusmind-ai/campusmind/internal/semantic"
	"github.com/campusmind-ai/campusmind/internal/store"
	"github.com/campusmind-ai/campusmind/internal/tokens"
	"github.com/campusmind-ai/campusmind/internal/tools"
)

type staticStore struct{}

func (staticStore) Count(context.Context, store.EntityKind, map[string]any) (int64, error) {
	return 321, nil
}

func (staticStore) List(context.Context, store.EntityKind, map[string]any, store.Pagination) ([]store.Row, error) {
	return nil, nil
}

func (staticStore) Close() error { return nil }

type staticModel struct{}

func (staticModel) Complete(context.Context, model.CompletionRequest) (*model.Completion, error) {
	return &model.Completion{Content: "详细分析如下。", TokensUsed: 1200}, nil
}

func newTestServer(t *testing.T) (*Server, *metrics.Counters) {
	t.Helper()
	cfg := config.Default()
	counters := metrics.New()

	intents, err := intent.NewMatcher()
	require.NoError(t, err)
	executor := action.NewExecutor(staticStore{}, counters)
	require.NoError(t, executor.ValidateActions(intents.Actions()))
	selector, err := tools.NewSelector("")
	require.NoError(t, err)

	est := tokens.NewEstimator(tokens.MethodSimple)
	router, err := pipeline.NewRouter(pipeline.RouterOptions{
		Config:    cfg,
		Assessor:  complexity.NewEstimator(est),
		Intents:   intents,
		Semantics: semantic.NewMatcher(nil),
		Executor:  executor,
		Assembler: prompt.NewAssembler(est),
		Selector:  selector,
		Client:    staticModel{},
		Counters:  counters,
	})
	require.NoError(t, err)

	return NewServer(router, counters, map[string]SubStats{
		"intent": intents,
	}, false), counters
}

func postQuery(t *testing.T, s *Server, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/query", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestQueryEndpointDirect(t *testing.T) {
	s, _ := newTestServer(t)

	w := postQuery(t, s, map[string]any{"text": "学生总数", "role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, "DIRECT", gjson.Get(body, "response.tier").String())
	assert.Contains(t, gjson.Get(body, "response.text").String(), "321")
	assert.NotEmpty(t, gjson.Get(body, "conversation_id").String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestQueryEndpointComplex(t *testing.T) {
	s, _ := newTestServer(t)

	w := postQuery(t, s, map[string]any{
		"text": "帮我分析本季度的综合运营趋势并提出建议",
		"role": "admin",
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, "COMPLEX", gjson.Get(body, "response.tier").String())
	assert.EqualValues(t, 1200, gjson.Get(body, "response.tokens_used").Int())
}

func TestQueryEndpointRejectsEmptyText(t *testing.T) {
	s, _ := newTestServer(t)

	w := postQuery(t, s, map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postQuery(t, s, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryEndpointPropagatesRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	data, _ := json.Marshal(map[string]any{"text": "学生总数"})
	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/query", bytes.NewReader(data))
	req.Header.Set("X-Request-ID", "req-abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-abc-123", w.Header().Get("X-Request-ID"))
}

func TestStatsEndpoint(t *testing.T) {
	s, counters := newTestServer(t)

	postQuery(t, s, map[string]any{"text": "学生总数"})

	req := httptest.NewRequest(http.MethodGet, "/v1/assistant/stats", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.EqualValues(t, 1, gjson.Get(body, "counters.total_queries").Int())
	assert.True(t, gjson.Get(body, "components.intent").Exists())
	assert.EqualValues(t, 1, counters.GetSnapshot().DirectQueries)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	postQuery(t, s, map[string]any{"text": "学生总数"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "assistant_queries_total")
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
