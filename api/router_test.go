package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/metrics"
	"github.com/use-agent/sosharvest/models"
)

type stubRunner struct {
	mu      sync.Mutex
	busy    bool
	started []*config.Input
	runs    map[string]*models.RunStatus
	files   map[string][]byte
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		runs:  map[string]*models.RunStatus{},
		files: map[string][]byte{},
	}
}

func (s *stubRunner) Start(_ context.Context, in *config.Input) (*models.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, models.NewHarvestError(models.ErrCodeRunInProgress, "a harvest run is already in progress", nil)
	}
	s.busy = true
	s.started = append(s.started, in)
	st := &models.RunStatus{ID: "run-1", State: models.RunRunning, StartedAt: time.Now()}
	s.runs[st.ID] = st
	return st, nil
}

func (s *stubRunner) Get(id string) (*models.RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	return st, ok
}

func (s *stubRunner) Artifact(id, key string) ([]byte, string, error) {
	if _, ok := s.Get(id); !ok {
		return nil, "", models.NewHarvestError(models.ErrCodeNotFound, "run not found", nil)
	}
	data, ok := s.files[key]
	if !ok {
		return nil, "", models.NewHarvestError(models.ErrCodeNotFound, "artifact not found", nil)
	}
	return data, "application/json; charset=utf-8", nil
}

func (s *stubRunner) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return "run-1"
	}
	return ""
}

func testRouter(t *testing.T, r *stubRunner, keys ...string) *gin.Engine {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Auth.Enabled = len(keys) > 0
	cfg.Auth.APIKeys = keys
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}
	m := metrics.NewMetrics()
	m.IncRun("succeeded")
	return NewRouter(r, m.Registry, cfg, time.Now())
}

func do(e http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestHealth_NoAuth(t *testing.T) {
	r := newStubRunner()
	e := testRouter(t, r, "secret")

	w := do(e, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"idle"`)

	r.busy = true
	w = do(e, http.MethodGet, "/api/v1/health", "")
	assert.Contains(t, w.Body.String(), `"status":"busy"`)
	assert.Contains(t, w.Body.String(), `"current_run":"run-1"`)
}

func TestAuth(t *testing.T) {
	e := testRouter(t, newStubRunner(), "secret")

	w := do(e, http.MethodGet, "/api/v1/runs/run-1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeUnauthorized)

	w = do(e, http.MethodGet, "/api/v1/runs/run-1", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(e, http.MethodGet, "/api/v1/runs/run-1", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRun(t *testing.T) {
	r := newStubRunner()
	e := testRouter(t, r)

	w := do(e, http.MethodPost, "/api/v1/runs", `{"maxPages":3,"targetDate":"2024-01-31"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/v1/runs/run-1", w.Header().Get("Location"))
	assert.Contains(t, w.Body.String(), `"id":"run-1"`)

	require.Len(t, r.started, 1)
	require.NotNil(t, r.started[0].MaxPages)
	assert.Equal(t, 3, *r.started[0].MaxPages)
	assert.Equal(t, "2024-01-31", *r.started[0].TargetDate)
}

func TestStartRun_EmptyBody(t *testing.T) {
	r := newStubRunner()
	e := testRouter(t, r)

	w := do(e, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, r.started, 1)
	assert.Nil(t, r.started[0].MaxPages)
}

func TestStartRun_Busy(t *testing.T) {
	r := newStubRunner()
	r.busy = true
	e := testRouter(t, r)

	w := do(e, http.MethodPost, "/api/v1/runs", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeRunInProgress)
}

func TestStartRun_InvalidInput(t *testing.T) {
	e := testRouter(t, newStubRunner())

	w := do(e, http.MethodPost, "/api/v1/runs", `{"maxPages":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(e, http.MethodPost, "/api/v1/runs", `{"maxPages":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeInvalidInput)
}

func TestGetRun(t *testing.T) {
	r := newStubRunner()
	total, pages := 4, 2
	r.runs["done"] = &models.RunStatus{
		ID:     "done",
		State:  models.RunSucceeded,
		Result: &models.ResultSummary{OK: true, Total: &total, PagesProcessed: &pages},
	}
	e := testRouter(t, r)

	w := do(e, http.MethodGet, "/api/v1/runs/done", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pagesProcessed":2`)

	w = do(e, http.MethodGet, "/api/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetArtifact(t *testing.T) {
	r := newStubRunner()
	r.runs["done"] = &models.RunStatus{ID: "done", State: models.RunSucceeded}
	r.files["RESULT.json"] = []byte(`{"ok":true,"total":0,"pagesProcessed":1}`)
	e := testRouter(t, r)

	w := do(e, http.MethodGet, "/api/v1/runs/done/artifacts/RESULT.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true,"total":0,"pagesProcessed":1}`, w.Body.String())

	w = do(e, http.MethodGet, "/api/v1/runs/done/artifacts/A1_LOGIN_PAGE.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := testRouter(t, newStubRunner())

	w := do(e, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sosharvest_runs_total")
}

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}
	e := NewRouter(newStubRunner(), nil, cfg, time.Now())

	w := do(e, http.MethodGet, "/api/v1/runs/x", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(e, http.MethodGet, "/api/v1/runs/x", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	// Health is not rate limited.
	w = do(e, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
