package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/orchestrator"
	"github.com/sells-group/pe-intel/internal/schedule"
	"github.com/sells-group/pe-intel/internal/store"
)

// stubRunner captures the request passed to the async collection goroutine.
type stubRunner struct {
	got     chan model.Request
	summary *schedule.RunSummary
	err     error
}

func (s *stubRunner) Collect(ctx context.Context, req model.Request) (*schedule.RunSummary, error) {
	s.got <- req
	return s.summary, s.err
}

// stubRunStore serves canned runs; only the methods the API touches are
// implemented.
type stubRunStore struct {
	store.Store
	runs []model.Run
	run  *model.Run
}

func (s *stubRunStore) ListRuns(ctx context.Context, f store.RunFilter) ([]model.Run, error) {
	return s.runs, nil
}

func (s *stubRunStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	return s.run, nil
}

func apiDefaults() model.RequestDefaults {
	return model.RequestDefaults{
		MaxAgeDays:     7,
		MaxConcurrent:  4,
		RateLimitDelay: time.Second,
		MaxRetries:     3,
	}
}

func TestBuildRouter_Health(t *testing.T) {
	router := buildRouter(context.Background(), nil, nil, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_CollectInvalidJSON(t *testing.T) {
	router := buildRouter(context.Background(), nil, nil, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodPost, "/api/collect", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestBuildRouter_CollectInvalidRequest(t *testing.T) {
	router := buildRouter(context.Background(), nil, nil, nil, apiDefaults())

	// Normalize only fills zeros, so an explicit bad concurrency survives to
	// validation.
	payload := []byte(`{"max_concurrent": 99}`)
	req := httptest.NewRequest(http.MethodPost, "/api/collect", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "out of range")
}

func TestBuildRouter_CollectAccepted(t *testing.T) {
	runner := &stubRunner{
		got:     make(chan model.Request, 1),
		summary: &schedule.RunSummary{RunID: "run-1"},
	}
	router := buildRouter(context.Background(), runner, nil, nil, apiDefaults())

	payload := []byte(`{"entity_type":"FIRM","sources":["NEWS_API"],"mode":"FULL"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/collect", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "FIRM", resp["entity_type"])
	assert.Equal(t, "FULL", resp["mode"])

	// The goroutine receives the normalized request.
	select {
	case got := <-runner.got:
		assert.Equal(t, model.ModeFull, got.Mode)
		assert.Equal(t, []model.Source{model.SourceNewsAPI}, got.Sources)
		assert.Equal(t, 4, got.MaxConcurrent)
		assert.Equal(t, 7, got.MaxAgeDays)
	case <-time.After(2 * time.Second):
		t.Fatal("collection goroutine never ran")
	}
}

func TestBuildRouter_CollectNilRunner(t *testing.T) {
	// With no runner, the goroutine skips collection gracefully.
	router := buildRouter(context.Background(), nil, nil, nil, apiDefaults())

	payload := []byte(`{"entity_type":"FIRM"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/collect", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	time.Sleep(10 * time.Millisecond)
}

func TestBuildRouter_ListRunsNilStore(t *testing.T) {
	router := buildRouter(context.Background(), nil, nil, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "store unavailable")
}

func TestBuildRouter_ListRuns(t *testing.T) {
	st := &stubRunStore{runs: []model.Run{
		{ID: "run-1", Status: model.RunStatusComplete},
		{ID: "run-2", Status: model.RunStatusFailed},
	}}
	router := buildRouter(context.Background(), nil, st, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodGet, "/api/runs?status=complete&limit=10", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var runs []model.Run
	err := json.Unmarshal(rr.Body.Bytes(), &runs)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestBuildRouter_GetRun(t *testing.T) {
	st := &stubRunStore{run: &model.Run{ID: "run-1", Status: model.RunStatusComplete}}
	router := buildRouter(context.Background(), nil, st, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var run model.Run
	err := json.Unmarshal(rr.Body.Bytes(), &run)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
}

func TestBuildRouter_GetRunNotFound(t *testing.T) {
	st := &stubRunStore{run: nil}
	router := buildRouter(context.Background(), nil, st, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "run not found")
}

func TestBuildRouter_Progress(t *testing.T) {
	progress := func() orchestrator.Progress {
		return orchestrator.Progress{Total: 9, Completed: 3, Successful: 2, Failed: 1}
	}
	router := buildRouter(context.Background(), nil, nil, progress, apiDefaults())

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var p orchestrator.Progress
	err := json.Unmarshal(rr.Body.Bytes(), &p)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Total)
	assert.Equal(t, 3, p.Completed)
}

func TestBuildRouter_ProgressNilFunc(t *testing.T) {
	router := buildRouter(context.Background(), nil, nil, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var p orchestrator.Progress
	err := json.Unmarshal(rr.Body.Bytes(), &p)
	require.NoError(t, err)
	assert.Zero(t, p.Total)
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	router := buildRouter(context.Background(), nil, nil, nil, apiDefaults())

	req := httptest.NewRequest(http.MethodOptions, "/api/collect", nil)
	req.Header.Set("Origin", "https://dashboard.sellsadvisors.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
