package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Success(t *testing.T) {
	t.Parallel()

	want := RenderResponse{
		Code: 200,
		Data: RenderData{
			URL:   "https://acmecapital.com/team",
			Title: "Our Team | Acme Capital",
			HTML:  "<html><body><h2>Jane Doe</h2></body></html>",
			Text:  "Jane Doe\nManaging Partner",
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/render", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://acmecapital.com/team", req.URL)
		assert.Equal(t, int64(45000), req.NavigationTimeoutMS)
		assert.Equal(t, int64(2000), req.SettleDelayMS)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	got, err := client.Render(context.Background(), "https://acmecapital.com/team")

	require.NoError(t, err)
	assert.Equal(t, want.Data.Title, got.Data.Title)
	assert.Equal(t, want.Data.Text, got.Data.Text)
}

func TestRender_CustomTimeouts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(10000), req.NavigationTimeoutMS)
		assert.Equal(t, int64(500), req.SettleDelayMS)

		json.NewEncoder(w).Encode(RenderResponse{Code: 200})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Render(context.Background(), "https://example.com",
		WithNavigationTimeout(10*time.Second),
		WithSettleDelay(500*time.Millisecond),
	)
	require.NoError(t, err)
}

func TestRender_RetriesOn503(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(RenderResponse{
			Code: 200,
			Data: RenderData{Text: "recovered"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	got, err := client.Render(context.Background(), "https://example.com")

	require.NoError(t, err)
	assert.Equal(t, "recovered", got.Data.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRender_FatalStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid url"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.Render(context.Background(), "not-a-url")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestRender_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.Render(context.Background(), "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestRender_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(srv.URL, "test-key")
	_, err := client.Render(ctx, "https://example.com")

	require.Error(t, err)
}
