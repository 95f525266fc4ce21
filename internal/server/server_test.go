package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/handiism/gallery-downloader/internal/download"
	"github.com/handiism/gallery-downloader/internal/ledger"
	"github.com/handiism/gallery-downloader/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu      sync.Mutex
	calls   []string
	threads []int
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Start() { f.record("start") }
func (f *fakeController) Pause() { f.record("pause") }
func (f *fakeController) Stop()  { f.record("stop") }

func (f *fakeController) ConfigureConcurrency(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = append(f.threads, n)
}

func (f *fakeController) Snapshot() download.Snapshot {
	return download.Snapshot{StateName: "idle", Text: download.TextNotStarted, Total: 3}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	}
	return resp, payload
}

func TestServer_ControlRoutes(t *testing.T) {
	ctrl := &fakeController{}
	srv := httptest.NewServer(NewServer("", "", ctrl, nil, discardLogger()).Handler())
	defer srv.Close()

	for _, path := range []string{"/start", "/pause", "/stop"} {
		resp, payload := do(t, srv, http.MethodPost, path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "idle", payload["state"])
	}
	assert.Equal(t, []string{"start", "pause", "stop"}, ctrl.calls)

	resp, _ := do(t, srv, http.MethodGet, "/start", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Status(t *testing.T) {
	srv := httptest.NewServer(NewServer("", "", &fakeController{}, nil, discardLogger()).Handler())
	defer srv.Close()

	resp, payload := do(t, srv, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, download.TextNotStarted, payload["text"])
	assert.Equal(t, float64(3), payload["total"])
}

func TestServer_Concurrency(t *testing.T) {
	ctrl := &fakeController{}
	srv := httptest.NewServer(NewServer("", "", ctrl, nil, discardLogger()).Handler())
	defer srv.Close()

	tests := []struct {
		body   string
		status int
	}{
		{`{"threads": 3}`, http.StatusOK},
		{`{"threads": "2"}`, http.StatusOK},
		{`{"threads": "many"}`, http.StatusOK},
		{`{"threads": true}`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, payload := do(t, srv, http.MethodPut, "/concurrency", tt.body, nil)
		assert.Equal(t, tt.status, resp.StatusCode, tt.body)
		if tt.status != http.StatusOK {
			assert.Contains(t, payload, "error", tt.body)
		}
	}

	assert.Equal(t, []int{3, 2, 0}, ctrl.threads)
}

func TestServer_Auth(t *testing.T) {
	ctrl := &fakeController{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("gallery_items_done 0\n"))
	})
	srv := httptest.NewServer(NewServer("", "secret", ctrl, metrics, discardLogger()).Handler())
	defer srv.Close()

	resp, payload := do(t, srv, http.MethodPost, "/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, payload, "error")

	resp, _ = do(t, srv, http.MethodPost, "/start", "", http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/status?token=secret", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "metrics are not behind auth")

	assert.Equal(t, []string{"start"}, ctrl.calls)
}

func TestServer_DrivesScheduler(t *testing.T) {
	cfg := &model.PathConfig{DownloadsPath: t.TempDir()}
	items := []model.Artwork{
		model.NewArtwork("1", 0, "", "alice", "1", "https://x/1.png", time.Time{}, cfg),
		model.NewArtwork("2", 0, "", "alice", "1", "https://x/2.png", time.Time{}, cfg),
	}

	release := make(chan struct{})
	exec := download.ExecutorFunc(func(ctx context.Context, task download.Task) download.Result {
		<-release
		return task.Succeeded(task.Item.Path, false)
	})
	s := download.NewScheduler(items, ledger.NewMemory(0), exec, nil)

	srv := httptest.NewServer(NewServer("", "", s, nil, discardLogger()).Handler())
	defer srv.Close()

	_, payload := do(t, srv, http.MethodPut, "/concurrency", `{"threads": 1}`, nil)
	assert.Equal(t, float64(1), payload["concurrency"])

	_, payload = do(t, srv, http.MethodPost, "/start", "", nil)
	assert.Equal(t, "running", payload["state"])
	assert.Equal(t, download.TextDownloading, payload["text"])
	assert.Equal(t, float64(1), payload["active"])

	_, payload = do(t, srv, http.MethodPost, "/pause", "", nil)
	assert.Equal(t, "paused", payload["state"])

	_, payload = do(t, srv, http.MethodPost, "/stop", "", nil)
	assert.Equal(t, "stopped", payload["state"])

	close(release)
}
