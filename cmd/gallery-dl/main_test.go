package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/handiism/gallery-downloader/internal/config"
	"github.com/handiism/gallery-downloader/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, baseURL string, n int) string {
	t.Helper()
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"id": "%d_p0", "user": "alice", "url": "%s/img/%d_p0.png"}`, 100+i, baseURL, 100+i)
	}
	path := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"result\": ["+strings.Join(entries, ",")+"]}"), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return out.String(), err
}

func TestURLsCommand(t *testing.T) {
	list := writeList(t, "https://i.example.net", 3)

	out, err := execute(t, "urls", list)
	require.NoError(t, err)
	assert.Equal(t, "https://i.example.net/img/100_p0.png\n"+
		"https://i.example.net/img/101_p0.png\n"+
		"https://i.example.net/img/102_p0.png\n", out)
}

func TestURLsCommand_EmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	_, err := execute(t, "urls", path)
	assert.ErrorContains(t, err, "no items to download")
}

func TestDownloadCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image:" + r.URL.Path))
	}))
	defer srv.Close()

	list := writeList(t, srv.URL, 6)
	output := t.TempDir()

	out, err := execute(t, "download", list, "--output", output, "--threads", "2", "--format", "{user}/{id}", "--verbose")
	require.NoError(t, err)

	assert.Contains(t, out, "Found 6 file(s)")
	assert.Contains(t, out, "Downloaded: 100_p0.png")
	assert.Contains(t, out, "Complete! Downloaded 6/6 files")

	data, err := os.ReadFile(filepath.Join(output, "alice", "105_p0.png"))
	require.NoError(t, err)
	assert.Equal(t, "image:/img/105_p0.png", string(data))

	// A second run finds every file in place.
	out, err = execute(t, "download", list, "--output", output, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipping existing: 100_p0.png")
}

func TestDownloadCommand_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	settings := config.DefaultSettings()
	settings.DownloadsPath = t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := runDownload(ctx, &out, settings, writeList(t, srv.URL, 3), false, 0)

	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 130, exit.code)
	assert.Contains(t, out.String(), "Download cancelled at 0/3 files.")
	assert.Contains(t, out.String(), "stopped")
}

func TestDownloadCommand_GivesUpAfterRetryRounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "101_p0") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("image"))
	}))
	defer srv.Close()

	settings := config.DefaultSettings()
	settings.DownloadsPath = t.TempDir()
	settings.FetchMaxRetries = 1
	settings.ErrorRetryDelay = 0.01

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := runDownload(ctx, &out, settings, writeList(t, srv.URL, 3), false, 2)

	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.code)
	assert.Contains(t, out.String(), "Gave up after 2 retry round(s) at 2/3 files.")
	assert.NoError(t, ctx.Err())
}

func TestRetryLimit(t *testing.T) {
	var cause error
	h := retryLimit(2, func(err error) { cause = err })

	h(notify.Event{Kind: notify.KindRetryScheduled})
	h(notify.Event{Kind: notify.KindFetchError})
	h(notify.Event{Kind: notify.KindRetryScheduled})
	assert.NoError(t, cause)

	h(notify.Event{Kind: notify.KindRetryScheduled})
	assert.ErrorIs(t, cause, errRetriesExhausted)
}

func TestDownloadCommand_MissingList(t *testing.T) {
	_, err := execute(t, "download", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download_thread: 3\nfile_name_format: \"{id}\"\n"), 0644))
	t.Setenv("GALLERY_DOWNLOADS_PATH", "/from/env")

	opts := &rootOptions{configPath: path}
	settings, err := opts.loadSettings()
	require.NoError(t, err)

	assert.Equal(t, 3, settings.DownloadThread)
	assert.Equal(t, "{id}", settings.FileNameFormat)
	assert.Equal(t, "/from/env", settings.DownloadsPath)

	opts.configPath = filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(opts.configPath, []byte("x = 1"), 0644))
	_, err = opts.loadSettings()
	assert.ErrorIs(t, err, config.ErrInvalidFormat)
}

func TestServeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image"))
	}))
	defer srv.Close()

	// Reserve a free port for the control server.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	settings := config.DefaultSettings()
	settings.DownloadsPath = t.TempDir()
	settings.ListenAddress = addr

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	var logs bytes.Buffer
	go func() {
		errCh <- runServe(ctx, &logs, settings, writeList(t, srv.URL, 4), "info")
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Post("http://"+addr+"/start", "application/json", nil)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return strings.Contains(buf.String(), `"text":"download complete"`)
	}, 5*time.Second, 20*time.Millisecond)

	// Metrics follow the event bus, which may lag the scheduler slightly.
	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return strings.Contains(buf.String(), `gallery_items_total{result="success"} 4`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
