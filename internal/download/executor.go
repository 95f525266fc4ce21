package download

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/handiism/gallery-downloader/internal/config"
	"github.com/handiism/gallery-downloader/internal/http"
	ioutils "github.com/handiism/gallery-downloader/internal/io"
	"github.com/handiism/gallery-downloader/internal/model"
	"github.com/handiism/gallery-downloader/internal/notify"
)

// Fetcher retrieves remote files. *http.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
	GetFileSize(ctx context.Context, url string) (int64, error)
}

// HTTPExecutor downloads an artwork over HTTP and saves it to its Path.
//
// Each Run starts one goroutine. Network errors are retried with exponential
// cooldown before the item is reported as a fetch failure; errors creating the
// directory or writing the file are reported as save failures.
type HTTPExecutor struct {
	settings     *config.Settings
	fetcher      Fetcher
	imageService *ioutils.ImageService
	notifier     Notifier

	wait func(ctx context.Context, d time.Duration)
}

// NewHTTPExecutor creates an HTTPExecutor. A nil fetcher gets a Client built
// from settings.
func NewHTTPExecutor(settings *config.Settings, fetcher Fetcher, notifier Notifier) *HTTPExecutor {
	if fetcher == nil {
		fetcher = http.NewClient(settings.UserAgent, settings.Referer, settings.Timeout())
	}
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return &HTTPExecutor{
		settings:     settings,
		fetcher:      fetcher,
		imageService: ioutils.NewImageService(),
		notifier:     notifier,
		wait:         sleepContext,
	}
}

// Run implements Executor.
func (e *HTTPExecutor) Run(ctx context.Context, task Task, done func(Result)) {
	go func() {
		done(e.download(ctx, task))
	}()
}

func (e *HTTPExecutor) download(ctx context.Context, task Task) Result {
	item := task.Item

	if e.settings.SkipExisting {
		if path, ok := e.existing(ctx, item); ok {
			return task.Succeeded(path, true)
		}
	}

	data, err := e.fetch(ctx, item)
	if err != nil {
		return task.FetchFailed(err)
	}

	data, path := e.process(ctx, item, data)

	if err := ioutils.EnsureDir(filepath.Dir(path)); err != nil {
		return task.SaveFailed(fmt.Errorf("create directory: %w", err))
	}
	if err := ioutils.WriteFile(ctx, path, data); err != nil {
		return task.SaveFailed(fmt.Errorf("write %s: %w", filepath.Base(path), err))
	}

	return task.Succeeded(path, false)
}

func (e *HTTPExecutor) resizes() bool {
	return e.settings.ResizeImages && e.settings.ResizeMaxSize > 0
}

func (e *HTTPExecutor) converts(item model.Artwork) bool {
	if e.resizes() {
		return true
	}
	if !e.settings.ConvertToJPG {
		return false
	}
	ext := strings.ToLower(item.Ext)
	return ext != "jpg" && ext != "jpeg"
}

// encodedPaths lists where a re-encoded copy of item may have been saved.
func (e *HTTPExecutor) encodedPaths(item model.Artwork) []string {
	if !e.converts(item) {
		return nil
	}
	paths := []string{withExt(item.Path, "jpg")}
	if e.resizes() {
		paths = append(paths, withExt(item.Path, "png"))
	}
	return paths
}

// existing returns the path of a file that already holds item. A re-encoded
// file can't be compared with the remote size, so its presence is enough.
// Anything at item.Path must match the remote size.
func (e *HTTPExecutor) existing(ctx context.Context, item model.Artwork) (string, bool) {
	for _, path := range e.encodedPaths(item) {
		if _, ok := ioutils.FileSize(path); ok {
			return path, true
		}
	}

	size, ok := ioutils.FileSize(item.Path)
	if !ok {
		return "", false
	}
	expectedSize, err := e.fetcher.GetFileSize(ctx, item.URL)
	if err != nil || expectedSize <= 0 {
		return "", false
	}
	sizeDiff := float64(size-expectedSize) / float64(expectedSize)
	if math.Abs(sizeDiff) > e.settings.AllowedFileSizeDifference {
		return "", false
	}
	return item.Path, true
}

func (e *HTTPExecutor) fetch(ctx context.Context, item model.Artwork) ([]byte, error) {
	maxRetries := e.settings.FetchMaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var (
		data []byte
		err  error
	)
	for tries := 0; tries < maxRetries; tries++ {
		data, err = e.fetcher.Get(ctx, item.URL)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if tries+1 < maxRetries {
			e.notifier.Emit(notify.Event{
				Kind:    notify.KindLog,
				Level:   notify.LevelWarning,
				Message: fmt.Sprintf("Retry %d/%d for %s: %v", tries+1, maxRetries-1, item.ID, err),
				ItemID:  item.ID,
			})
			e.waitForRetry(ctx, tries)
		}
	}

	return nil, fmt.Errorf("fetch %s: %w", item.ID, err)
}

// process applies the configured resize and conversion and returns the bytes
// to save with their path. Images that fail to decode are saved as fetched at
// item.Path.
func (e *HTTPExecutor) process(ctx context.Context, item model.Artwork, data []byte) ([]byte, string) {
	if !e.converts(item) {
		return data, item.Path
	}

	var (
		out []byte
		ext = "jpg"
		err error
	)
	if e.resizes() {
		out, ext, err = e.imageService.ResizeImage(ctx, data, e.settings.ResizeMaxSize, e.settings.ResizeMaxSize)
	} else {
		out, err = e.imageService.ConvertToJPEG(ctx, data)
	}
	if err != nil {
		e.notifier.Emit(notify.Event{
			Kind:    notify.KindLog,
			Level:   notify.LevelWarning,
			Message: fmt.Sprintf("Error converting %s, saving original: %v", item.ID, err),
			ItemID:  item.ID,
		})
		return data, item.Path
	}
	return out, withExt(item.Path, ext)
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}

func (e *HTTPExecutor) waitForRetry(ctx context.Context, tries int) {
	cooldown := e.settings.FetchRetryCooldown * math.Pow(e.settings.FetchRetryExponent, float64(tries))
	e.wait(ctx, time.Duration(cooldown*float64(time.Second)))
}

func sleepContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
