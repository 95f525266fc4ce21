package download

import (
	"context"

	"github.com/handiism/gallery-downloader/internal/model"
	"github.com/handiism/gallery-downloader/internal/notify"
)

// Task is one launch of an item into a slot.
type Task struct {
	ID    string
	Index int
	Slot  int
	Batch string
	Item  model.Artwork
}

// ResultKind tags the outcome of a Task.
type ResultKind int

const (
	// ResultSuccess means the file is fetched and saved (or already present).
	ResultSuccess ResultKind = iota

	// ResultFetchFailure means the file could not be retrieved at all.
	ResultFetchFailure

	// ResultSaveFailure means the file was retrieved but could not be persisted.
	ResultSaveFailure
)

// String returns the result kind name.
func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultFetchFailure:
		return "fetch-failure"
	case ResultSaveFailure:
		return "save-failure"
	default:
		return "unknown"
	}
}

// Result is the single completion report of a Task. ID and Batch echo the
// Task; the scheduler uses them to find the slot and to drop reports from an
// abandoned run.
type Result struct {
	Kind  ResultKind
	ID    string
	Batch string

	// Path and Skipped are set on success.
	Path    string
	Skipped bool

	// Err is set on failure.
	Err error
}

// Succeeded reports that the item was saved at path. skipped is true when
// the file already existed and nothing was downloaded.
func (t Task) Succeeded(path string, skipped bool) Result {
	return Result{Kind: ResultSuccess, ID: t.ID, Batch: t.Batch, Path: path, Skipped: skipped}
}

// FetchFailed reports that the item could not be retrieved.
func (t Task) FetchFailed(err error) Result {
	return Result{Kind: ResultFetchFailure, ID: t.ID, Batch: t.Batch, Err: err}
}

// SaveFailed reports that the item was retrieved but not persisted.
func (t Task) SaveFailed(err error) Result {
	return Result{Kind: ResultSaveFailure, ID: t.ID, Batch: t.Batch, Err: err}
}

// Executor performs one download.
//
// Run must return promptly and report the outcome by calling done exactly
// once, usually from another goroutine. done may also be called before Run
// returns.
type Executor interface {
	Run(ctx context.Context, task Task, done func(Result))
}

// ExecutorFunc adapts a synchronous function to Executor by running it in a
// new goroutine.
type ExecutorFunc func(ctx context.Context, task Task) Result

// Run implements Executor.
func (f ExecutorFunc) Run(ctx context.Context, task Task, done func(Result)) {
	go func() {
		done(f(ctx, task))
	}()
}

// Notifier receives scheduler lifecycle events. Emit is called while the
// scheduler holds its lock, so it must not call back into the scheduler
// synchronously; notify.Bus queues events and is safe to use.
type Notifier interface {
	Emit(ev notify.Event)
}

type discardNotifier struct{}

func (discardNotifier) Emit(notify.Event) {}
