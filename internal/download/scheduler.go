package download

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/handiism/gallery-downloader/internal/ledger"
	"github.com/handiism/gallery-downloader/internal/model"
	"github.com/handiism/gallery-downloader/internal/notify"
)

const (
	// DefaultMaxConcurrency is the largest allowed thread count and the
	// fallback for invalid requests.
	DefaultMaxConcurrency = 5

	// DefaultRetryDelay is how long a run stuck on failed items stays paused
	// before it restarts them.
	DefaultRetryDelay = 5 * time.Second
)

// Status texts reported by ProgressText.
const (
	TextNotStarted  = "not started"
	TextDownloading = "downloading"
	TextPaused      = "paused"
	TextStopped     = "stopped"
	TextComplete    = "download complete"
)

// Ledger records the status of every item index.
type Ledger interface {
	Init(n int)
	Resume()
	SetState(index int, status ledger.Status)
	FirstNotStarted() (int, bool)
	DoneCount() int
}

// State is the scheduler run state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the scheduler counters.
type Snapshot struct {
	State       State  `json:"-"`
	StateName   string `json:"state"`
	Text        string `json:"text"`
	Done        int    `json:"done"`
	Total       int    `json:"total"`
	Errors      int    `json:"errors"`
	Active      int    `json:"active"`
	Concurrency int    `json:"concurrency"`
	Requested   int    `json:"requested"`
	Batch       string `json:"batch"`
}

type slotAssignment struct {
	index int
	slot  int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxConcurrency sets the largest allowed thread count.
func WithMaxConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithRetryDelay sets the pause length before failed items are retried.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithContext sets the context passed to the executor.
func WithContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		s.ctx = ctx
	}
}

// Scheduler turns a fixed item list into a bounded set of concurrently
// running download tasks.
//
// Every state change happens under one mutex: the control calls (Start,
// Pause, Stop, ConfigureConcurrency), executor completions and the retry
// timer. Executor calls are made after the mutex is released.
type Scheduler struct {
	mu sync.Mutex

	items    []model.Artwork
	ledger   Ledger
	exec     Executor
	notifier Notifier
	ctx      context.Context

	maxConcurrency int
	requested      int
	concurrency    int
	retryDelay     time.Duration
	afterFunc      func(d time.Duration, f func()) (stop func() bool)

	state     State
	completed bool
	batch     string
	slots     map[string]slotAssignment
	errors    map[string]struct{}
	active    int

	retryGen    uint64
	cancelRetry func() bool

	pending  []Task
	finished chan struct{}
}

// NewScheduler creates a Scheduler for items. The ledger is initialized to
// len(items) NotStarted entries.
func NewScheduler(items []model.Artwork, l Ledger, exec Executor, notifier Notifier, opts ...Option) *Scheduler {
	if notifier == nil {
		notifier = discardNotifier{}
	}

	s := &Scheduler{
		items:          items,
		ledger:         l,
		exec:           exec,
		notifier:       notifier,
		ctx:            context.Background(),
		maxConcurrency: DefaultMaxConcurrency,
		retryDelay:     DefaultRetryDelay,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		slots:    make(map[string]slotAssignment),
		errors:   make(map[string]struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.requested = s.maxConcurrency
	s.ledger.Init(len(items))
	s.recomputeConcurrency()

	return s
}

// Start begins a run, or resumes a paused one.
//
// A fresh start resets every item to NotStarted. Resuming a paused run keeps
// Done items and redoes items that were in progress when it was paused. Start
// is a no-op when the list is empty or a run is already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.start()
	tasks := s.takePending()
	s.mu.Unlock()

	s.dispatch(tasks)
}

// Pause stops new launches. In-flight tasks finish and are recorded. Pause is
// a no-op unless a run is running; in particular a stopped run stays stopped.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 || s.state != StateRunning {
		return
	}
	s.state = StatePaused
	s.emit(notify.Event{Kind: notify.KindPause, Level: notify.LevelWarning, Message: TextPaused, Done: s.ledger.DoneCount(), Total: len(s.items)})
}

// Stop stops new launches and overrides a pause. The next Start begins a
// fresh run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 || s.state == StateStopped || s.state == StateIdle {
		return
	}
	s.cancelPendingRetry()
	s.state = StateStopped
	s.emit(notify.Event{Kind: notify.KindStop, Level: notify.LevelError, Message: TextStopped, Done: s.ledger.DoneCount(), Total: len(s.items)})
}

// ConfigureConcurrency sets the requested thread count. Values outside
// [1, max] fall back to max. The value takes effect at the next Start, where
// it is further limited to the number of remaining items.
func (s *Scheduler) ConfigureConcurrency(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 1 || n > s.maxConcurrency {
		n = s.maxConcurrency
	}
	s.requested = n
	if s.state == StateIdle {
		s.recomputeConcurrency()
	}
}

// ParseConcurrency converts a user supplied thread count. Anything that is
// not an integer yields 0, which ConfigureConcurrency treats as invalid.
func ParseConcurrency(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

// State returns the current run state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProgressText returns the human readable status.
func (s *Scheduler) ProgressText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text()
}

// DoneCount returns the number of finished items.
func (s *Scheduler) DoneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DoneCount()
}

// TotalCount returns the number of items.
func (s *Scheduler) TotalCount() int {
	return len(s.items)
}

// Snapshot returns a copy of the scheduler counters.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:       s.state,
		StateName:   s.state.String(),
		Text:        s.text(),
		Done:        s.ledger.DoneCount(),
		Total:       len(s.items),
		Errors:      len(s.errors),
		Active:      s.active,
		Concurrency: s.concurrency,
		Requested:   s.requested,
		Batch:       s.batch,
	}
}

// Wait blocks until the current run completes or ctx is done. It returns
// immediately if the last run already completed and no new one started.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.completed && s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	ch := s.finished
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) start() {
	if len(s.items) == 0 || s.state == StateRunning {
		return
	}

	s.cancelPendingRetry()

	if s.state == StatePaused {
		s.ledger.Resume()
	} else {
		s.ledger.Init(len(s.items))
	}

	s.slots = make(map[string]slotAssignment)
	s.errors = make(map[string]struct{})
	s.active = 0
	s.completed = false
	s.batch = uuid.NewString()
	s.state = StateRunning
	s.recomputeConcurrency()

	s.emit(notify.Event{
		Kind:    notify.KindStart,
		Level:   notify.LevelInfo,
		Message: fmt.Sprintf("%s with %d threads", TextDownloading, s.concurrency),
		Done:    s.ledger.DoneCount(),
		Total:   len(s.items),
	})

	for slot := 0; slot < s.concurrency; slot++ {
		s.launch(slot)
	}
}

func (s *Scheduler) recomputeConcurrency() {
	c := s.requested
	if c < 1 || c > s.maxConcurrency {
		c = s.maxConcurrency
	}
	if remaining := len(s.items) - s.ledger.DoneCount(); remaining < c {
		c = remaining
	}
	if c < 0 {
		c = 0
	}
	s.concurrency = c
}

// launch picks the first NotStarted item for slot. When there is none the
// slot goes idle.
func (s *Scheduler) launch(slot int) {
	index, ok := s.ledger.FirstNotStarted()
	if !ok {
		s.checkCompleteWithErrors()
		return
	}
	s.launchIndex(slot, index)
}

func (s *Scheduler) launchIndex(slot, index int) {
	item := s.items[index]

	s.ledger.SetState(index, ledger.InProgress)
	s.slots[item.ID] = slotAssignment{index: index, slot: slot}
	s.active++

	s.pending = append(s.pending, Task{
		ID:    item.ID,
		Index: index,
		Slot:  slot,
		Batch: s.batch,
		Item:  item,
	})
}

func (s *Scheduler) takePending() []Task {
	tasks := s.pending
	s.pending = nil
	return tasks
}

func (s *Scheduler) dispatch(tasks []Task) {
	for _, task := range tasks {
		s.exec.Run(s.ctx, task, s.complete)
	}
}

// complete is the executor callback.
func (s *Scheduler) complete(r Result) {
	s.mu.Lock()
	s.handle(r)
	tasks := s.takePending()
	s.mu.Unlock()

	s.dispatch(tasks)
}

func (s *Scheduler) handle(r Result) {
	if r.Batch == "" || r.Batch != s.batch {
		return
	}
	a, ok := s.slots[r.ID]
	if !ok {
		return
	}
	delete(s.slots, r.ID)
	if s.active > 0 {
		s.active--
	}

	switch r.Kind {
	case ResultSuccess:
		s.onSuccess(a, r)
	case ResultFetchFailure:
		s.onFetchFailure(a, r)
	case ResultSaveFailure:
		s.onSaveFailure(a, r)
	}
}

func (s *Scheduler) onSuccess(a slotAssignment, r Result) {
	s.ledger.SetState(a.index, ledger.Done)
	delete(s.errors, r.ID)

	done := s.ledger.DoneCount()
	total := len(s.items)

	ev := notify.Event{
		Kind:    notify.KindSuccess,
		Level:   notify.LevelVerbose,
		ItemID:  r.ID,
		Path:    r.Path,
		Skipped: r.Skipped,
		Done:    done,
		Total:   total,
		Message: fmt.Sprintf("Downloaded: %s (%d / %d)", filepath.Base(r.Path), done, total),
	}
	if r.Skipped {
		ev.Message = fmt.Sprintf("Skipping existing: %s (%d / %d)", filepath.Base(r.Path), done, total)
	}
	s.emit(ev)

	if done == total {
		s.finish()
		return
	}

	s.checkCompleteWithErrors()
	if s.shouldContinue() {
		s.launch(a.slot)
	}
}

func (s *Scheduler) onFetchFailure(a slotAssignment, r Result) {
	s.errors[r.ID] = struct{}{}

	msg := fmt.Sprintf("%s download error", r.ID)
	if r.Err != nil {
		msg = fmt.Sprintf("%s download error: %v", r.ID, r.Err)
	}
	s.emit(notify.Event{
		Kind:    notify.KindFetchError,
		Level:   notify.LevelError,
		ItemID:  r.ID,
		Done:    s.ledger.DoneCount(),
		Total:   len(s.items),
		Message: msg,
	})

	s.checkCompleteWithErrors()
	if s.shouldContinue() {
		s.launch(a.slot)
	}
}

// onSaveFailure retries the same item in the same slot immediately, unless
// the run is paused or stopped.
func (s *Scheduler) onSaveFailure(a slotAssignment, r Result) {
	msg := fmt.Sprintf("%s save error, the file will be downloaded again", r.ID)
	if r.Err != nil {
		msg = fmt.Sprintf("%s save error: %v, the file will be downloaded again", r.ID, r.Err)
	}
	s.emit(notify.Event{
		Kind:    notify.KindSaveError,
		Level:   notify.LevelWarning,
		ItemID:  r.ID,
		Done:    s.ledger.DoneCount(),
		Total:   len(s.items),
		Message: msg,
	})

	if s.state != StateRunning {
		return
	}
	s.ledger.SetState(a.index, ledger.NotStarted)
	s.launchIndex(a.slot, a.index)
}

func (s *Scheduler) shouldContinue() bool {
	done := s.ledger.DoneCount()
	total := len(s.items)

	if done >= total {
		return false
	}
	if s.state != StateRunning {
		return false
	}
	return done+s.concurrency-1 < total
}

// checkCompleteWithErrors pauses a run in which every item is either done or
// failed, and schedules a Start that retries the failed items.
func (s *Scheduler) checkCompleteWithErrors() {
	if len(s.errors) == 0 || s.state != StateRunning {
		return
	}
	if s.ledger.DoneCount()+len(s.errors) != len(s.items) {
		return
	}

	s.state = StatePaused
	s.emit(notify.Event{Kind: notify.KindPause, Level: notify.LevelWarning, Message: TextPaused, Done: s.ledger.DoneCount(), Total: len(s.items)})

	s.cancelPendingRetry()
	gen := s.retryGen
	s.cancelRetry = s.afterFunc(s.retryDelay, func() {
		s.retry(gen)
	})

	s.emit(notify.Event{
		Kind:    notify.KindRetryScheduled,
		Level:   notify.LevelWarning,
		Done:    s.ledger.DoneCount(),
		Total:   len(s.items),
		Message: fmt.Sprintf("%d files failed, retrying in %s", len(s.errors), s.retryDelay),
	})
}

func (s *Scheduler) retry(gen uint64) {
	s.mu.Lock()
	if gen != s.retryGen || s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	s.cancelRetry = nil
	s.start()
	tasks := s.takePending()
	s.mu.Unlock()

	s.dispatch(tasks)
}

func (s *Scheduler) cancelPendingRetry() {
	s.retryGen++
	if s.cancelRetry != nil {
		s.cancelRetry()
		s.cancelRetry = nil
	}
}

func (s *Scheduler) finish() {
	s.state = StateIdle
	s.completed = true
	s.errors = make(map[string]struct{})
	s.cancelPendingRetry()

	s.emit(notify.Event{
		Kind:    notify.KindComplete,
		Level:   notify.LevelSuccess,
		Done:    len(s.items),
		Total:   len(s.items),
		Message: TextComplete,
	})

	close(s.finished)
	s.finished = make(chan struct{})
}

func (s *Scheduler) text() string {
	switch s.state {
	case StateRunning:
		return TextDownloading
	case StatePaused:
		return TextPaused
	case StateStopped:
		return TextStopped
	}
	if s.completed {
		return TextComplete
	}
	return TextNotStarted
}

func (s *Scheduler) emit(ev notify.Event) {
	s.notifier.Emit(ev)
}
