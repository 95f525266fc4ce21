// Package download provides the download orchestration logic for
// fetching a gallery's files.
//
// # Scheduler
//
// The Scheduler runs a fixed list of artworks through a bounded number of
// slots:
//
//  1. Start launches one task per slot, taking the first NotStarted item
//  2. Each completion frees its slot and the next NotStarted item takes it
//  3. Items whose fetch failed are remembered in an error set
//  4. When only failed items remain, the run pauses and restarts itself
//     after a delay
//  5. When every item is done, the run completes
//
// # Basic Usage
//
//	bus := notify.NewBus()
//	defer bus.Close()
//	bus.Subscribe(func(ev notify.Event) {
//	    fmt.Println(ev.Message)
//	})
//
//	exec := download.NewHTTPExecutor(settings, nil, bus)
//	s := download.NewScheduler(items, ledger.NewMemory(0), exec, bus,
//	    download.WithRetryDelay(settings.RetryDelay()))
//	s.ConfigureConcurrency(settings.DownloadThread)
//	s.Start()
//
//	if err := s.Wait(ctx); err != nil {
//	    s.Stop()
//	}
//
// # Concurrency
//
// The thread count is clamped to [1, max] and falls back to max for invalid
// values. A new value takes effect at the next Start from idle; a run in
// progress keeps its thread count.
//
// # Batches
//
// Every Start creates a new batch token. Results carry the token of the task
// that produced them, and results from an earlier batch are ignored.
//
// # Retry Logic
//
// HTTPExecutor retries a failed fetch with exponential backoff, configurable
// via settings.FetchMaxRetries, settings.FetchRetryCooldown and
// settings.FetchRetryExponent, before reporting a fetch failure. The
// scheduler's own retry of failed items waits settings.ErrorRetryDelay.
package download
