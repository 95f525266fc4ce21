package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/gallery-downloader/internal/config"
	"github.com/handiism/gallery-downloader/internal/download"
	"github.com/handiism/gallery-downloader/internal/ledger"
	"github.com/handiism/gallery-downloader/internal/notify"
	"github.com/handiism/gallery-downloader/internal/source"
	"github.com/spf13/cobra"
)

type downloadOptions struct {
	output  string
	format  string
	threads int
	noSkip  bool
	jpg     bool

	maxRetryRounds int
}

var errRetriesExhausted = errors.New("retry rounds exhausted")

func newDownloadCommand(root *rootOptions) *cobra.Command {
	opts := &downloadOptions{}

	cmd := &cobra.Command{
		Use:   "download <list.json>",
		Short: "Download every file of a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := root.loadSettings()
			if err != nil {
				return err
			}
			opts.apply(cmd, settings)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDownload(ctx, cmd.OutOrStdout(), settings, args[0], root.verbose, opts.maxRetryRounds)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (overrides config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "file name format, e.g. {user}/{id}-{title}")
	cmd.Flags().IntVarP(&opts.threads, "threads", "t", 0, "download threads (1 to the configured maximum)")
	cmd.Flags().BoolVar(&opts.noSkip, "no-skip", false, "download files that already exist")
	cmd.Flags().BoolVar(&opts.jpg, "jpg", false, "convert images to JPEG")
	cmd.Flags().IntVar(&opts.maxRetryRounds, "max-retry-rounds", 0, "give up after this many automatic retry rounds (0 retries forever)")

	return cmd
}

// apply copies the flags that were set onto settings.
func (o *downloadOptions) apply(cmd *cobra.Command, settings *config.Settings) {
	if o.output != "" {
		settings.DownloadsPath = o.output
	}
	if o.format != "" {
		settings.FileNameFormat = o.format
	}
	if cmd.Flags().Changed("threads") {
		settings.DownloadThread = o.threads
	}
	if o.noSkip {
		settings.SkipExisting = false
	}
	if o.jpg {
		settings.ConvertToJPG = true
	}
}

func runDownload(ctx context.Context, out io.Writer, settings *config.Settings, listPath string, verbose bool, maxRetryRounds int) error {
	items, err := source.LoadFile(listPath, settings.ToPathConfig())
	if err != nil {
		return err
	}

	bus := notify.NewBus()
	defer bus.Close()
	bus.Subscribe(printer(out, verbose))

	waitCtx, cancelWait := context.WithCancelCause(ctx)
	defer cancelWait(nil)
	if maxRetryRounds > 0 {
		bus.Subscribe(retryLimit(maxRetryRounds, cancelWait))
	}

	// The executor context outlives the signal so Stop is recorded before
	// in-flight downloads are cancelled.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	exec := download.NewHTTPExecutor(settings, nil, bus)
	opts := append(download.SettingsOptions(settings), download.WithContext(runCtx))
	s := download.NewScheduler(items, ledger.NewMemory(0), exec, bus, opts...)
	s.ConfigureConcurrency(settings.DownloadThread)

	fmt.Fprintln(out, "🖼️  Gallery Downloader")
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(out, "Found %d file(s), saving to %s\n\n", len(items), settings.DownloadsPath)

	s.Start()

	if err := s.Wait(waitCtx); err != nil {
		s.Stop()
		cancelRun()
		bus.Flush()
		if errors.Is(context.Cause(waitCtx), errRetriesExhausted) {
			fmt.Fprintf(out, "\nGave up after %d retry round(s) at %d/%d files.\n", maxRetryRounds, s.DoneCount(), s.TotalCount())
			return &exitError{code: 1}
		}
		fmt.Fprintf(out, "\nDownload cancelled at %d/%d files.\n", s.DoneCount(), s.TotalCount())
		return &exitError{code: 130}
	}

	bus.Flush()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(out, "✨ Complete! Downloaded %d/%d files\n", s.DoneCount(), s.TotalCount())
	return nil
}

// retryLimit cancels the wait once more than rounds retries have been
// scheduled.
func retryLimit(rounds int, cancel context.CancelCauseFunc) notify.Handler {
	scheduled := 0
	return func(ev notify.Event) {
		if ev.Kind != notify.KindRetryScheduled {
			return
		}
		scheduled++
		if scheduled > rounds {
			cancel(errRetriesExhausted)
		}
	}
}

// printer renders events with level prefixes. Verbose events are dropped
// unless verbose is set.
func printer(out io.Writer, verbose bool) notify.Handler {
	return func(ev notify.Event) {
		if ev.Level == notify.LevelVerbose && !verbose {
			return
		}

		prefix := ""
		switch ev.Level {
		case notify.LevelError:
			prefix = "❌ "
		case notify.LevelWarning:
			prefix = "⚠️  "
		case notify.LevelSuccess:
			prefix = "✅ "
		case notify.LevelInfo:
			prefix = "ℹ️  "
		default:
			prefix = "   "
		}

		fmt.Fprintln(out, prefix+ev.Message)
	}
}
