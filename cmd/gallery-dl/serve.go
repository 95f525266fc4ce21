package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/handiism/gallery-downloader/internal/config"
	"github.com/handiism/gallery-downloader/internal/download"
	"github.com/handiism/gallery-downloader/internal/ledger"
	"github.com/handiism/gallery-downloader/internal/logging"
	"github.com/handiism/gallery-downloader/internal/metrics"
	"github.com/handiism/gallery-downloader/internal/notify"
	"github.com/handiism/gallery-downloader/internal/server"
	"github.com/handiism/gallery-downloader/internal/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		listen string
		start  bool
	)

	cmd := &cobra.Command{
		Use:   "serve <list.json>",
		Short: "Load a list and control its download over HTTP",
		Long: `Load a list and expose the download controls over HTTP:

  POST /start, /pause, /stop
  PUT  /concurrency   {"threads": 3}
  GET  /status
  GET  /metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := root.loadSettings()
			if err != nil {
				return err
			}
			if listen != "" {
				settings.ListenAddress = listen
			}
			if start {
				settings.QuietDownload = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			level := "info"
			if root.verbose {
				level = "debug"
			}
			return runServe(ctx, cmd.ErrOrStderr(), settings, args[0], level)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&start, "start", false, "start downloading right away")

	return cmd
}

func runServe(ctx context.Context, logOut io.Writer, settings *config.Settings, listPath, level string) error {
	logger := logging.New(level, logOut)

	items, err := source.LoadFile(listPath, settings.ToPathConfig())
	if err != nil {
		return err
	}

	bus := notify.NewBus()
	defer bus.Close()
	bus.Subscribe(logging.Events(logger))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	bus.Subscribe(collector.Observe)

	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	exec := download.NewHTTPExecutor(settings, nil, bus)
	opts := append(download.SettingsOptions(settings), download.WithContext(runCtx))
	s := download.NewScheduler(items, ledger.NewMemory(0), exec, bus, opts...)
	s.ConfigureConcurrency(settings.DownloadThread)

	srv := server.NewServer(settings.ListenAddress, settings.APIToken, s, metrics.Handler(reg), logger)
	logger.Info("list loaded", "path", listPath, "items", len(items))

	if settings.QuietDownload {
		s.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		s.Stop()
		cancelRun()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
