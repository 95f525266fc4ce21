package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/handiism/gallery-downloader/internal/config"
	"github.com/spf13/cobra"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gallery-dl",
		Short: "Gallery Downloader - download artwork from a crawl result list",
		Long: `Gallery Downloader downloads every file of a crawl result list with:
- A bounded number of download threads
- Pause, resume and stop
- Automatic retry of failed files

For interactive mode, use: gallery-tui`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with GALLERY_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "show verbose output")

	rootCmd.AddCommand(newDownloadCommand(opts))
	rootCmd.AddCommand(newURLsCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))

	return rootCmd
}

// loadSettings reads the config file when one is given, then applies
// environment overrides.
func (o *rootOptions) loadSettings() (*config.Settings, error) {
	settings := config.DefaultSettings()
	if o.configPath != "" {
		var err error
		settings, err = config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var envFiles []string
	if o.envFile != "" {
		envFiles = append(envFiles, o.envFile)
	}
	if err := settings.ApplyEnv(envFiles...); err != nil {
		return nil, err
	}

	return settings, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.msg != "" {
				fmt.Fprintln(os.Stderr, exit.msg)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
