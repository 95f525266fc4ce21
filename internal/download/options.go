package download

import "github.com/handiism/gallery-downloader/internal/config"

// SettingsOptions returns the scheduler options configured by settings. The
// requested thread count is not an option; pass settings.DownloadThread to
// ConfigureConcurrency.
func SettingsOptions(settings *config.Settings) []Option {
	return []Option{
		WithMaxConcurrency(settings.DownloadThreadMax),
		WithRetryDelay(settings.RetryDelay()),
	}
}
