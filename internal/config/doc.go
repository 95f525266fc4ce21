// Package config provides configuration management for gallery-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON or YAML files
//   - Default configuration values
//   - GALLERY_* environment overrides, optionally read from a .env file
//   - Conversion to PathConfig for the model package
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Pictures/Gallery/{user}/{id}.{ext}
//	// 5 download threads
//	// Failed files retried after 5 seconds
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.yaml")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	err = settings.ApplyEnv(".env")
//
// # Saving Settings
//
//	settings.DownloadsPath = "/custom/path"
//	err := settings.Save("/path/to/config.json")
package config
