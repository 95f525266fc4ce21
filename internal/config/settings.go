package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/handiism/gallery-downloader/internal/model"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFormat is returned for settings files that are neither JSON nor YAML.
var ErrInvalidFormat = errors.New("unsupported settings file format")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GALLERY_"

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadsPath             string  `json:"downloads_path" yaml:"downloads_path"`
	FileNameFormat            string  `json:"file_name_format" yaml:"file_name_format"`
	DownloadThread            int     `json:"download_thread" yaml:"download_thread"`
	DownloadThreadMax         int     `json:"download_thread_max" yaml:"download_thread_max"`
	ErrorRetryDelay           float64 `json:"error_retry_delay" yaml:"error_retry_delay"`
	QuietDownload             bool    `json:"quiet_download" yaml:"quiet_download"`
	SkipExisting              bool    `json:"skip_existing" yaml:"skip_existing"`
	AllowedFileSizeDifference float64 `json:"allowed_file_size_difference" yaml:"allowed_file_size_difference"`

	// Fetch settings
	FetchMaxRetries    int     `json:"fetch_max_retries" yaml:"fetch_max_retries"`
	FetchRetryCooldown float64 `json:"fetch_retry_cooldown" yaml:"fetch_retry_cooldown"`
	FetchRetryExponent float64 `json:"fetch_retry_exponent" yaml:"fetch_retry_exponent"`
	RequestTimeout     float64 `json:"request_timeout" yaml:"request_timeout"`
	UserAgent          string  `json:"user_agent" yaml:"user_agent"`
	Referer            string  `json:"referer" yaml:"referer"`
	ConvertToJPG       bool    `json:"convert_to_jpg" yaml:"convert_to_jpg"`
	ResizeImages       bool    `json:"resize_images" yaml:"resize_images"`
	ResizeMaxSize      int     `json:"resize_max_size" yaml:"resize_max_size"`

	// Control server settings
	ListenAddress string `json:"listen_address" yaml:"listen_address"`
	APIToken      string `json:"api_token" yaml:"api_token"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:             filepath.Join(homeDir, "Pictures", "Gallery"),
		FileNameFormat:            "{user}/{id}",
		DownloadThread:            5,
		DownloadThreadMax:         5,
		ErrorRetryDelay:           5,
		QuietDownload:             false,
		SkipExisting:              true,
		AllowedFileSizeDifference: 0.05,

		FetchMaxRetries:    3,
		FetchRetryCooldown: 0.5,
		FetchRetryExponent: 2.0,
		RequestTimeout:     60,
		UserAgent:          "GalleryDownloader",
		Referer:            "",
		ConvertToJPG:       false,
		ResizeImages:       false,
		ResizeMaxSize:      4000,

		ListenAddress: "127.0.0.1:7080",
		APIToken:      "",
	}
}

// Load reads settings from a JSON or YAML file, chosen by extension.
// A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	switch format(path) {
	case "yaml":
		err = yaml.Unmarshal(data, settings)
	case "json":
		err = json.Unmarshal(data, settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON or YAML file, chosen by extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch format(path) {
	case "yaml":
		data, err = yaml.Marshal(s)
	case "json":
		data, err = json.MarshalIndent(s, "", "  ")
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, path)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json", "":
		return "json"
	default:
		return ""
	}
}

// ApplyEnv overrides settings from GALLERY_* environment variables. Variables
// in dotenv files are loaded first without replacing ones already set;
// missing dotenv files are ignored.
func (s *Settings) ApplyEnv(dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	if v, ok := lookup("DOWNLOADS_PATH"); ok {
		s.DownloadsPath = v
	}
	if v, ok := lookup("FILE_NAME_FORMAT"); ok {
		s.FileNameFormat = v
	}
	if v, ok := lookup("USER_AGENT"); ok {
		s.UserAgent = v
	}
	if v, ok := lookup("REFERER"); ok {
		s.Referer = v
	}
	if v, ok := lookup("LISTEN_ADDRESS"); ok {
		s.ListenAddress = v
	}
	if v, ok := lookup("API_TOKEN"); ok {
		s.APIToken = v
	}
	if v, ok := lookup("THREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTHREADS: %w", EnvPrefix, err)
		}
		s.DownloadThread = n
	}
	if v, ok := lookup("QUIET_DOWNLOAD"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sQUIET_DOWNLOAD: %w", EnvPrefix, err)
		}
		s.QuietDownload = b
	}

	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{
		DownloadsPath:  s.DownloadsPath,
		FileNameFormat: s.FileNameFormat,
	}
}

// RetryDelay returns the pause before failed items are retried.
func (s *Settings) RetryDelay() time.Duration {
	return seconds(s.ErrorRetryDelay)
}

// Timeout returns the per-request HTTP timeout.
func (s *Settings) Timeout() time.Duration {
	return seconds(s.RequestTimeout)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
