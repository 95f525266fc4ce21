package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestSaveLoad_JSONAndYAML(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yaml", "settings.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			settings := DefaultSettings()
			settings.DownloadsPath = "/pictures"
			settings.DownloadThread = 3
			settings.ConvertToJPG = true
			require.NoError(t, settings.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, settings, loaded)
		})
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download_thread: 2\n"), 0644))

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, settings.DownloadThread)
	assert.Equal(t, 5, settings.DownloadThreadMax)
	assert.Equal(t, 5*time.Second, settings.RetryDelay())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	toml := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(toml, []byte("x = 1"), 0644))
	_, err := Load(toml)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	broken := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0644))
	_, err = Load(broken)
	assert.Error(t, err)

	assert.ErrorIs(t, DefaultSettings().Save(filepath.Join(dir, "out.ini")), ErrInvalidFormat)
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("GALLERY_REFERER=https://gallery.example.net/\nGALLERY_THREADS=9\n"), 0644))

	t.Setenv("GALLERY_THREADS", "2")
	t.Setenv("GALLERY_DOWNLOADS_PATH", "/env/path")
	t.Setenv("GALLERY_QUIET_DOWNLOAD", "true")
	t.Setenv("GALLERY_API_TOKEN", " secret ")
	t.Cleanup(func() { os.Unsetenv("GALLERY_REFERER") })

	settings := DefaultSettings()
	require.NoError(t, settings.ApplyEnv(dotenv, filepath.Join(dir, "missing.env")))

	assert.Equal(t, 2, settings.DownloadThread, "process env wins over .env")
	assert.Equal(t, "/env/path", settings.DownloadsPath)
	assert.Equal(t, "https://gallery.example.net/", settings.Referer)
	assert.True(t, settings.QuietDownload)
	assert.Equal(t, "secret", settings.APIToken)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	t.Setenv("GALLERY_THREADS", "many")
	assert.Error(t, DefaultSettings().ApplyEnv())

	t.Setenv("GALLERY_THREADS", "1")
	t.Setenv("GALLERY_QUIET_DOWNLOAD", "maybe")
	assert.Error(t, DefaultSettings().ApplyEnv())
}

func TestToPathConfig(t *testing.T) {
	settings := DefaultSettings()
	settings.DownloadsPath = "/pictures"
	settings.FileNameFormat = "{id}"

	cfg := settings.ToPathConfig()
	assert.Equal(t, "/pictures", cfg.DownloadsPath)
	assert.Equal(t, "{id}", cfg.FileNameFormat)
}
