package model

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal-file.png", "normal-file.png"},
		{"file:with:colons.png", "file_with_colons.png"},
		{"file<with>brackets.png", "file_with_brackets.png"},
		{"file/with\\slashes.png", "file_with_slashes.png"},
		{"file|with|pipes.png", "file_with_pipes.png"},
		{"file?with*wildcards.png", "file_with_wildcards.png"},
		{"file\"with\"quotes.png", "file_with_quotes.png"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
		{"trailing spaces   ", "trailing spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeFileName(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewArtwork_PathComputation(t *testing.T) {
	cfg := &PathConfig{
		DownloadsPath:  "/pictures",
		FileNameFormat: "{user}/{id}-{title}",
	}

	date := time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC)
	art := NewArtwork("81234567", 2, "Sun: set", "alice", "1001", "https://i.example.net/img/81234567_p2.png", date, cfg)

	if art.ID != "81234567_p2" {
		t.Errorf("ID = %q, want %q", art.ID, "81234567_p2")
	}
	if art.Ext != "png" {
		t.Errorf("Ext = %q, want %q", art.Ext, "png")
	}
	want := filepath.Join("/pictures", "alice", "81234567_p2-Sun_ set.png")
	if art.Path != want {
		t.Errorf("Path = %q, want %q", art.Path, want)
	}
}

func TestNewArtwork_DatePlaceholders(t *testing.T) {
	cfg := &PathConfig{
		DownloadsPath:  "/pictures",
		FileNameFormat: "{year}-{month}-{day}/{work_id}_{p}",
	}

	date := time.Date(2021, 3, 7, 0, 0, 0, 0, time.UTC)
	art := NewArtwork("42", 0, "x", "u", "1", "https://i.example.net/42.jpg?x=1", date, cfg)

	want := filepath.Join("/pictures", "2021-03-07", "42_0.jpg")
	if art.Path != want {
		t.Errorf("Path = %q, want %q", art.Path, want)
	}
}

func TestArtwork_Normalize(t *testing.T) {
	cfg := &PathConfig{DownloadsPath: "/pictures"}

	art := Artwork{WorkID: "99", Page: 1, URL: "https://i.example.net/99_p1"}
	art.Normalize(cfg)

	if art.ID != "99_p1" {
		t.Errorf("ID = %q, want %q", art.ID, "99_p1")
	}
	if art.Ext != "jpg" {
		t.Errorf("Ext = %q, want default jpg", art.Ext)
	}
	if art.Path != filepath.Join("/pictures", "99_p1.jpg") {
		t.Errorf("Path = %q", art.Path)
	}
}

func TestArtwork_LongPathFallsBackToID(t *testing.T) {
	cfg := &PathConfig{
		DownloadsPath:  "/pictures",
		FileNameFormat: "{title}",
	}

	art := NewArtwork("7", 0, strings.Repeat("a", 300), "u", "1", "https://i.example.net/7.gif", time.Now(), cfg)

	if art.Path != filepath.Join("/pictures", "7_p0.gif") {
		t.Errorf("Path = %q, want id-based fallback", art.Path)
	}
}

func TestArtwork_NormalizeRejectsMalformedExt(t *testing.T) {
	cfg := &PathConfig{DownloadsPath: "/pictures/out", FileNameFormat: "{user}/{id}"}

	tests := []struct {
		ext  string
		want string
	}{
		{"PNG", "png"},
		{"webp", "webp"},
		{"png/../../../../../tmp/evil", "png"},
		{"..", "png"},
		{"p:g", "png"},
		{"png\\..\\evil", "png"},
		{"", "png"},
	}

	for _, tt := range tests {
		art := Artwork{ID: "1_p0", User: "alice", URL: "https://x/a.png", Ext: tt.ext}
		art.Normalize(cfg)

		if art.Ext != tt.want {
			t.Errorf("Ext(%q) = %q, want %q", tt.ext, art.Ext, tt.want)
		}
		if want := filepath.Join("/pictures/out", "alice", "1_p0."+tt.want); art.Path != want {
			t.Errorf("Path(%q) = %q, want %q", tt.ext, art.Path, want)
		}
	}
}

func TestArtwork_PathStaysUnderDownloadsPath(t *testing.T) {
	cfg := &PathConfig{DownloadsPath: "/pictures/out", FileNameFormat: "{user}/{title}/{id}"}

	art := NewArtwork("5", 0, "..", "..", "1", "https://x/5.png", time.Now(), cfg)

	if !within(cfg.DownloadsPath, art.Path) {
		t.Errorf("Path = %q escapes %q", art.Path, cfg.DownloadsPath)
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/pictures/out/a.png", true},
		{"/pictures/out/alice/a.png", true},
		{"/pictures/out/..a.png", true},
		{"/pictures/a.png", false},
		{"/tmp/evil", false},
	}

	for _, tt := range tests {
		if got := within("/pictures/out", tt.path); got != tt.want {
			t.Errorf("within(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
