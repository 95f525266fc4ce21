package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Artwork is one downloadable file discovered by the gallery crawl.
//
// A single work with several pages produces one Artwork per page; ID is
// unique per page (for example "81234567_p0") and is the key the scheduler
// uses to track the item. Artwork values are immutable once a download run
// starts.
//
// Example:
//
//	cfg := &PathConfig{
//	    DownloadsPath:  "/pictures/gallery",
//	    FileNameFormat: "{user}/{id}-{title}",
//	}
//	art := NewArtwork("81234567", 0, "Sunset", "alice", "1001", url, date, cfg)
//	// art.Path = "/pictures/gallery/alice/81234567_p0-Sunset.png"
type Artwork struct {
	// ID identifies the file, including the page suffix.
	ID string `json:"id"`

	// WorkID is the gallery id of the parent work.
	WorkID string `json:"work_id"`

	// Page is the 0-indexed page of the parent work.
	Page int `json:"page"`

	// Title is the work title.
	Title string `json:"title"`

	// User is the display name of the author.
	User string `json:"user"`

	// UserID is the gallery id of the author.
	UserID string `json:"user_id"`

	// URL is the original-size file URL.
	URL string `json:"url"`

	// Ext is the file extension without the dot. Empty or malformed values are
	// derived from URL instead.
	Ext string `json:"ext"`

	// Date is when the work was published.
	Date time.Time `json:"date"`

	// Path is the computed local file path.
	Path string `json:"-"`
}

// PathConfig holds path formatting settings for artworks.
//
// FileNameFormat supports these placeholders:
//   - {id} - File id including the page suffix
//   - {work_id} - Parent work id
//   - {p} - Page number
//   - {title} - Work title
//   - {user} - Author name
//   - {user_id} - Author id
//   - {year}, {month}, {day} - Publish date components
//
// A "/" in FileNameFormat creates sub folders. The extension is appended
// automatically.
type PathConfig struct {
	// DownloadsPath is the base folder for all files.
	DownloadsPath string

	// FileNameFormat is the template for the path below DownloadsPath.
	FileNameFormat string
}

// NewArtwork creates an Artwork with its computed path.
func NewArtwork(workID string, page int, title, user, userID, url string, date time.Time, cfg *PathConfig) Artwork {
	art := Artwork{
		ID:     fmt.Sprintf("%s_p%d", workID, page),
		WorkID: workID,
		Page:   page,
		Title:  title,
		User:   user,
		UserID: userID,
		URL:    url,
		Date:   date,
	}
	art.Ext = art.extension()
	art.Path = art.ParseFilePath(cfg)
	return art
}

// Normalize fills in fields that a crawl export may leave empty and
// recomputes Path from cfg.
func (a *Artwork) Normalize(cfg *PathConfig) {
	if a.ID == "" && a.WorkID != "" {
		a.ID = fmt.Sprintf("%s_p%d", a.WorkID, a.Page)
	}
	if a.WorkID == "" {
		a.WorkID = strings.SplitN(a.ID, "_", 2)[0]
	}
	a.Ext = strings.ToLower(a.Ext)
	if !validExt.MatchString(a.Ext) {
		a.Ext = a.extension()
	}
	a.Path = a.ParseFilePath(cfg)
}

// ParseFilePath computes the full local path from the config template.
func (a *Artwork) ParseFilePath(cfg *PathConfig) string {
	format := cfg.FileNameFormat
	if format == "" {
		format = "{id}"
	}

	parts := strings.Split(format, "/")
	for i, part := range parts {
		parts[i] = sanitizeFileName(a.replacePlaceholders(part))
	}

	fileName := filepath.Join(parts...)
	if fileName == "" {
		fileName = sanitizeFileName(a.ID)
	}
	fileName += "." + a.Ext

	filePath := filepath.Join(cfg.DownloadsPath, fileName)

	// Limit total path length for Windows compatibility (MAX_PATH = 260)
	if len(filePath) >= 260 || !within(cfg.DownloadsPath, filePath) {
		filePath = filepath.Join(cfg.DownloadsPath, sanitizeFileName(a.ID)+"."+a.Ext)
	}

	return filePath
}

// within reports whether path is base itself or lies below it.
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (a *Artwork) replacePlaceholders(s string) string {
	s = strings.ReplaceAll(s, "{year}", a.Date.Format("2006"))
	s = strings.ReplaceAll(s, "{month}", a.Date.Format("01"))
	s = strings.ReplaceAll(s, "{day}", a.Date.Format("02"))
	s = strings.ReplaceAll(s, "{work_id}", a.WorkID)
	s = strings.ReplaceAll(s, "{id}", a.ID)
	s = strings.ReplaceAll(s, "{p}", fmt.Sprintf("%d", a.Page))
	s = strings.ReplaceAll(s, "{title}", a.Title)
	s = strings.ReplaceAll(s, "{user_id}", a.UserID)
	s = strings.ReplaceAll(s, "{user}", a.User)
	return s
}

// extension derives the file extension from URL, defaulting to "jpg".
func (a *Artwork) extension() string {
	u := a.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u), "."))
	if !validExt.MatchString(ext) {
		return "jpg"
	}
	return ext
}

var (
	validExt       = regexp.MustCompile(`^[a-z0-9]{1,8}$`)
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Trailing whitespace is removed
//
// Example:
//
//	sanitizeFileName("Sketch: Part 1/2") // Returns "Sketch_ Part 1_2"
func sanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " ")
}
