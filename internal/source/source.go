package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/handiism/gallery-downloader/internal/model"
)

// ErrEmpty is returned when a list holds no downloadable item.
var ErrEmpty = errors.New("no items to download")

// jsonArtwork is one entry of a crawl export.
type jsonArtwork struct {
	ID       string          `json:"id"`
	WorkID   json.RawMessage `json:"work_id"`
	IDNum    json.RawMessage `json:"idNum"`
	Page     int             `json:"page"`
	Title    string          `json:"title"`
	User     string          `json:"user"`
	UserID   json.RawMessage `json:"user_id"`
	URL      string          `json:"url"`
	Original string          `json:"original"`
	Ext      string          `json:"ext"`
	Date     *Time           `json:"date"`
}

// jsonList is the wrapped export form.
type jsonList struct {
	Result []jsonArtwork `json:"result"`
}

// toArtwork converts the entry, or returns false when it has no URL or id.
func (ja *jsonArtwork) toArtwork(cfg *model.PathConfig) (model.Artwork, bool) {
	art := model.Artwork{
		ID:     ja.ID,
		WorkID: rawID(ja.WorkID),
		Page:   ja.Page,
		Title:  ja.Title,
		User:   ja.User,
		UserID: rawID(ja.UserID),
		URL:    ja.URL,
		Ext:    ja.Ext,
	}
	if art.WorkID == "" {
		art.WorkID = rawID(ja.IDNum)
	}
	if art.URL == "" {
		art.URL = ja.Original
	}
	if ja.Date != nil {
		art.Date = ja.Date.Time
	}
	if art.URL == "" || (art.ID == "" && art.WorkID == "") {
		return model.Artwork{}, false
	}

	art.Normalize(cfg)
	return art, true
}

// rawID accepts ids written as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// Parse decodes a crawl export: either a JSON array of entries or an object
// whose "result" field holds that array.
//
// Entries without a URL or an id are dropped, as are repeated ids after the
// first. The remaining order is kept. Paths are computed from cfg.
func Parse(data []byte, cfg *model.PathConfig) ([]model.Artwork, error) {
	data = bytes.TrimSpace(data)

	var entries []jsonArtwork
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse list: %w", err)
		}
	} else {
		var list jsonList
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse list: %w", err)
		}
		entries = list.Result
	}

	seen := make(map[string]struct{}, len(entries))
	items := make([]model.Artwork, 0, len(entries))
	for i := range entries {
		art, ok := entries[i].toArtwork(cfg)
		if !ok {
			continue
		}
		if _, dup := seen[art.ID]; dup {
			continue
		}
		seen[art.ID] = struct{}{}
		items = append(items, art)
	}

	if len(items) == 0 {
		return nil, ErrEmpty
	}
	return items, nil
}

// LoadFile reads and parses the export at path.
func LoadFile(path string, cfg *model.PathConfig) ([]model.Artwork, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	items, err := Parse(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// URLs returns the URL of every item in list order.
func URLs(items []model.Artwork) []string {
	urls := make([]string, len(items))
	for i, item := range items {
		urls[i] = item.URL
	}
	return urls
}
