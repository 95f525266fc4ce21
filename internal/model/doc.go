// Package model defines the data structures shared across the
// gallery-downloader application.
//
// # Artwork
//
// Artwork is one file of the fixed download list. Its local path is computed
// from a PathConfig when it is created or normalized:
//
//	cfg := &model.PathConfig{
//	    DownloadsPath:  "/pictures/gallery",
//	    FileNameFormat: "{user}/{id}-{title}",
//	}
//	art := model.NewArtwork("81234567", 0, "Sunset", "alice", "1001", url, date, cfg)
//	fmt.Println(art.Path)
//
// Available placeholders: {id}, {work_id}, {p}, {title}, {user}, {user_id},
// {year}, {month}, {day}
package model
