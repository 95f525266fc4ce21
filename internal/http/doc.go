// Package http provides the HTTP client used to fetch gallery files.
//
// The Client in this package handles:
//   - User-Agent and Referer headers
//   - File size retrieval via HEAD requests
//   - Timeout handling
//
// # Basic Usage
//
//	client := http.NewClient("GalleryDownloader", referer, time.Minute)
//
//	// Download an image into memory
//	data, err := client.Get(ctx, imageURL)
//
//	// Compare a local file against the remote size
//	size, err := client.GetFileSize(ctx, imageURL)
package http
