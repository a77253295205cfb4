// Package fetcher downloads remote pages and feeds politely: per-host rate
// limits, retries on transient failures and conditional GETs.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadIfChanged fetches the URL only if the ETag has changed.
	// Returns (body, newETag, changed, error). If not changed, body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// MaxBodyBytes caps how much of a page ReadAll keeps.
const MaxBodyBytes = 5 << 20

// ReadAll downloads the URL and returns at most MaxBodyBytes of its body.
func ReadAll(ctx context.Context, f Fetcher, url string) ([]byte, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	return io.ReadAll(io.LimitReader(body, MaxBodyBytes))
}
