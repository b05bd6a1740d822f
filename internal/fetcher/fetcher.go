// Package fetcher downloads archives from the Census Bureau's HTTP and FTP
// hosts with per-host rate limiting and retry, and extracts ZIP bundles.
package fetcher

import (
	"context"
	"io"
)

// Fetcher is the download side of the archive pipeline. HTTPFetcher is the
// default implementation; FTPFetcher backs the mirror fallback.
type Fetcher interface {
	// Download streams the body of url. The caller owns the ReadCloser.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile streams url into path and reports the bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
