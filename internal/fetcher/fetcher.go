// Package fetcher retrieves and decodes the tabular sources the engine reads:
// paged JSON from the inspection registry over HTTP and delimited order
// exports from disk.
package fetcher

import (
	"context"
	"io"
	"net/url"
)

// Fetcher retrieves a remote resource.
type Fetcher interface {
	// Get requests rawURL with query merged into its query string and
	// returns the body of a 2xx response. The caller closes the body.
	Get(ctx context.Context, rawURL string, query url.Values) (io.ReadCloser, error)
}
