package fetcher

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Router dispatches fetches by URL scheme.
type Router struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewRouter creates a Router over the given HTTP and FTP fetchers. A nil
// FTP fetcher disables ftp:// URLs.
func NewRouter(httpFetcher, ftpFetcher Fetcher) *Router {
	return &Router{HTTP: httpFetcher, FTP: ftpFetcher}
}

// Fetch routes rawURL to the fetcher for its scheme.
func (r *Router) Fetch(ctx context.Context, rawURL string, maxBytes int64, timeout time.Duration) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Permanent: true, Err: err}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if r.HTTP != nil {
			return r.HTTP.Fetch(ctx, rawURL, maxBytes, timeout)
		}
	case "ftp":
		if r.FTP != nil {
			return r.FTP.Fetch(ctx, rawURL, maxBytes, timeout)
		}
	}
	return nil, &NetworkError{URL: rawURL, Permanent: true, Err: errUnsupportedScheme}
}
