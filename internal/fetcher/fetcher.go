// Package fetcher downloads candidate data files under a per-call timeout
// and byte ceiling. It never retries; callers own retry policy.
package fetcher

import (
	"context"
	"time"
)

// Fetcher retrieves the bytes behind a URL.
type Fetcher interface {
	// Fetch returns the full body of url. The call fails with
	// *NetworkError, *HTTPStatusError or *SizeExceededError. A
	// non-positive maxBytes or timeout disables that bound.
	Fetch(ctx context.Context, url string, maxBytes int64, timeout time.Duration) ([]byte, error)
}
