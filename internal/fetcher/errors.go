package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/rotisserie/eris"
)

var (
	errInvalidURL        = eris.New("not an absolute http(s) url")
	errUnsupportedScheme = eris.New("unsupported url scheme")
)

// NetworkError reports a transport-level failure: DNS, connection,
// timeout or a broken transfer.
type NetworkError struct {
	URL     string
	Timeout bool
	// Permanent marks failures that will not succeed on retry, such as an
	// unsupported scheme or an FTP 5xx reply.
	Permanent bool
	Err       error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx HTTP response.
type HTTPStatusError struct {
	URL    string
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected http status %d", e.URL, e.Status)
}

// SizeExceededError reports a body larger than the caller's byte ceiling.
type SizeExceededError struct {
	URL   string
	Limit int64
	// Declared is the advertised size when the server sent one, else 0.
	Declared int64
}

func (e *SizeExceededError) Error() string {
	if e.Declared > 0 {
		return fmt.Sprintf("fetch %s: declared size %d exceeds limit %d bytes", e.URL, e.Declared, e.Limit)
	}
	return fmt.Sprintf("fetch %s: body exceeds limit %d bytes", e.URL, e.Limit)
}

func newNetworkError(url string, err error) *NetworkError {
	ne := &NetworkError{URL: url, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		ne.Timeout = true
	}
	return ne
}

// readLimited reads r to EOF, failing once more than maxBytes arrive.
// Nothing past maxBytes+1 bytes is buffered.
func readLimited(r io.Reader, url string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, newNetworkError(url, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, newNetworkError(url, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, &SizeExceededError{URL: url, Limit: maxBytes}
	}
	return data, nil
}
