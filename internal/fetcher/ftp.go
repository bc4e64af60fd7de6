package fetcher

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	// DialTimeout bounds connection setup when the caller passes no timeout.
	DialTimeout time.Duration
}

// FTPFetcher downloads files from anonymous FTP servers, as published by
// many statistics agencies.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host (with port), path and credentials from an FTP URL.
func parseFTPURL(rawURL string) (host, path, user, pass string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" || path == "/" {
		return "", "", "", "", eris.New("empty path in ftp url")
	}

	user, pass = "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	return host, path, user, pass, nil
}

// Fetch retrieves a single file over FTP.
func (f *FTPFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64, timeout time.Duration) ([]byte, error) {
	host, path, user, pass, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Permanent: true, Err: err}
	}

	dialTimeout := f.opts.DialTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		dialTimeout = min(dialTimeout, timeout)
	}

	zap.L().Debug("fetch: ftp connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(dialTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, ftpError(rawURL, "ftp dial", err)
	}
	defer conn.Quit() //nolint:errcheck

	// Quit does not interrupt a transfer in flight, so tie the connection
	// to the caller's deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.Quit() })
	defer stop()

	if err := conn.Login(user, pass); err != nil {
		return nil, ftpError(rawURL, "ftp login", err)
	}

	if maxBytes > 0 {
		if size, err := conn.FileSize(path); err == nil && size > maxBytes {
			return nil, &SizeExceededError{URL: rawURL, Limit: maxBytes, Declared: size}
		}
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, ftpError(rawURL, "ftp retrieve", err)
	}
	defer resp.Close() //nolint:errcheck

	data, err := readLimited(resp, rawURL, maxBytes)
	if err != nil {
		var ne *NetworkError
		if errors.As(err, &ne) && ctx.Err() != nil {
			ne.Timeout = errors.Is(ctx.Err(), context.DeadlineExceeded)
		}
		return nil, err
	}
	return data, nil
}

// ftpError classifies a protocol failure. Permanent negative replies (5xx,
// for example 550 file unavailable) are not worth retrying.
func ftpError(rawURL, op string, err error) *NetworkError {
	ne := newNetworkError(rawURL, eris.Wrap(err, op))
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		ne.Permanent = true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		ne.Timeout = true
	}
	return ne
}
