package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	name string
	urls []string
}

func (s *stubFetcher) Fetch(_ context.Context, url string, _ int64, _ time.Duration) ([]byte, error) {
	s.urls = append(s.urls, url)
	return []byte(s.name), nil
}

func TestRouter_DispatchesByScheme(t *testing.T) {
	httpF := &stubFetcher{name: "http"}
	ftpF := &stubFetcher{name: "ftp"}
	r := NewRouter(httpF, ftpF)

	data, err := r.Fetch(context.Background(), "HTTPS://example.com/a.csv", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "http", string(data))

	data, err = r.Fetch(context.Background(), "ftp://ftp.example.com/pub/a.csv", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "ftp", string(data))

	assert.Len(t, httpF.urls, 1)
	assert.Len(t, ftpF.urls, 1)
}

func TestRouter_UnsupportedScheme(t *testing.T) {
	r := NewRouter(&stubFetcher{}, nil)

	for _, u := range []string{"file:///etc/passwd", "ftp://ftp.example.com/a.csv", "gopher://x/y"} {
		_, err := r.Fetch(context.Background(), u, 0, 0)
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr, u)
		assert.True(t, netErr.Permanent)
	}
}
