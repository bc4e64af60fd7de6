// Package websearch turns a data question into web search context for
// source identification.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/data-agent/internal/resilience"
	"github.com/sells-group/data-agent/pkg/jina"
)

// maxSnippetLen caps each result's description in the rendered context.
const maxSnippetLen = 400

// Searcher gathers web content relevant to a query.
type Searcher interface {
	Gather(ctx context.Context, query string) (string, error)
}

// JinaSearcher implements Searcher with the Jina search API.
type JinaSearcher struct {
	client     jina.Client
	maxResults int
	retry      resilience.RetryConfig
}

// NewJinaSearcher creates a Searcher. A nil client yields a searcher that
// always returns empty content.
func NewJinaSearcher(client jina.Client, maxResults int, retry resilience.RetryConfig) *JinaSearcher {
	if maxResults <= 0 {
		maxResults = 5
	}
	retry.ShouldRetry = isRetryable
	retry.OnRetry = resilience.RetryLogger("jina", "search")
	return &JinaSearcher{client: client, maxResults: maxResults, retry: retry}
}

// Gather searches for downloadable data files answering query and renders
// the hits as a numbered list of title, URL and snippet.
func (s *JinaSearcher) Gather(ctx context.Context, query string) (string, error) {
	if s == nil || s.client == nil {
		return "", nil
	}

	q := SearchQuery(query)
	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*jina.SearchResponse, error) {
		return s.client.Search(ctx, q, jina.WithCount(s.maxResults), jina.WithoutPageContent())
	})
	if err != nil {
		return "", eris.Wrapf(err, "websearch: search %q", q)
	}

	zap.L().Debug("web search complete",
		zap.String("search_query", q),
		zap.Int("results", len(resp.Data)),
	)
	return Render(resp.Data), nil
}

// SearchQuery biases a question toward downloadable data files.
func SearchQuery(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	return q + " dataset download csv OR xlsx OR json"
}

// Render formats search results for inclusion in a prompt.
func Render(results []jina.SearchResult) string {
	var b strings.Builder
	n := 0
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n", n, strings.TrimSpace(r.Title), r.URL)
		snippet := strings.TrimSpace(r.Description)
		if snippet == "" {
			snippet = strings.TrimSpace(r.Content)
		}
		if snippet != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(strings.Join(strings.Fields(snippet), " "), maxSnippetLen))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func isRetryable(err error) bool {
	var statusErr *jina.StatusError
	if errors.As(err, &statusErr) {
		return resilience.IsTransientHTTPStatus(statusErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
