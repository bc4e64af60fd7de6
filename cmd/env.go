package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/data-agent/internal/assistant"
	"github.com/sells-group/data-agent/internal/config"
	"github.com/sells-group/data-agent/internal/fetcher"
	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/pipeline"
	"github.com/sells-group/data-agent/internal/resilience"
	"github.com/sells-group/data-agent/internal/store"
	"github.com/sells-group/data-agent/internal/websearch"
	anthropicpkg "github.com/sells-group/data-agent/pkg/anthropic"
	"github.com/sells-group/data-agent/pkg/jina"
)

// runner answers a query. *pipeline.Controller implements it.
type runner interface {
	Run(ctx context.Context, query string, opts pipeline.Options) *model.Result
}

// agentEnv holds the clients and controller shared by the ask, batch and
// serve commands.
type agentEnv struct {
	Store      store.Store // nil when the ledger is disabled
	Controller *pipeline.Controller
	Options    pipeline.Options
}

// Close releases resources held by the environment.
func (e *agentEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initAgent validates config for mode, opens the ledger and builds the
// Controller. Callers should defer env.Close().
func initAgent(ctx context.Context, mode string) (*agentEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	gw := assistant.NewFromConfig(newAnthropicClient(cfg.Anthropic), cfg.Anthropic)

	opts := []pipeline.Option{
		pipeline.WithDownloadDir(&fetcher.DownloadDir{Dir: cfg.Fetch.DownloadDir}),
	}
	if s := newSearcher(cfg.Jina); s != nil {
		opts = append(opts, pipeline.WithSearcher(s))
	} else {
		zap.L().Info("jina key not set, source identification runs without web search")
	}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}

	return &agentEnv{
		Store:      st,
		Controller: pipeline.New(gw, newFetcher(cfg.Fetch), opts...),
		Options:    pipeline.OptionsFromConfig(cfg),
	}, nil
}

func newAnthropicClient(c config.AnthropicConfig) anthropicpkg.Client {
	var opts []anthropicpkg.Option
	if c.BaseURL != "" {
		opts = append(opts, anthropicpkg.WithBaseURL(c.BaseURL))
	}
	if c.TimeoutSecs > 0 {
		opts = append(opts, anthropicpkg.WithRequestTimeout(time.Duration(c.TimeoutSecs)*time.Second))
	}
	return anthropicpkg.NewClient(c.Key, opts...)
}

func newFetcher(c config.FetchConfig) fetcher.Fetcher {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   c.UserAgent,
		RatePerHost: rate.Limit(c.RatePerHost),
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		DialTimeout: time.Duration(c.TimeoutSecs) * time.Second,
	})
	return fetcher.NewRouter(httpFetcher, ftpFetcher)
}

// newSearcher returns nil when no Jina key is configured.
func newSearcher(c config.JinaConfig) websearch.Searcher {
	if c.Key == "" {
		return nil
	}
	opts := []jina.Option{jina.WithSearchBaseURL(c.SearchBaseURL)}
	if c.TimeoutSecs > 0 {
		opts = append(opts, jina.WithHTTPClient(&http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}))
	}
	return websearch.NewJinaSearcher(jina.NewClient(c.Key, opts...), c.MaxResults, resilience.DefaultRetryConfig())
}
