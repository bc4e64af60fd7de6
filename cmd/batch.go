package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/pipeline"
)

var (
	batchFile        string
	batchOut         string
	batchConcurrency int
)

// batchQuery is one entry of a batch file.
type batchQuery struct {
	ID    string `yaml:"id"`
	Query string `yaml:"query"`
}

type batchDoc struct {
	Queries []batchQuery `yaml:"queries"`
}

// batchLine is one JSON line of batch output.
type batchLine struct {
	ID     string        `json:"id,omitempty"`
	Result *model.Result `json:"result"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Answer every question in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("concurrency") {
			cfg.Batch.Concurrency = batchConcurrency
		}

		queries, err := loadBatchFile(batchFile)
		if err != nil {
			return err
		}

		env, err := initAgent(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		out := io.Writer(os.Stdout)
		if batchOut != "" {
			f, err := os.Create(batchOut)
			if err != nil {
				return eris.Wrap(err, "create batch output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		return processBatch(ctx, queries, cfg.Batch.Concurrency, env.Controller, env.Options, out)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "YAML file with a queries list")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "write JSON lines here instead of stdout")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent runs (default from config)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

func loadBatchFile(path string) ([]batchQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read batch file")
	}
	return parseBatchFile(data)
}

func parseBatchFile(data []byte) ([]batchQuery, error) {
	var doc batchDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse batch file")
	}

	queries := make([]batchQuery, 0, len(doc.Queries))
	for i, q := range doc.Queries {
		q.Query = strings.TrimSpace(q.Query)
		if q.Query == "" {
			return nil, eris.Errorf("batch file: query %d is empty", i+1)
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, eris.New("batch file: no queries")
	}
	return queries, nil
}

// processBatch runs queries with at most concurrency runs in flight and
// writes one JSON line per finished run. Aborted runs do not stop the batch.
func processBatch(ctx context.Context, queries []batchQuery, concurrency int, r runner, opts pipeline.Options, out io.Writer) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		enc     = json.NewEncoder(out)
		done    atomic.Int64
		aborted atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, q := range queries {
		g.Go(func() error {
			res := r.Run(gctx, q.Query, opts)
			if res.Succeeded() {
				done.Add(1)
			} else {
				aborted.Add(1)
			}

			mu.Lock()
			defer mu.Unlock()
			if err := enc.Encode(batchLine{ID: q.ID, Result: res}); err != nil {
				return eris.Wrapf(err, "write result for %s", q.ID)
			}
			return nil
		})
	}

	err := g.Wait()
	zap.L().Info("batch complete",
		zap.Int("queries", len(queries)),
		zap.Int64("done", done.Load()),
		zap.Int64("aborted", aborted.Load()),
	)
	return err
}
