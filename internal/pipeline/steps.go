package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/data-agent/internal/assistant"
	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/prepare"
	"github.com/sells-group/data-agent/internal/tabular"
)

func errUnknownStage(s model.Stage) error {
	return eris.Errorf("pipeline: no step leads to stage %q", s)
}

func (c *Controller) planStrategy(ctx context.Context, st *runState) error {
	reply, err := c.assistant.PlanSearch(ctx, st.query)
	if err != nil {
		return err
	}
	st.usage = st.usage.Add(reply.Usage)
	st.strategy = reply.Text
	return nil
}

func (c *Controller) findSource(ctx context.Context, st *runState) error {
	if !st.searched && c.searcher != nil {
		content, err := c.searcher.Gather(ctx, st.query)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			zap.L().Warn("pipeline: web search failed, continuing without it",
				zap.String("run_id", st.runID), zap.Error(err))
		}
		st.webContent = content
	}
	st.searched = true

	reply, err := c.assistant.FindSourceURLs(ctx, st.strategy, st.webContent)
	if err != nil {
		var nc *assistant.NoCandidateError
		if errors.As(err, &nc) {
			st.usage = st.usage.Add(nc.Usage)
		}
		return err
	}
	st.usage = st.usage.Add(reply.Usage)

	st.candidates = reply.URLs
	st.candidateIndex = 0
	st.candidateURL = reply.URLs[0]
	st.candidatesTried = 1
	return nil
}

func (c *Controller) fetchFile(ctx context.Context, st *runState, opts Options) error {
	data, err := c.fetcher.Fetch(ctx, st.candidateURL, opts.MaxFileBytes, opts.FetchTimeout)
	if err != nil {
		return err
	}
	st.data = data

	if c.downloads != nil {
		c.removeDownload(zap.L(), st)
		p, err := c.downloads.Save(st.runID, st.candidateIndex, st.candidateURL, data)
		if err != nil {
			zap.L().Warn("pipeline: save download", zap.String("run_id", st.runID), zap.Error(err))
		} else {
			st.downloadPath = p
		}
	}
	return nil
}

func (c *Controller) decodeFile(st *runState, opts Options) error {
	table, err := tabular.Decode(st.data, tabular.Options{Sheet: opts.Sheet, SourceURL: st.candidateURL})
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return eris.Wrap(&tabular.MalformedDataError{Reason: "table has no data rows"}, "pipeline: decode")
	}
	st.table = table
	st.data = nil
	return nil
}

func (c *Controller) prepareData(st *runState, opts Options) error {
	payload := prepare.Prepare(st.table, opts.DataByteBudget)
	st.payload = &payload
	st.preview = prepare.Preview(st.table, opts.PreviewRows)
	return nil
}

func (c *Controller) describeAnalysis(ctx context.Context, st *runState) error {
	reply, err := c.assistant.DescribeAnalysis(ctx, st.preview, st.query)
	if err != nil {
		return err
	}
	st.usage = st.usage.Add(reply.Usage)
	st.analysis = reply.Text
	return nil
}

func (c *Controller) runToolAnalysis(ctx context.Context, st *runState) error {
	res, err := c.assistant.RunToolAnalysis(ctx, st.payload, st.analysis, st.query)
	if err != nil {
		var te *assistant.ToolExecutionError
		if errors.As(err, &te) {
			st.usage = st.usage.Add(te.Usage)
		}
		return err
	}
	st.usage = st.usage.Add(res.Usage)
	st.tool = res
	return nil
}

func (c *Controller) synthesize(ctx context.Context, st *runState) error {
	reply, err := c.assistant.Synthesize(ctx, st.tool.Text(), st.query, dataNote(st))
	if err != nil {
		return err
	}
	st.usage = st.usage.Add(reply.Usage)
	st.answer = reply.Text
	return nil
}

func (c *Controller) finish(st *runState) error {
	if field := st.missingField(); field != "" {
		return eris.Errorf("pipeline: cannot finish without %s", field)
	}
	return nil
}

// dataNote tells synthesis what the analysis could and could not see.
func dataNote(st *runState) string {
	notes := []string{"Source: " + st.candidateURL}
	if st.payload != nil {
		if n := assistant.PayloadNote(st.payload); n != "" {
			notes = append(notes, "The analysis saw "+n+".")
		}
	}
	if st.tool != nil && !st.tool.Executed {
		notes = append(notes, "Code execution was not run; the figures were not computed from the data and may be estimates.")
	}
	return strings.Join(notes, "\n")
}
