// Package pipeline runs a data question through the stage machine: plan a
// search, find a source, fetch and decode it, prepare the data, have the
// Assistant analyze it with code execution, and synthesize an answer.
package pipeline

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/data-agent/internal/assistant"
	"github.com/sells-group/data-agent/internal/fetcher"
	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/prepare"
	"github.com/sells-group/data-agent/internal/store"
	"github.com/sells-group/data-agent/internal/websearch"
)

// Assistant is the reasoning service the controller drives.
type Assistant interface {
	PlanSearch(ctx context.Context, query string) (*assistant.TextReply, error)
	FindSourceURLs(ctx context.Context, strategy, webContent string) (*assistant.SourceReply, error)
	DescribeAnalysis(ctx context.Context, preview, query string) (*assistant.TextReply, error)
	RunToolAnalysis(ctx context.Context, payload *prepare.Payload, description, query string) (*assistant.ToolResult, error)
	Synthesize(ctx context.Context, toolResult, query, dataNote string) (*assistant.TextReply, error)
	Model() string
}

// Controller runs queries. One Controller serves any number of concurrent
// runs; all per-run state lives in the Run call.
type Controller struct {
	assistant Assistant
	fetcher   fetcher.Fetcher
	searcher  websearch.Searcher
	downloads *fetcher.DownloadDir
	store     store.Store
	newID     func() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithSearcher supplies web search context for source identification.
func WithSearcher(s websearch.Searcher) Option {
	return func(c *Controller) { c.searcher = s }
}

// WithDownloadDir keeps fetched files on disk for the run's duration.
func WithDownloadDir(d *fetcher.DownloadDir) Option {
	return func(c *Controller) { c.downloads = d }
}

// WithStore records runs and stage attempts in the ledger.
func WithStore(st store.Store) Option {
	return func(c *Controller) { c.store = st }
}

// New creates a Controller.
func New(a Assistant, f fetcher.Fetcher, opts ...Option) *Controller {
	c := &Controller{
		assistant: a,
		fetcher:   f,
		newID:     func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run answers query. It never returns an error: failures end the run in
// the Aborted stage with a partial answer explaining what went wrong.
func (c *Controller) Run(ctx context.Context, query string, opts Options) *model.Result {
	opts = opts.normalize()
	start := time.Now()
	st := newRunState(c.newID(), query)

	log := zap.L().With(zap.String("run_id", st.runID))
	log.Info("pipeline: run started", zap.String("query", query))

	runCtx := ctx
	if opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.OverallTimeout)
		defer cancel()
	}

	c.ledger(log, func(ctx context.Context, s store.Store) error {
		_, err := s.CreateRun(ctx, st.runID, query)
		return err
	})

	for !st.stage.Terminal() {
		if err := runCtx.Err(); err != nil {
			c.cancel(log, st, st.stage.Next(), err)
			break
		}
		c.advance(runCtx, log, st, opts)
	}

	if st.stage == model.StageAborted {
		st.answer = partialAnswer(st)
	}
	c.cleanup(log, st, opts)

	res := c.result(st, start)
	c.ledger(log, func(ctx context.Context, s store.Store) error {
		return s.CompleteRun(ctx, st.runID, res)
	})

	log.Info("pipeline: run finished",
		zap.String("stage", string(res.StageReached)),
		zap.String("last_stage", string(res.LastStage)),
		zap.Int("errors", len(res.Errors)),
		zap.Int64("duration_ms", res.DurationMS),
		zap.Float64("estimated_cost_usd", res.EstimatedCostUSD),
	)
	return res
}

// advance attempts the transition out of the current stage once and
// applies the retry and candidate policy to the outcome.
func (c *Controller) advance(ctx context.Context, log *zap.Logger, st *runState, opts Options) {
	target := st.stage.Next()
	st.stageAttempts[target]++
	attempt := st.stageAttempts[target]

	stepStart := time.Now()
	err := c.step(ctx, st, target, opts)
	stepLog := log.With(
		zap.String("stage", string(target)),
		zap.Int("attempt", attempt),
		zap.Int64("duration_ms", time.Since(stepStart).Milliseconds()),
	)
	if st.candidateURL != "" && isCandidateStage(target) {
		stepLog = stepLog.With(zap.String("candidate", st.candidateURL))
	}

	if err == nil {
		stepLog.Info("pipeline: stage complete")
		st.stage = target
		st.last = target
		c.recordEvent(log, st, target, attempt, nil)
		c.ledger(log, func(ctx context.Context, s store.Store) error {
			return s.UpdateRunStage(ctx, st.runID, target)
		})
		return
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		c.cancel(log, st, target, ctxErr)
		return
	}

	kind, recoverable := classify(err)
	se := model.StageError{
		Stage:       target,
		Kind:        kind,
		Message:     err.Error(),
		Recoverable: recoverable,
		Attempt:     attempt,
	}
	if isCandidateStage(target) {
		se.Candidate = st.candidateURL
	}
	c.recordEvent(log, st, target, attempt, &se)

	var pErr *panicError
	if errors.As(err, &pErr) {
		stepLog.Error("pipeline: stage panicked", zap.Any("panic", pErr.value), zap.ByteString("stack", pErr.stack))
	}

	if recoverable && attempt <= opts.MaxStageRetries {
		stepLog.Warn("pipeline: stage failed, retrying", zap.String("kind", string(kind)), zap.Error(err))
		return
	}

	st.errors = append(st.errors, se)

	if isCandidateStage(target) {
		stepLog.Warn("pipeline: candidate failed", zap.String("kind", string(kind)), zap.Error(err))
		c.nextCandidate(log, st, opts)
		return
	}

	stepLog.Error("pipeline: run aborted", zap.String("kind", string(kind)), zap.Error(err))
	st.stage = model.StageAborted
}

// nextCandidate moves back to SourceFound with the next ranked candidate,
// or aborts when the candidates or the candidate budget run out.
func (c *Controller) nextCandidate(log *zap.Logger, st *runState, opts Options) {
	c.removeDownload(log, st)
	st.data = nil
	st.table = nil

	next := st.candidateIndex + 1
	if next >= len(st.candidates) || st.candidatesTried >= opts.CandidateRetryLimit {
		st.errors = append(st.errors, model.StageError{
			Stage:   model.StageSourceFound,
			Kind:    model.ErrorKindNoCandidate,
			Message: noUsableCandidateMessage(st.candidatesTried),
			Attempt: st.candidatesTried,
		})
		st.stage = model.StageAborted
		return
	}

	st.candidateIndex = next
	st.candidateURL = st.candidates[next]
	st.candidatesTried++
	delete(st.stageAttempts, model.StageFileFetched)
	delete(st.stageAttempts, model.StageFileDecoded)
	st.stage = model.StageSourceFound
	st.last = model.StageSourceFound
	log.Info("pipeline: trying next candidate",
		zap.String("candidate", st.candidateURL),
		zap.Int("candidates_tried", st.candidatesTried),
	)
}

func (c *Controller) cancel(log *zap.Logger, st *runState, target model.Stage, err error) {
	msg := "run cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "overall run deadline exceeded"
	}
	se := model.StageError{
		Stage:   target,
		Kind:    model.ErrorKindCancelled,
		Message: msg,
		Attempt: st.stageAttempts[target],
	}
	st.errors = append(st.errors, se)
	c.recordEvent(log, st, target, se.Attempt, &se)
	log.Warn("pipeline: run cancelled", zap.String("stage", string(target)), zap.Error(err))
	st.stage = model.StageAborted
}

// step performs the work that leads into target. Panics become errors.
func (c *Controller) step(ctx context.Context, st *runState, target model.Stage, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	switch target {
	case model.StageStrategyPlanned:
		return c.planStrategy(ctx, st)
	case model.StageSourceFound:
		return c.findSource(ctx, st)
	case model.StageFileFetched:
		return c.fetchFile(ctx, st, opts)
	case model.StageFileDecoded:
		return c.decodeFile(st, opts)
	case model.StageDataPrepared:
		return c.prepareData(st, opts)
	case model.StageAnalysisDescribed:
		return c.describeAnalysis(ctx, st)
	case model.StageToolAnalyzed:
		return c.runToolAnalysis(ctx, st)
	case model.StageSynthesized:
		return c.synthesize(ctx, st)
	case model.StageDone:
		return c.finish(st)
	default:
		return errUnknownStage(target)
	}
}

func isCandidateStage(s model.Stage) bool {
	return s == model.StageFileFetched || s == model.StageFileDecoded
}

func (c *Controller) result(st *runState, start time.Time) *model.Result {
	res := &model.Result{
		RunID:           st.runID,
		Query:           st.query,
		FinalAnswer:     st.answer,
		StageReached:    st.stage,
		LastStage:       st.last,
		Errors:          st.errors,
		CandidateURL:    st.candidateURL,
		CandidatesTried: st.candidatesTried,
		Usage: model.TokenUsage{
			InputTokens:              st.usage.InputTokens,
			OutputTokens:             st.usage.OutputTokens,
			CacheCreationInputTokens: st.usage.CacheCreationInputTokens,
			CacheReadInputTokens:     st.usage.CacheReadInputTokens,
		},
		EstimatedCostUSD: st.usage.EstimateCost(c.assistant.Model()),
		StartedAt:        start.UTC(),
		DurationMS:       time.Since(start).Milliseconds(),
	}
	if st.payload != nil {
		res.Payload = &model.PayloadMeta{
			Format:           string(st.payload.Format),
			Bytes:            st.payload.Size(),
			Truncated:        st.payload.Truncated,
			OriginalRowCount: st.payload.OriginalRowCount,
			IncludedRowCount: st.payload.IncludedRowCount,
		}
	}
	if st.tool != nil {
		res.ToolExecuted = st.tool.Executed
	}
	return res
}

func (c *Controller) cleanup(log *zap.Logger, st *runState, opts Options) {
	if opts.KeepDownloads {
		return
	}
	c.removeDownload(log, st)
}

func (c *Controller) removeDownload(log *zap.Logger, st *runState) {
	if c.downloads == nil || st.downloadPath == "" {
		return
	}
	if err := c.downloads.Remove(st.downloadPath); err != nil {
		log.Warn("pipeline: remove download", zap.String("path", st.downloadPath), zap.Error(err))
	}
	st.downloadPath = ""
}

// ledger runs a best-effort ledger write that survives run cancellation.
func (c *Controller) ledger(log *zap.Logger, fn func(ctx context.Context, s store.Store) error) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx, c.store); err != nil {
		log.Warn("pipeline: ledger write failed", zap.Error(err))
	}
}

func (c *Controller) recordEvent(log *zap.Logger, st *runState, stage model.Stage, attempt int, se *model.StageError) {
	ev := model.StageEvent{
		RunID:   st.runID,
		Stage:   stage,
		Attempt: attempt,
		Error:   se,
	}
	if isCandidateStage(stage) {
		ev.Candidate = st.candidateURL
	}
	c.ledger(log, func(ctx context.Context, s store.Store) error {
		return s.RecordStageEvent(ctx, ev)
	})
}
