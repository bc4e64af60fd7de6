// Package assistant builds stage prompts for the Assistant, sends them with
// retry and circuit breaking, and parses the replies.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/data-agent/internal/config"
	"github.com/sells-group/data-agent/internal/prepare"
	"github.com/sells-group/data-agent/internal/resilience"
	"github.com/sells-group/data-agent/pkg/anthropic"
)

// Stage names used for cost attribution.
const (
	opPlanSearch       = "plan_search"
	opFindSourceURLs   = "find_source_urls"
	opDescribeAnalysis = "describe_analysis"
	opRunToolAnalysis  = "run_tool_analysis"
	opSynthesize       = "synthesize"
)

// Config configures a Gateway.
type Config struct {
	Model     string
	MaxTokens int64
	Retry     resilience.RetryConfig
}

// Gateway talks to the Assistant on behalf of pipeline runs. It is safe for
// concurrent use; the circuit breaker is shared by every run.
type Gateway struct {
	client  anthropic.Client
	cfg     Config
	breaker *resilience.CircuitBreaker
}

// New creates a Gateway. A nil breaker gets a default one.
func New(client anthropic.Client, cfg Config, breaker *resilience.CircuitBreaker) *Gateway {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "anthropic"})
	}
	return &Gateway{client: client, cfg: cfg, breaker: breaker}
}

// NewFromConfig creates a Gateway from the anthropic config section.
func NewFromConfig(client anthropic.Client, c config.AnthropicConfig) *Gateway {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitFromConfig("anthropic", c.Circuit))
	return New(client, Config{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Retry:     resilience.RetryFromConfig(c.Retry),
	}, breaker)
}

// Model returns the model used for every call.
func (g *Gateway) Model() string { return g.cfg.Model }

// TextReply is the reply of a prose stage.
type TextReply struct {
	Text  string
	Usage anthropic.TokenUsage
}

// SourceReply is the ranked candidate list from source identification.
type SourceReply struct {
	URLs  []string
	Usage anthropic.TokenUsage
}

// ToolResult is the outcome of the code execution analysis.
type ToolResult struct {
	// Executed is false when the model answered without running code.
	Executed bool
	// Output holds the stdout of the successful executions.
	Output string
	// Answer is the model's own commentary on the results.
	Answer string
	Usage  anthropic.TokenUsage
}

// Text returns the result text handed to synthesis.
func (r *ToolResult) Text() string {
	switch {
	case r.Output == "":
		return r.Answer
	case r.Answer == "":
		return r.Output
	default:
		return r.Output + "\n\n" + r.Answer
	}
}

// PlanSearch asks for a search strategy for query.
func (g *Gateway) PlanSearch(ctx context.Context, query string) (*TextReply, error) {
	return g.text(ctx, opPlanSearch, planSearchSystemPrompt, fmt.Sprintf(planSearchUserPrompt, query))
}

// FindSourceURLs asks for candidate data file URLs and returns them ranked.
func (g *Gateway) FindSourceURLs(ctx context.Context, strategy, webContent string) (*SourceReply, error) {
	if strings.TrimSpace(webContent) == "" {
		webContent = "(no web search results available)"
	}
	resp, err := g.send(ctx, opFindSourceURLs, anthropic.MessageRequest{
		System:   systemPrompt(findSourceSystemPrompt),
		Messages: []anthropic.Message{{Role: "user", Content: fmt.Sprintf(findSourceUserPrompt, strategy, webContent)}},
	})
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	parsed := ParseURLs(text)
	switch parsed.Status {
	case URLsNotFound:
		return nil, &NoCandidateError{Reply: text, Usage: resp.Usage}
	case URLsMalformed:
		return nil, &NoCandidateError{Malformed: true, Reply: text, Usage: resp.Usage}
	}

	urls := RankCandidates(parsed.URLs)
	zap.L().Debug("assistant: source candidates", zap.Strings("urls", urls))
	return &SourceReply{URLs: urls, Usage: resp.Usage}, nil
}

// DescribeAnalysis asks how to answer query given a data preview.
func (g *Gateway) DescribeAnalysis(ctx context.Context, preview, query string) (*TextReply, error) {
	return g.text(ctx, opDescribeAnalysis, describeAnalysisSystemPrompt, fmt.Sprintf(describeAnalysisUserPrompt, query, preview))
}

// RunToolAnalysis sends the prepared data to the Assistant with code
// execution enabled.
func (g *Gateway) RunToolAnalysis(ctx context.Context, payload *prepare.Payload, description, query string) (*ToolResult, error) {
	note := ""
	if n := PayloadNote(payload); n != "" {
		note = " (" + n + ")"
	}
	resp, err := g.send(ctx, opRunToolAnalysis, anthropic.MessageRequest{
		System: systemPrompt(toolAnalysisSystemPrompt),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(toolAnalysisUserPrompt, query, description, payload.Format, note, payload.Content),
		}},
		CodeExecution: true,
	})
	if err != nil {
		return nil, err
	}

	parsed := ParseToolReply(resp)
	switch parsed.Status {
	case ToolFailed:
		f := parsed.LastFailure
		return nil, &ToolExecutionError{ReturnCode: f.ReturnCode, ErrorCode: f.ErrorCode, Stderr: f.Stderr, Usage: resp.Usage}
	case ToolNotInvoked:
		if parsed.Answer == "" {
			return nil, &Error{Op: opRunToolAnalysis, Recoverable: true, Err: eris.New("empty reply without code execution")}
		}
		zap.L().Warn("assistant: code execution not invoked, using model answer")
	}

	return &ToolResult{
		Executed: parsed.Status == ToolExecuted,
		Output:   parsed.Output,
		Answer:   parsed.Answer,
		Usage:    resp.Usage,
	}, nil
}

// PayloadNote describes how much of the table a payload carries, or ""
// when it carries all of it.
func PayloadNote(p *prepare.Payload) string {
	switch {
	case p.Format == prepare.FormatSummary && p.OriginalRowCount > 0:
		return fmt.Sprintf("a per-column summary of %d rows; the rows themselves did not fit", p.OriginalRowCount)
	case p.Truncated:
		return fmt.Sprintf("the first %d of %d rows", p.IncludedRowCount, p.OriginalRowCount)
	default:
		return ""
	}
}

// Synthesize writes the final answer from the analysis results.
func (g *Gateway) Synthesize(ctx context.Context, toolResult, query, dataNote string) (*TextReply, error) {
	if dataNote == "" {
		dataNote = "None."
	}
	return g.text(ctx, opSynthesize, synthesizeSystemPrompt, fmt.Sprintf(synthesizeUserPrompt, query, toolResult, dataNote))
}

func (g *Gateway) text(ctx context.Context, op, system, user string) (*TextReply, error) {
	resp, err := g.send(ctx, op, anthropic.MessageRequest{
		System:   systemPrompt(system),
		Messages: []anthropic.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, &Error{Op: op, Recoverable: true, Err: eris.New("empty reply")}
	}
	return &TextReply{Text: text, Usage: resp.Usage}, nil
}

// systemPrompt marks a stage's fixed instructions as cacheable so repeated
// runs reuse the prompt prefix.
func systemPrompt(text string) []anthropic.SystemBlock {
	return []anthropic.SystemBlock{{Text: text, CacheControl: &anthropic.CacheControl{TTL: "5m"}}}
}

// send issues one logical call: transient failures are retried with
// backoff, each attempt passing through the shared circuit breaker.
func (g *Gateway) send(ctx context.Context, op string, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	req.Model = g.cfg.Model
	req.MaxTokens = g.cfg.MaxTokens

	retry := g.cfg.Retry
	retry.ShouldRetry = resilience.IsTransient
	retry.OnRetry = resilience.RetryLogger("anthropic", op)

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.Execute(ctx, g.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			resp, err := g.client.CreateMessage(ctx, req)
			if err != nil {
				return nil, markTransient(err)
			}
			return resp, nil
		})
	})
	if err != nil {
		return nil, classify(ctx, op, err)
	}

	resp.Usage.LogCost(g.cfg.Model, op)

	if resp.StopReason == "refusal" {
		return nil, &Error{Op: op, Recoverable: false, Err: eris.New("request refused by model policy")}
	}
	return resp, nil
}

// markTransient tags retryable API statuses so retry and the breaker agree
// on what counts as a transient failure.
func markTransient(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}

func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return eris.Wrapf(ctx.Err(), "assistant: %s", op)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &Error{Op: op, Recoverable: true, Err: err}
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Op:          op,
			StatusCode:  apiErr.StatusCode,
			Recoverable: resilience.IsTransientHTTPStatus(apiErr.StatusCode),
			Err:         err,
		}
	}
	return &Error{Op: op, Recoverable: true, Err: err}
}
