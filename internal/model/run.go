// Package model holds the run, stage and result types shared by the
// pipeline, the run ledger and the command surface.
package model

import (
	"fmt"
	"time"
)

// Stage is a step of a pipeline run.
type Stage string

const (
	StageQueryReceived     Stage = "query_received"
	StageStrategyPlanned   Stage = "strategy_planned"
	StageSourceFound       Stage = "source_found"
	StageFileFetched       Stage = "file_fetched"
	StageFileDecoded       Stage = "file_decoded"
	StageDataPrepared      Stage = "data_prepared"
	StageAnalysisDescribed Stage = "analysis_described"
	StageToolAnalyzed      Stage = "tool_analyzed"
	StageSynthesized       Stage = "synthesized"
	StageDone              Stage = "done"
	StageAborted           Stage = "aborted"
)

// stageOrder is the linear success path.
var stageOrder = []Stage{
	StageQueryReceived,
	StageStrategyPlanned,
	StageSourceFound,
	StageFileFetched,
	StageFileDecoded,
	StageDataPrepared,
	StageAnalysisDescribed,
	StageToolAnalyzed,
	StageSynthesized,
	StageDone,
}

// Next returns the stage that follows s on success. Terminal stages return
// themselves.
func (s Stage) Next() Stage {
	for i, st := range stageOrder[:len(stageOrder)-1] {
		if st == s {
			return stageOrder[i+1]
		}
	}
	return s
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageAborted
}

// Index returns the position of s on the success path, or -1 for Aborted
// and unknown stages.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// RunStatus is the ledger status of a run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusAborted RunStatus = "aborted"
)

// ErrorKind classifies a StageError.
type ErrorKind string

const (
	ErrorKindNetwork           ErrorKind = "network"
	ErrorKindHTTPStatus        ErrorKind = "http_status"
	ErrorKindSizeExceeded      ErrorKind = "size_exceeded"
	ErrorKindUnsupportedFormat ErrorKind = "unsupported_format"
	ErrorKindMalformedData     ErrorKind = "malformed_data"
	ErrorKindNoCandidate       ErrorKind = "no_candidate"
	ErrorKindToolExecution     ErrorKind = "tool_execution"
	ErrorKindAssistant         ErrorKind = "assistant"
	ErrorKindCancelled         ErrorKind = "cancelled"
	ErrorKindInternal          ErrorKind = "internal"
)

// StageError records one failure observed during a run.
type StageError struct {
	Stage       Stage     `json:"stage"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Attempt     int       `json:"attempt"`
	Candidate   string    `json:"candidate,omitempty"`
}

func (e StageError) String() string {
	s := fmt.Sprintf("%s (%s, attempt %d): %s", e.Stage, e.Kind, e.Attempt, e.Message)
	if e.Candidate != "" {
		s += " [" + e.Candidate + "]"
	}
	return s
}

// TokenUsage is the Assistant token consumption of a run.
type TokenUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

// PayloadMeta describes the data handed to the analysis tool.
type PayloadMeta struct {
	Format           string `json:"format"`
	Bytes            int    `json:"bytes"`
	Truncated        bool   `json:"truncated"`
	OriginalRowCount int    `json:"original_row_count"`
	IncludedRowCount int    `json:"included_row_count"`
}

// Result is the outcome of one run. A Result always carries a non-empty
// FinalAnswer, partial when the run aborted.
type Result struct {
	RunID        string `json:"run_id"`
	Query        string `json:"query"`
	FinalAnswer  string `json:"final_answer"`
	StageReached Stage  `json:"stage_reached"`
	// LastStage is the last stage completed before the run ended.
	LastStage        Stage        `json:"last_stage"`
	Errors           []StageError `json:"errors"`
	CandidateURL     string       `json:"candidate_url,omitempty"`
	CandidatesTried  int          `json:"candidates_tried"`
	Payload          *PayloadMeta `json:"payload,omitempty"`
	ToolExecuted     bool         `json:"tool_executed"`
	Usage            TokenUsage   `json:"usage"`
	EstimatedCostUSD float64      `json:"estimated_cost_usd"`
	StartedAt        time.Time    `json:"started_at"`
	DurationMS       int64        `json:"duration_ms"`
}

// Succeeded reports whether the run reached Done.
func (r *Result) Succeeded() bool { return r.StageReached == StageDone }

// Status maps the reached stage to a ledger status.
func (r *Result) Status() RunStatus {
	switch r.StageReached {
	case StageDone:
		return RunStatusDone
	case StageAborted:
		return RunStatusAborted
	default:
		return RunStatusRunning
	}
}

// Run is a ledger record of a run.
type Run struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    RunStatus `json:"status"`
	Stage     Stage     `json:"stage"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageEvent is a ledger record of one stage attempt.
type StageEvent struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Stage     Stage       `json:"stage"`
	Attempt   int         `json:"attempt"`
	Candidate string      `json:"candidate,omitempty"`
	Error     *StageError `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
