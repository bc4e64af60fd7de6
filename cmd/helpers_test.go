package main

import (
	"context"
	"sync"

	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/pipeline"
)

// fakeRunner answers every query with a canned result and records calls.
type fakeRunner struct {
	mu      sync.Mutex
	queries []string
	opts    []pipeline.Options
	abortOn string
}

func (f *fakeRunner) Run(_ context.Context, query string, opts pipeline.Options) *model.Result {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	if query == f.abortOn {
		return &model.Result{
			RunID:        "run-" + query,
			Query:        query,
			FinalAnswer:  "I could not fully answer it.",
			StageReached: model.StageAborted,
			LastStage:    model.StageSourceFound,
			Errors:       []model.StageError{{Stage: model.StageFileFetched, Kind: model.ErrorKindHTTPStatus, Message: "404"}},
		}
	}
	return &model.Result{
		RunID:        "run-" + query,
		Query:        query,
		FinalAnswer:  "answer to " + query,
		StageReached: model.StageDone,
		LastStage:    model.StageDone,
		CandidateURL: "https://data.example.gov/x.csv",
		Errors:       []model.StageError{},
	}
}
