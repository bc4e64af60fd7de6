package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/data-agent/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{ID: "run-1", Query: "rainfall by month", Status: model.RunStatusDone, Stage: model.StageDone, CreatedAt: created},
		{ID: "run-2", Query: strings.Repeat("x", 100), Status: model.RunStatusAborted, Stage: model.StageAborted, CreatedAt: created},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "rainfall by month")
	assert.Contains(t, out, "2026-03-01 12:00:00")
	assert.Contains(t, out, "aborted")
	assert.Contains(t, out, strings.Repeat("x", 57)+"...")
}

func TestFormatRunDetail(t *testing.T) {
	run := &model.Run{
		ID: "run-1", Query: "rainfall by month", Status: model.RunStatusDone, Stage: model.StageDone,
		Result: &model.Result{
			CandidateURL: "https://data.example.gov/rain.csv",
			FinalAnswer:  "May is the wettest month.",
			Usage:        model.TokenUsage{InputTokens: 1200, OutputTokens: 300},
			DurationMS:   1500,
		},
	}
	events := []model.StageEvent{
		{Stage: model.StageFileFetched, Attempt: 1, Candidate: "https://a.example/x.csv",
			Error: &model.StageError{Kind: model.ErrorKindHTTPStatus, Message: "status 404"}},
		{Stage: model.StageFileFetched, Attempt: 1, Candidate: "https://data.example.gov/rain.csv"},
	}

	var buf bytes.Buffer
	formatRunDetail(&buf, run, events)
	out := buf.String()

	assert.Contains(t, out, "rainfall by month")
	assert.Contains(t, out, "https://data.example.gov/rain.csv")
	assert.Contains(t, out, "1200 in / 300 out")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "http_status: status 404")
	assert.Contains(t, out, "May is the wettest month.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
