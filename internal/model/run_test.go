package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Stage
		want Stage
	}{
		{StageQueryReceived, StageStrategyPlanned},
		{StageStrategyPlanned, StageSourceFound},
		{StageSourceFound, StageFileFetched},
		{StageFileFetched, StageFileDecoded},
		{StageFileDecoded, StageDataPrepared},
		{StageDataPrepared, StageAnalysisDescribed},
		{StageAnalysisDescribed, StageToolAnalyzed},
		{StageToolAnalyzed, StageSynthesized},
		{StageSynthesized, StageDone},
		{StageDone, StageDone},
		{StageAborted, StageAborted},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.Next())
		})
	}
}

func TestStageTerminalAndIndex(t *testing.T) {
	t.Parallel()

	assert.True(t, StageDone.Terminal())
	assert.True(t, StageAborted.Terminal())
	assert.False(t, StageFileFetched.Terminal())

	assert.Equal(t, 0, StageQueryReceived.Index())
	assert.Equal(t, 9, StageDone.Index())
	assert.Equal(t, -1, StageAborted.Index())
	assert.Less(t, StageFileFetched.Index(), StageFileDecoded.Index())
}

func TestStageErrorString(t *testing.T) {
	t.Parallel()

	e := StageError{
		Stage:     StageFileFetched,
		Kind:      ErrorKindHTTPStatus,
		Message:   "status 404",
		Attempt:   1,
		Candidate: "https://example.org/a.csv",
	}
	assert.Equal(t, "file_fetched (http_status, attempt 1): status 404 [https://example.org/a.csv]", e.String())
}

func TestResultStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RunStatusDone, (&Result{StageReached: StageDone}).Status())
	assert.Equal(t, RunStatusAborted, (&Result{StageReached: StageAborted}).Status())
	assert.Equal(t, RunStatusRunning, (&Result{StageReached: StageFileFetched}).Status())
	assert.True(t, (&Result{StageReached: StageDone}).Succeeded())
}
