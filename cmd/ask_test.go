package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/pipeline"
)

func TestWriteAskResult_Text(t *testing.T) {
	res := (&fakeRunner{}).Run(context.Background(), "q", pipeline.Options{})

	var buf bytes.Buffer
	require.NoError(t, writeAskResult(&buf, res, false))
	assert.Contains(t, buf.String(), "answer to q")
	assert.Contains(t, buf.String(), "Source: https://data.example.gov/x.csv")
}

func TestWriteAskResult_JSON(t *testing.T) {
	res := (&fakeRunner{}).Run(context.Background(), "q", pipeline.Options{})

	var buf bytes.Buffer
	require.NoError(t, writeAskResult(&buf, res, true))

	var got model.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "answer to q", got.FinalAnswer)
	assert.Equal(t, model.StageDone, got.StageReached)
}

func TestWriteAskResult_AbortedIsError(t *testing.T) {
	res := (&fakeRunner{abortOn: "q"}).Run(context.Background(), "q", pipeline.Options{})

	var buf bytes.Buffer
	err := writeAskResult(&buf, res, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted after source_found")
	assert.Contains(t, buf.String(), "I could not fully answer it.")
}

func newAskFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&askSheet, "sheet", "", "")
	cmd.Flags().IntVar(&askBudget, "budget", 0, "")
	cmd.Flags().IntVar(&askRetries, "max-stage-retries", -1, "")
	return cmd
}

func TestApplyAskFlags(t *testing.T) {
	cmd := newAskFlagsCmd()
	require.NoError(t, cmd.Flags().Set("budget", "4096"))
	require.NoError(t, cmd.Flags().Set("sheet", "Data"))

	opts, err := applyAskFlags(cmd, pipeline.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4096, opts.DataByteBudget)
	assert.Equal(t, "Data", opts.Sheet)
	assert.Equal(t, pipeline.DefaultOptions().MaxStageRetries, opts.MaxStageRetries)
}

func TestApplyAskFlags_RejectsOutOfBounds(t *testing.T) {
	cmd := newAskFlagsCmd()
	require.NoError(t, cmd.Flags().Set("budget", "10"))
	_, err := applyAskFlags(cmd, pipeline.DefaultOptions())
	assert.ErrorContains(t, err, "data byte budget must be at least 256")

	cmd = newAskFlagsCmd()
	require.NoError(t, cmd.Flags().Set("max-stage-retries", "5000"))
	_, err = applyAskFlags(cmd, pipeline.DefaultOptions())
	assert.ErrorContains(t, err, "max stage retries")
}
