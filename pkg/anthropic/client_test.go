package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "First."},
		{Type: "server_tool_use", Name: "bash_code_execution"},
		{Type: "text", Text: "  "},
		{Type: "text", Text: "Second."},
	}}
	assert.Equal(t, "First.\nSecond.", resp.Text())
}

func TestMessageResponse_Executions(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "Running analysis"},
		{Type: "bash_code_execution_tool_result", Execution: &ExecutionResult{Stdout: "42\n"}},
		{Type: "bash_code_execution_tool_result", Execution: &ExecutionResult{Stderr: "boom", ReturnCode: 1}},
	}}

	runs := resp.Executions()
	require.Len(t, runs, 2)
	assert.False(t, runs[0].Failed())
	assert.True(t, runs[1].Failed())
	assert.True(t, ExecutionResult{ErrorCode: "unavailable"}.Failed())
}

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{InputTokens: 1, OutputTokens: 2, CacheCreationInputTokens: 3, CacheReadInputTokens: 4}
	b := TokenUsage{InputTokens: 10, OutputTokens: 20}
	assert.Equal(t, TokenUsage{InputTokens: 11, OutputTokens: 22, CacheCreationInputTokens: 3, CacheReadInputTokens: 4}, a.Add(b))
}

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, usage.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
	assert.InDelta(t, 6.0, usage.EstimateCost("claude-haiku-4-5-20251001"), 0.0001)
	assert.Zero(t, usage.EstimateCost("unknown-model"))

	cached := TokenUsage{CacheCreationInputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}
	assert.InDelta(t, 3.0*1.25+3.0*0.1, cached.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
}

func TestToSDKMessages_Roles(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
		{Role: "other", Content: "x"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, sdk.BetaMessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.BetaMessageParamRoleAssistant, out[1].Role)
	assert.Equal(t, sdk.BetaMessageParamRoleUser, out[2].Role)
}

func TestToSDKSystemBlocks(t *testing.T) {
	out := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "plain", out[0].Text)
	assert.Equal(t, sdk.BetaCacheControlEphemeralTTL("1h"), out[1].CacheControl.TTL)
}

func TestFromSDKBlock_CodeExecution(t *testing.T) {
	var b sdk.BetaContentBlockUnion
	b.Type = "bash_code_execution_tool_result"
	b.ToolUseID = "srvtoolu_1"
	b.Content.Stdout = "total: 42\n"
	b.Content.ReturnCode = 0

	block := fromSDKBlock(b)
	require.NotNil(t, block.Execution)
	assert.Equal(t, "total: 42\n", block.Execution.Stdout)
	assert.Equal(t, "srvtoolu_1", block.ToolUseID)

	var errBlock sdk.BetaContentBlockUnion
	errBlock.Type = "code_execution_tool_result"
	errBlock.Content.ErrorCode = "execution_time_exceeded"
	assert.Equal(t, "execution_time_exceeded", fromSDKBlock(errBlock).Execution.ErrorCode)

	var text sdk.BetaContentBlockUnion
	text.Type = "text"
	text.Text = "hello"
	assert.Nil(t, fromSDKBlock(text).Execution)
}
