package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/data-agent/internal/assistant"
	"github.com/sells-group/data-agent/internal/prepare"
	"github.com/sells-group/data-agent/pkg/anthropic"
)

const testModel = "claude-sonnet-4-5-20250929"

type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) PlanSearch(ctx context.Context, query string) (*assistant.TextReply, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.TextReply), args.Error(1)
}

func (m *mockAssistant) FindSourceURLs(ctx context.Context, strategy, webContent string) (*assistant.SourceReply, error) {
	args := m.Called(ctx, strategy, webContent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.SourceReply), args.Error(1)
}

func (m *mockAssistant) DescribeAnalysis(ctx context.Context, preview, query string) (*assistant.TextReply, error) {
	args := m.Called(ctx, preview, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.TextReply), args.Error(1)
}

func (m *mockAssistant) RunToolAnalysis(ctx context.Context, payload *prepare.Payload, description, query string) (*assistant.ToolResult, error) {
	args := m.Called(ctx, payload, description, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.ToolResult), args.Error(1)
}

func (m *mockAssistant) Synthesize(ctx context.Context, toolResult, query, dataNote string) (*assistant.TextReply, error) {
	args := m.Called(ctx, toolResult, query, dataNote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.TextReply), args.Error(1)
}

func (m *mockAssistant) Model() string { return testModel }

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string, maxBytes int64, timeout time.Duration) ([]byte, error) {
	args := m.Called(ctx, url, maxBytes, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Gather(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

var usage = anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 100}

func textReply(s string) *assistant.TextReply {
	return &assistant.TextReply{Text: s, Usage: usage}
}

// expectPlan and friends script one stage of the Assistant conversation.
func expectPlan(a *mockAssistant) *mock.Call {
	return a.On("PlanSearch", mock.Anything, mock.Anything).Return(textReply("search for regional sales csv"), nil)
}

func expectSources(a *mockAssistant, urls ...string) *mock.Call {
	return a.On("FindSourceURLs", mock.Anything, mock.Anything, mock.Anything).
		Return(&assistant.SourceReply{URLs: urls, Usage: usage}, nil)
}

func expectDescribe(a *mockAssistant) *mock.Call {
	return a.On("DescribeAnalysis", mock.Anything, mock.Anything, mock.Anything).
		Return(textReply("sum sales by region"), nil)
}

func expectTool(a *mockAssistant) *mock.Call {
	return a.On("RunToolAnalysis", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&assistant.ToolResult{Executed: true, Output: "North 10\nSouth 20", Usage: usage}, nil)
}

func expectSynth(a *mockAssistant) *mock.Call {
	return a.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(textReply("South sold the most (20)."), nil)
}

func happyAssistant(urls ...string) *mockAssistant {
	a := new(mockAssistant)
	expectPlan(a)
	expectSources(a, urls...)
	expectDescribe(a)
	expectTool(a)
	expectSynth(a)
	return a
}

var salesCSV = []byte("region,sales\nNorth,10\nSouth,20\n")

func testOptions() Options {
	o := DefaultOptions()
	o.OverallTimeout = 0
	return o
}
