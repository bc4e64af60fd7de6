package pipeline

import (
	"github.com/sells-group/data-agent/internal/assistant"
	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/prepare"
	"github.com/sells-group/data-agent/internal/tabular"
	"github.com/sells-group/data-agent/pkg/anthropic"
)

// runState is owned by one Run call and never shared.
type runState struct {
	runID string
	query string
	stage model.Stage
	// last is the last stage completed; it stays put when the run aborts.
	last model.Stage

	strategy   string
	webContent string
	searched   bool

	candidates      []string
	candidateIndex  int
	candidatesTried int
	candidateURL    string
	downloadPath    string

	data     []byte
	table    *tabular.Table
	preview  string
	payload  *prepare.Payload
	analysis string
	tool     *assistant.ToolResult
	answer   string

	errors        []model.StageError
	stageAttempts map[model.Stage]int
	usage         anthropic.TokenUsage
}

func newRunState(runID, query string) *runState {
	return &runState{
		runID:         runID,
		query:         query,
		stage:         model.StageQueryReceived,
		last:          model.StageQueryReceived,
		errors:        []model.StageError{},
		stageAttempts: make(map[model.Stage]int),
	}
}

// missingField names the first field Done requires that is absent.
func (s *runState) missingField() string {
	switch {
	case s.strategy == "":
		return "search strategy"
	case s.candidateURL == "":
		return "candidate url"
	case s.table == nil:
		return "tabular data"
	case s.payload == nil:
		return "prepared payload"
	case s.analysis == "":
		return "analysis description"
	case s.tool == nil:
		return "tool result"
	case s.answer == "":
		return "final answer"
	default:
		return ""
	}
}
