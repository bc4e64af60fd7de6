package pipeline

import (
	"errors"
	"fmt"

	"github.com/sells-group/data-agent/internal/assistant"
	"github.com/sells-group/data-agent/internal/fetcher"
	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/resilience"
	"github.com/sells-group/data-agent/internal/tabular"
)

// panicError is a panic recovered inside a stage.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// classify maps a stage failure to its kind and whether retrying the stage
// can help. Cancellation is detected by the caller from the run context.
func classify(err error) (model.ErrorKind, bool) {
	var (
		sizeErr     *fetcher.SizeExceededError
		statusErr   *fetcher.HTTPStatusError
		netErr      *fetcher.NetworkError
		formatErr   *tabular.UnsupportedFormatError
		malformed   *tabular.MalformedDataError
		noCandidate *assistant.NoCandidateError
		toolErr     *assistant.ToolExecutionError
		aErr        *assistant.Error
	)

	switch {
	case errors.As(err, &sizeErr):
		return model.ErrorKindSizeExceeded, false
	case errors.As(err, &statusErr):
		return model.ErrorKindHTTPStatus, resilience.IsTransientHTTPStatus(statusErr.Status)
	case errors.As(err, &netErr):
		return model.ErrorKindNetwork, !netErr.Permanent
	case errors.As(err, &formatErr):
		return model.ErrorKindUnsupportedFormat, false
	case errors.As(err, &malformed):
		return model.ErrorKindMalformedData, false
	case errors.As(err, &noCandidate):
		return model.ErrorKindNoCandidate, true
	case errors.As(err, &toolErr):
		return model.ErrorKindToolExecution, true
	case errors.As(err, &aErr):
		return model.ErrorKindAssistant, aErr.Recoverable
	default:
		return model.ErrorKindInternal, false
	}
}
