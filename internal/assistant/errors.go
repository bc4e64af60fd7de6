package assistant

import (
	"fmt"

	"github.com/sells-group/data-agent/pkg/anthropic"
)

// Error is a failed Assistant call. Recoverable errors may succeed if the
// stage is attempted again.
type Error struct {
	Op          string
	StatusCode  int
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("assistant: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("assistant: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NoCandidateError reports that source identification produced no usable
// URL. Malformed is set when the reply contained URL-like text that did not
// parse.
type NoCandidateError struct {
	Malformed bool
	Reply     string
	Usage     anthropic.TokenUsage
}

func (e *NoCandidateError) Error() string {
	if e.Malformed {
		return "assistant: source reply contained no well-formed URL"
	}
	return "assistant: no candidate source URL found"
}

// ToolExecutionError reports that the code execution tool ran but every
// execution failed.
type ToolExecutionError struct {
	ReturnCode int64
	ErrorCode  string
	Stderr     string
	Usage      anthropic.TokenUsage
}

func (e *ToolExecutionError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("assistant: code execution failed: %s", e.ErrorCode)
	}
	msg := fmt.Sprintf("assistant: code execution exited with code %d", e.ReturnCode)
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}
