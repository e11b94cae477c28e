package analyzer

import (
	"fmt"
)

// ErrorKind classifies a failed engine run.
type ErrorKind string

const (
	// EngineFailure: the engine exited non-zero or reported an error object.
	EngineFailure ErrorKind = "engine_failure"
	// MalformedOutput: the engine exited zero but stdout was not the expected JSON.
	MalformedOutput ErrorKind = "malformed_output"
	// TimedOut: the run exceeded the configured timeout and the process group was killed.
	TimedOut ErrorKind = "timed_out"
)

// AnalyzerError reports a failed engine run.
type AnalyzerError struct {
	Kind     ErrorKind
	Engine   Engine
	ExitCode int
	Stderr   string
	// Raw is a prefix of the unparseable stdout for MalformedOutput.
	Raw string
	Err error
}

func (e *AnalyzerError) Error() string {
	switch e.Kind {
	case EngineFailure:
		if e.Stderr != "" {
			return fmt.Sprintf("%s failed (exit %d): %s", e.Engine, e.ExitCode, e.Stderr)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s failed: %v", e.Engine, e.Err)
		}
		return fmt.Sprintf("%s failed (exit %d)", e.Engine, e.ExitCode)
	case MalformedOutput:
		return fmt.Sprintf("%s produced malformed output", e.Engine)
	case TimedOut:
		return fmt.Sprintf("%s timed out", e.Engine)
	}
	return fmt.Sprintf("%s: %s", e.Engine, e.Kind)
}

func (e *AnalyzerError) Unwrap() error { return e.Err }
