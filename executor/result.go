package executor

import (
	"time"
)

// Result contains the outcome of a single command execution.
// Results are produced once per invocation and never mutated afterwards.
type Result struct {
	// CommandID uniquely identifies this invocation; the same ID appears in
	// the corresponding audit record.
	CommandID string

	// Stdout is the captured standard output, bounded by the executor's
	// output limit.
	Stdout []byte

	// Stderr is the captured standard error, bounded the same way.
	Stderr []byte

	// ExitCode is the process exit code, or -1 when the process did not
	// exit normally.
	ExitCode int

	// Duration is the wall clock time of the execution.
	Duration time.Duration

	// TimedOut reports whether the process was killed for exceeding the
	// timeout. Partial output captured before the kill is preserved.
	TimedOut bool

	// Truncated reports whether stdout or stderr hit the output limit.
	Truncated bool

	// Status classifies the outcome.
	Status ExitStatus
}

// ExitStatus classifies the outcome of command execution.
type ExitStatus int

const (
	// StatusSuccess indicates exit code 0.
	StatusSuccess ExitStatus = iota
	// StatusError indicates a non-zero exit code or spawn failure.
	StatusError
	// StatusTimeout indicates the process was killed on timeout.
	StatusTimeout
	// StatusCanceled indicates the caller's context was canceled.
	StatusCanceled
	// StatusNotAllowed indicates the allowlist denied the command.
	StatusNotAllowed
	// StatusRateLimited indicates the rate limiter denied the command.
	StatusRateLimited
)

// String returns the string representation of the status.
func (s ExitStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	case StatusCanceled:
		return "canceled"
	case StatusNotAllowed:
		return "not_allowed"
	case StatusRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Success reports whether the command completed with exit code 0.
func (r *Result) Success() bool {
	return r.Status == StatusSuccess && r.ExitCode == 0
}

// StdoutString returns stdout as a string.
func (r *Result) StdoutString() string {
	return string(r.Stdout)
}

// StderrString returns stderr as a string.
func (r *Result) StderrString() string {
	return string(r.Stderr)
}
