// Package exec wraps os/exec for the rest of the module.
// This is the only package that imports os/exec; every process invocation
// goes through Runner.Run with a deadline-bearing context and an argument
// vector, never a shell string.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// DefaultMaxOutputBytes caps captured stdout and stderr, each, when the
// config does not say otherwise.
const DefaultMaxOutputBytes = 1 << 20 // 1 MiB

// Runner executes commands using exec.CommandContext.
type Runner struct {
	lookupEnv []string
}

// NewRunner creates a command runner. Bare binary names are resolved
// against the fixed PATH of the minimal environment, not the parent
// process's PATH.
func NewRunner() *Runner {
	return &Runner{
		lookupEnv: []string{
			"PATH=/usr/bin:/bin",
			"LANG=C.UTF-8",
			"LC_ALL=C.UTF-8",
		},
	}
}

// RunConfig contains configuration for running a command.
type RunConfig struct {
	// Binary is the executable: an absolute path or bare name.
	Binary string

	// Args are the command arguments (excluding the binary name).
	Args []string

	// Env is the full child environment as KEY=VALUE pairs. If empty, the
	// runner's minimal environment is used.
	Env []string

	// WorkingDir is the working directory.
	WorkingDir string

	// Stdin provides input to the command.
	Stdin io.Reader

	// MaxOutputBytes caps each captured stream. Zero applies the default.
	MaxOutputBytes int64
}

// RunResult contains the result of command execution.
type RunResult struct {
	// ExitCode is the process exit code, -1 when the process was killed.
	ExitCode int

	// Stdout is the captured standard output, possibly truncated.
	Stdout []byte

	// Stderr is the captured standard error, possibly truncated.
	Stderr []byte

	// Truncated reports whether either stream hit the capture limit.
	Truncated bool

	// Duration is the wall clock time of execution.
	Duration time.Duration
}

// Run executes a command. The context must carry a deadline; the process
// and its children are killed when it expires. Output is captured into
// bounded buffers rather than inherited, so a hostile child cannot write
// into the caller's terminal.
func (r *Runner) Run(ctx context.Context, config *RunConfig) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil, fmt.Errorf("context must have a deadline for timeout enforcement")
	}

	// Argument-vector invocation: the binary and args go to the kernel
	// as-is, so shell metacharacters in arguments are inert data.
	// #nosec G204 -- binary and args are allowlist- and validator-checked upstream
	cmd := exec.CommandContext(ctx, config.Binary, config.Args...)

	if len(config.Env) > 0 {
		cmd.Env = config.Env
	} else {
		cmd.Env = r.lookupEnv
	}
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}
	if config.Stdin != nil {
		cmd.Stdin = config.Stdin
	}

	limit := config.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	stdout := &boundedBuffer{limit: limit}
	stderr := &boundedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	cmd.SysProcAttr = defaultSysProcAttr()

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &RunResult{
		ExitCode:  -1,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: stdout.truncated || stderr.truncated,
		Duration:  duration,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	return result, err
}

// boundedBuffer captures up to limit bytes and silently discards the rest,
// recording that truncation happened.
type boundedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - int64(b.buf.Len())
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.truncated = true
		b.buf.Write(p[:remaining])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *boundedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// BuildEnv creates a KEY=VALUE slice from a map.
func BuildEnv(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}
