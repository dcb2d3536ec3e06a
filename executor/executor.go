package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	internalexec "github.com/tanwiraasif/secure-automation-framework/internal/exec"
)

// Executor is the single abstraction for process invocation. All command
// execution goes through this interface so the allowlist, validation,
// audit and timeout controls apply consistently.
type Executor interface {
	// Execute runs a command synchronously. Exactly one audit record is
	// written per invocation that reaches the spawn stage, whether it
	// completes, fails or times out.
	Execute(ctx context.Context, cmd *Command) (*Result, error)

	// Shutdown prevents new executions and waits for in-flight ones.
	Shutdown(ctx context.Context) error
}

// Policy decides whether a command may execute.
type Policy interface {
	// Validate checks the command. Allowed=false with a nil error is a
	// policy denial; a non-nil error means the policy failed to evaluate.
	Validate(ctx context.Context, cmd *Command) (*PolicyDecision, error)

	// Version identifies the policy for audit records.
	Version() string
}

// PolicyDecision is the outcome of a policy check.
type PolicyDecision struct {
	Allowed    bool
	Reason     string
	Violations []Violation
}

// CommandValidator runs input validation over a command before execution.
// validation.Registry satisfies this.
type CommandValidator interface {
	ValidateAll(ctx context.Context, cmd *Command) error
}

// RateLimiter gates execution rate. Denials are fail-fast; the executor
// never queues or retries.
type RateLimiter interface {
	Allow(binary string) bool
}

// AuditLogger receives one structured record per security-relevant event.
// audit.Logger satisfies this.
type AuditLogger interface {
	Log(ctx context.Context, action string, details map[string]any) error
}

// Telemetry records spans and execution metrics.
// observability implementations satisfy this.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
	RecordExecution(binary, status string, duration time.Duration)
}

// MetricsRecorder aggregates execution statistics.
type MetricsRecorder interface {
	RecordExecution(binary, status string, duration time.Duration)
}

// Hook is an extension point around command execution.
type Hook interface {
	// PreExecute may replace the command or veto it with an error.
	PreExecute(ctx context.Context, cmd *Command) (*Command, error)

	// PostExecute observes the result after execution and audit.
	PostExecute(ctx context.Context, cmd *Command, result *Result, err error) error
}

// runner abstracts the internal process runner for testing.
type runner interface {
	Run(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error)
}

type executorImpl struct {
	policy         Policy
	validators     CommandValidator
	rateLimiter    RateLimiter
	auditLog       AuditLogger
	telemetry      Telemetry
	metrics        MetricsRecorder
	runner         runner
	hooks          []Hook
	defaultTimeout time.Duration
	maxOutputBytes int64
	wg             sync.WaitGroup
	mu             sync.RWMutex // makes the shutdown check and wg.Add atomic
	shutdown       int32
}

// Builder creates configured Executor instances.
type Builder struct {
	policy         Policy
	validators     CommandValidator
	rateLimiter    RateLimiter
	auditLog       AuditLogger
	telemetry      Telemetry
	metrics        MetricsRecorder
	runner         runner
	hooks          []Hook
	defaultTimeout time.Duration
	maxOutputBytes int64
}

// NewBuilder creates an executor builder with a 30 second default timeout.
//
// An executor built without a policy denies every command: allowlisting is
// fail-closed, and permitting everything requires wiring an explicitly
// permissive policy.
func NewBuilder() *Builder {
	return &Builder{
		defaultTimeout: 30 * time.Second,
	}
}

// WithPolicy sets the allowlist policy.
func (b *Builder) WithPolicy(policy Policy) *Builder {
	b.policy = policy
	return b
}

// WithValidators sets the input validator chain.
func (b *Builder) WithValidators(v CommandValidator) *Builder {
	b.validators = v
	return b
}

// WithRateLimiter sets the rate limiter.
func (b *Builder) WithRateLimiter(limiter RateLimiter) *Builder {
	b.rateLimiter = limiter
	return b
}

// WithAuditLogger sets the audit logger. Every invocation that reaches the
// spawn stage produces exactly one "command_execution" record.
func (b *Builder) WithAuditLogger(l AuditLogger) *Builder {
	b.auditLog = l
	return b
}

// WithTelemetry sets the telemetry provider.
func (b *Builder) WithTelemetry(t Telemetry) *Builder {
	b.telemetry = t
	return b
}

// WithMetrics sets the in-process metrics aggregate.
func (b *Builder) WithMetrics(m MetricsRecorder) *Builder {
	b.metrics = m
	return b
}

// WithHooks adds execution hooks.
func (b *Builder) WithHooks(hooks ...Hook) *Builder {
	b.hooks = append(b.hooks, hooks...)
	return b
}

// WithDefaultTimeout sets the timeout applied when a command has none.
func (b *Builder) WithDefaultTimeout(timeout time.Duration) *Builder {
	b.defaultTimeout = timeout
	return b
}

// WithMaxOutputBytes caps captured stdout and stderr, each.
func (b *Builder) WithMaxOutputBytes(n int64) *Builder {
	b.maxOutputBytes = n
	return b
}

// withRunner overrides the process runner; used by tests.
func (b *Builder) withRunner(r runner) *Builder {
	b.runner = r
	return b
}

// Build creates the executor.
func (b *Builder) Build() (Executor, error) {
	r := b.runner
	if r == nil {
		r = internalexec.NewRunner()
	}
	return &executorImpl{
		policy:         b.policy,
		validators:     b.validators,
		rateLimiter:    b.rateLimiter,
		auditLog:       b.auditLog,
		telemetry:      b.telemetry,
		metrics:        b.metrics,
		runner:         r,
		hooks:          b.hooks,
		defaultTimeout: b.defaultTimeout,
		maxOutputBytes: b.maxOutputBytes,
	}, nil
}

// Execute implements Executor.Execute.
func (e *executorImpl) Execute(ctx context.Context, cmd *Command) (*Result, error) {
	e.mu.RLock()
	if atomic.LoadInt32(&e.shutdown) == 1 {
		e.mu.RUnlock()
		return nil, ErrExecutorShutdown
	}
	e.wg.Add(1)
	e.mu.RUnlock()
	defer e.wg.Done()

	if e.telemetry != nil {
		var endSpan func()
		ctx, endSpan = e.telemetry.StartSpan(ctx, "executor.Execute")
		defer endSpan()
	}

	commandID := uuid.New().String()

	var err error
	cmd, err = e.runPreHooks(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if e.validators != nil {
		if err := e.validators.ValidateAll(ctx, cmd); err != nil {
			return nil, err
		}
	}

	// Allowlist check before anything is spawned. No policy means no
	// allowlist, and no allowlist denies everything.
	decision, err := e.checkPolicy(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		result := &Result{CommandID: commandID, Status: StatusNotAllowed}
		denyErr := NewNotAllowedError(cmd.Name(), decision.Violations)
		e.record(cmd, result)
		if auditErr := e.auditDenied(ctx, cmd, commandID, decision.Reason); auditErr != nil {
			return result, errors.Join(denyErr, auditErr)
		}
		return result, denyErr
	}

	if e.rateLimiter != nil && !e.rateLimiter.Allow(cmd.Name()) {
		result := &Result{CommandID: commandID, Status: StatusRateLimited}
		e.record(cmd, result)
		return result, NewRateLimitError(cmd.Name())
	}

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = e.defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	config := &internalexec.RunConfig{
		Binary:         cmd.Binary,
		Args:           cmd.Args,
		Env:            internalexec.BuildEnv(mergedEnvironment(cmd.Env)),
		WorkingDir:     cmd.WorkingDir,
		Stdin:          cmd.Stdin,
		MaxOutputBytes: e.maxOutputBytes,
	}

	runResult, runErr := e.runner.Run(execCtx, config)

	result := e.buildResult(runResult, execCtx, commandID)
	e.record(cmd, result)

	finalErr := runErr
	if result.TimedOut {
		finalErr = NewTimeoutError(cmd.Name(), timeout.String())
	}

	// One audit record per spawn attempt, timeout included. A sink
	// failure surfaces alongside the execution outcome.
	if auditErr := e.auditExecution(ctx, cmd, result); auditErr != nil {
		finalErr = errors.Join(finalErr, auditErr)
	}

	if hookErr := e.runPostHooks(ctx, cmd, result, finalErr); hookErr != nil {
		return result, hookErr
	}

	return result, finalErr
}

// checkPolicy evaluates the policy, applying the deny-all default when
// none is configured.
func (e *executorImpl) checkPolicy(ctx context.Context, cmd *Command) (*PolicyDecision, error) {
	if e.policy == nil {
		return &PolicyDecision{
			Allowed: false,
			Reason:  "no allowlist configured; commands are denied by default",
			Violations: []Violation{{
				Code:    "NO_POLICY",
				Field:   "binary",
				Message: "no allowlist configured",
			}},
		}, nil
	}
	return e.policy.Validate(ctx, cmd)
}

// Shutdown implements Executor.Shutdown.
func (e *executorImpl) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	atomic.StoreInt32(&e.shutdown, 1)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *executorImpl) runPreHooks(ctx context.Context, cmd *Command) (*Command, error) {
	current := cmd
	for _, hook := range e.hooks {
		modified, err := hook.PreExecute(ctx, current)
		if err != nil {
			return nil, err
		}
		current = modified
	}
	return current, nil
}

func (e *executorImpl) runPostHooks(ctx context.Context, cmd *Command, result *Result, execErr error) error {
	for _, hook := range e.hooks {
		if err := hook.PostExecute(ctx, cmd, result, execErr); err != nil {
			return err
		}
	}
	return nil
}

// auditExecution writes the single command_execution record. Only the
// executable's base name is logged; the full argument vector may carry
// secrets and never reaches the audit sink.
func (e *executorImpl) auditExecution(ctx context.Context, cmd *Command, result *Result) error {
	if e.auditLog == nil {
		return nil
	}

	details := map[string]any{
		"binary":      cmd.Name(),
		"command_id":  result.CommandID,
		"exit_code":   result.ExitCode,
		"timed_out":   result.TimedOut,
		"duration_ms": result.Duration.Milliseconds(),
		"status":      result.Status.String(),
	}
	for k, v := range cmd.Metadata {
		details["meta_"+k] = v
	}

	return e.auditLog.Log(ctx, "command_execution", details)
}

func (e *executorImpl) auditDenied(ctx context.Context, cmd *Command, commandID, reason string) error {
	if e.auditLog == nil {
		return nil
	}

	return e.auditLog.Log(ctx, "command_denied", map[string]any{
		"binary":     cmd.Name(),
		"command_id": commandID,
		"reason":     reason,
	})
}

func (e *executorImpl) record(cmd *Command, result *Result) {
	if e.telemetry != nil {
		e.telemetry.RecordExecution(cmd.Name(), result.Status.String(), result.Duration)
	}
	if e.metrics != nil {
		e.metrics.RecordExecution(cmd.Name(), result.Status.String(), result.Duration)
	}
}

// buildResult converts the internal run result, classifying timeouts and
// cancellation from the execution context.
func (e *executorImpl) buildResult(runResult *internalexec.RunResult, execCtx context.Context, commandID string) *Result {
	result := &Result{
		CommandID: commandID,
		ExitCode:  -1,
	}

	if runResult != nil {
		result.ExitCode = runResult.ExitCode
		result.Stdout = runResult.Stdout
		result.Stderr = runResult.Stderr
		result.Duration = runResult.Duration
		result.Truncated = runResult.Truncated
	}

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Status = StatusTimeout
		result.TimedOut = true
	case errors.Is(execCtx.Err(), context.Canceled):
		result.Status = StatusCanceled
	case runResult != nil && result.ExitCode == 0:
		result.Status = StatusSuccess
	default:
		result.Status = StatusError
	}

	return result
}

// mergedEnvironment layers the command environment over the minimal safe
// base. The parent process environment is never inherited.
func mergedEnvironment(env map[string]string) map[string]string {
	merged := map[string]string{
		"PATH":   "/usr/bin:/bin",
		"LANG":   "C.UTF-8",
		"LC_ALL": "C.UTF-8",
		"HOME":   "/tmp",
	}
	for k, v := range env {
		merged[k] = v
	}
	return merged
}
