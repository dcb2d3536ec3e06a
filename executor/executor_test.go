package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	internalexec "github.com/tanwiraasif/secure-automation-framework/internal/exec"
)

// mockRunner is a mock implementation of the internal runner
type mockRunner struct {
	mu      sync.Mutex
	calls   int
	runFunc func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error)
}

func (m *mockRunner) Run(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.runFunc != nil {
		return m.runFunc(ctx, config)
	}
	return &internalexec.RunResult{
		ExitCode: 0,
		Stdout:   []byte("output"),
		Stderr:   []byte(""),
		Duration: 10 * time.Millisecond,
	}, nil
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockPolicy is a mock policy implementation
type mockPolicy struct {
	validateFunc func(ctx context.Context, cmd *Command) (*PolicyDecision, error)
}

func (m *mockPolicy) Validate(ctx context.Context, cmd *Command) (*PolicyDecision, error) {
	if m.validateFunc != nil {
		return m.validateFunc(ctx, cmd)
	}
	return &PolicyDecision{Allowed: true}, nil
}

func (m *mockPolicy) Version() string { return "test-policy" }

// mockAudit captures every record it receives.
type mockAudit struct {
	mu      sync.Mutex
	records []auditRecord
	logErr  error
}

type auditRecord struct {
	action  string
	details map[string]any
}

func (m *mockAudit) Log(_ context.Context, action string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.records = append(m.records, auditRecord{action: action, details: details})
	return nil
}

func (m *mockAudit) byAction(action string) []auditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auditRecord
	for _, r := range m.records {
		if r.action == action {
			out = append(out, r)
		}
	}
	return out
}

// mockRateLimiter is a mock rate limiter
type mockRateLimiter struct {
	allowFunc func(binary string) bool
}

func (m *mockRateLimiter) Allow(binary string) bool {
	if m.allowFunc != nil {
		return m.allowFunc(binary)
	}
	return true
}

// mockValidator rejects commands via validateFunc.
type mockValidator struct {
	validateFunc func(ctx context.Context, cmd *Command) error
}

func (m *mockValidator) ValidateAll(ctx context.Context, cmd *Command) error {
	if m.validateFunc != nil {
		return m.validateFunc(ctx, cmd)
	}
	return nil
}

// mockHook records calls and optionally rewrites or vetoes commands.
type mockHook struct {
	preFunc  func(ctx context.Context, cmd *Command) (*Command, error)
	postFunc func(ctx context.Context, cmd *Command, result *Result, err error) error
}

func (m *mockHook) PreExecute(ctx context.Context, cmd *Command) (*Command, error) {
	if m.preFunc != nil {
		return m.preFunc(ctx, cmd)
	}
	return cmd, nil
}

func (m *mockHook) PostExecute(ctx context.Context, cmd *Command, result *Result, err error) error {
	if m.postFunc != nil {
		return m.postFunc(ctx, cmd, result, err)
	}
	return nil
}

func allowAll() Policy {
	return &mockPolicy{}
}

func denyAll(reason string) Policy {
	return &mockPolicy{
		validateFunc: func(_ context.Context, cmd *Command) (*PolicyDecision, error) {
			return &PolicyDecision{
				Allowed: false,
				Reason:  reason,
				Violations: []Violation{{
					Code:    "BINARY_NOT_ALLOWED",
					Field:   "binary",
					Message: fmt.Sprintf("binary %q is not in the allowlist", cmd.Name()),
				}},
			}, nil
		},
	}
}

func TestExecutorDeniesWithoutPolicy(t *testing.T) {
	mock := &mockRunner{}
	exec, err := NewBuilder().withRunner(mock).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("echo", "hello").MustBuild()
	result, err := exec.Execute(context.Background(), cmd)
	if !errors.Is(err, ErrCommandNotAllowed) {
		t.Fatalf("Execute() error = %v, want ErrCommandNotAllowed", err)
	}
	if result == nil || result.Status != StatusNotAllowed {
		t.Errorf("result status = %v, want StatusNotAllowed", result)
	}
	if mock.callCount() != 0 {
		t.Errorf("runner was invoked %d times for a denied command", mock.callCount())
	}
}

func TestExecutorDeniedByPolicy(t *testing.T) {
	mock := &mockRunner{}
	auditLog := &mockAudit{}
	exec, err := NewBuilder().
		WithPolicy(denyAll("binary not allowlisted")).
		WithAuditLogger(auditLog).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("rm", "-rf", "/").MustBuild()
	_, err = exec.Execute(context.Background(), cmd)
	if !errors.Is(err, ErrCommandNotAllowed) {
		t.Fatalf("Execute() error = %v, want ErrCommandNotAllowed", err)
	}
	if mock.callCount() != 0 {
		t.Error("denied command reached the process runner")
	}

	denied := auditLog.byAction("command_denied")
	if len(denied) != 1 {
		t.Fatalf("got %d command_denied records, want 1", len(denied))
	}
	if denied[0].details["binary"] != "rm" {
		t.Errorf("denied binary = %v, want rm", denied[0].details["binary"])
	}
	if got := auditLog.byAction("command_execution"); len(got) != 0 {
		t.Errorf("got %d command_execution records for a denial, want 0", len(got))
	}
}

func TestExecutorSuccess(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(_ context.Context, _ *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return &internalexec.RunResult{
				ExitCode: 0,
				Stdout:   []byte("hello\n"),
				Duration: 5 * time.Millisecond,
			}, nil
		},
	}
	auditLog := &mockAudit{}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithAuditLogger(auditLog).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("echo", "hello").MustBuild()
	result, err := exec.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !result.Success() {
		t.Errorf("result.Success() = false, exit code %d", result.ExitCode)
	}
	if result.StdoutString() != "hello\n" {
		t.Errorf("stdout = %q, want %q", result.StdoutString(), "hello\n")
	}
	if result.CommandID == "" {
		t.Error("CommandID is empty")
	}

	records := auditLog.byAction("command_execution")
	if len(records) != 1 {
		t.Fatalf("got %d command_execution records, want exactly 1", len(records))
	}
	details := records[0].details
	if details["binary"] != "echo" {
		t.Errorf("audited binary = %v, want echo", details["binary"])
	}
	if details["timed_out"] != false {
		t.Errorf("audited timed_out = %v, want false", details["timed_out"])
	}
}

func TestExecutorTimeout(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, _ *internalexec.RunConfig) (*internalexec.RunResult, error) {
			<-ctx.Done()
			// Partial output captured before the process was killed.
			return &internalexec.RunResult{
				ExitCode: -1,
				Stdout:   []byte("partial"),
				Duration: 50 * time.Millisecond,
			}, ctx.Err()
		},
	}
	auditLog := &mockAudit{}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithAuditLogger(auditLog).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("sleep", "60").WithTimeout(20 * time.Millisecond).MustBuild()
	result, err := exec.Execute(context.Background(), cmd)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if !result.TimedOut {
		t.Error("result.TimedOut = false, want true")
	}
	if result.Status != StatusTimeout {
		t.Errorf("result.Status = %v, want StatusTimeout", result.Status)
	}
	if result.StdoutString() != "partial" {
		t.Errorf("partial stdout = %q, want %q", result.StdoutString(), "partial")
	}

	records := auditLog.byAction("command_execution")
	if len(records) != 1 {
		t.Fatalf("got %d command_execution records after timeout, want exactly 1", len(records))
	}
	if records[0].details["timed_out"] != true {
		t.Errorf("audited timed_out = %v, want true", records[0].details["timed_out"])
	}
}

func TestExecutorAuditFailureSurfaces(t *testing.T) {
	sinkErr := errors.New("disk full")
	auditLog := &mockAudit{logErr: sinkErr}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithAuditLogger(auditLog).
		withRunner(&mockRunner{}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("echo").MustBuild()
	result, err := exec.Execute(context.Background(), cmd)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Execute() error = %v, want audit sink error surfaced", err)
	}
	if result == nil || result.ExitCode != 0 {
		t.Error("execution result was lost when the audit write failed")
	}
}

func TestExecutorNeverAuditsArguments(t *testing.T) {
	auditLog := &mockAudit{}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithAuditLogger(auditLog).
		withRunner(&mockRunner{}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	const secret = "hunter2-api-key"
	cmd := NewCommand("/usr/bin/curl", "-H", "Authorization: "+secret).MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	records := auditLog.byAction("command_execution")
	if len(records) != 1 {
		t.Fatalf("got %d command_execution records, want 1", len(records))
	}
	serialized, err := json.Marshal(records[0].details)
	if err != nil {
		t.Fatalf("marshaling details: %v", err)
	}
	if strings.Contains(string(serialized), secret) {
		t.Error("audit record contains a command argument")
	}
	if records[0].details["binary"] != "curl" {
		t.Errorf("audited binary = %v, want base name curl", records[0].details["binary"])
	}
}

func TestExecutorValidatorRejects(t *testing.T) {
	mock := &mockRunner{}
	wantErr := NewValidationError("echo", "args", "argument contains a null byte")
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithValidators(&mockValidator{
			validateFunc: func(_ context.Context, _ *Command) error { return wantErr },
		}).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("echo", "hi").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("Execute() error = %v, want ErrInvalidCommand", err)
	}
	if mock.callCount() != 0 {
		t.Error("invalid command reached the process runner")
	}
}

func TestExecutorRateLimited(t *testing.T) {
	mock := &mockRunner{}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithRateLimiter(&mockRateLimiter{allowFunc: func(string) bool { return false }}).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("echo").MustBuild()
	result, err := exec.Execute(context.Background(), cmd)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Execute() error = %v, want ErrRateLimited", err)
	}
	if result.Status != StatusRateLimited {
		t.Errorf("result.Status = %v, want StatusRateLimited", result.Status)
	}
	if mock.callCount() != 0 {
		t.Error("rate-limited command reached the process runner")
	}
}

func TestExecutorDefaultTimeoutApplied(t *testing.T) {
	var sawDeadline bool
	mock := &mockRunner{
		runFunc: func(ctx context.Context, _ *internalexec.RunConfig) (*internalexec.RunResult, error) {
			_, sawDeadline = ctx.Deadline()
			return &internalexec.RunResult{ExitCode: 0}, nil
		},
	}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithDefaultTimeout(10 * time.Second).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	cmd := NewCommand("echo").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !sawDeadline {
		t.Error("runner context has no deadline; commands must never run unbounded")
	}
}

func TestExecutorPreHookRewrite(t *testing.T) {
	var ranBinary string
	mock := &mockRunner{
		runFunc: func(_ context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			ranBinary = config.Binary
			return &internalexec.RunResult{ExitCode: 0}, nil
		},
	}
	hook := &mockHook{
		preFunc: func(_ context.Context, cmd *Command) (*Command, error) {
			replaced := cmd.Clone()
			replaced.Binary = "date"
			return replaced, nil
		},
	}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithHooks(hook).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if _, err := exec.Execute(context.Background(), NewCommand("echo").MustBuild()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if ranBinary != "date" {
		t.Errorf("ran binary %q, want pre-hook replacement %q", ranBinary, "date")
	}
}

func TestExecutorPreHookVeto(t *testing.T) {
	mock := &mockRunner{}
	vetoErr := errors.New("vetoed")
	hook := &mockHook{
		preFunc: func(_ context.Context, _ *Command) (*Command, error) { return nil, vetoErr },
	}
	exec, err := NewBuilder().
		WithPolicy(allowAll()).
		WithHooks(hook).
		withRunner(mock).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if _, err := exec.Execute(context.Background(), NewCommand("echo").MustBuild()); !errors.Is(err, vetoErr) {
		t.Fatalf("Execute() error = %v, want veto error", err)
	}
	if mock.callCount() != 0 {
		t.Error("vetoed command reached the process runner")
	}
}

func TestExecutorShutdown(t *testing.T) {
	exec, err := NewBuilder().WithPolicy(allowAll()).withRunner(&mockRunner{}).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := exec.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if _, err := exec.Execute(context.Background(), NewCommand("echo").MustBuild()); !errors.Is(err, ErrExecutorShutdown) {
		t.Fatalf("Execute() after shutdown error = %v, want ErrExecutorShutdown", err)
	}
}

func TestExecutorShutdownWaitsForInflight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mock := &mockRunner{
		runFunc: func(_ context.Context, _ *internalexec.RunConfig) (*internalexec.RunResult, error) {
			close(started)
			<-release
			return &internalexec.RunResult{ExitCode: 0}, nil
		},
	}
	exec, err := NewBuilder().WithPolicy(allowAll()).withRunner(mock).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, execErr := exec.Execute(context.Background(), NewCommand("sleep", "1").MustBuild())
		done <- execErr
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := exec.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() with in-flight command error = %v, want DeadlineExceeded", err)
	}

	close(release)
	if execErr := <-done; execErr != nil {
		t.Fatalf("in-flight Execute() error: %v", execErr)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := exec.Shutdown(ctx2); err != nil {
		t.Fatalf("Shutdown() after drain error: %v", err)
	}
}
