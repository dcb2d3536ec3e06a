package secureauto

import (
	"context"
	"time"

	"github.com/tanwiraasif/secure-automation-framework/audit"
	"github.com/tanwiraasif/secure-automation-framework/executor"
	"github.com/tanwiraasif/secure-automation-framework/policy"
	"github.com/tanwiraasif/secure-automation-framework/secrets"
	"github.com/tanwiraasif/secure-automation-framework/validation"
	"github.com/tanwiraasif/secure-automation-framework/workspace"
)

// =============================================================================
// Core Types
// =============================================================================

// Executor is the primary interface for command execution.
type Executor = executor.Executor

// Command represents a command to be executed.
type Command = executor.Command

// CommandBuilder creates commands with a fluent interface.
type CommandBuilder = executor.CommandBuilder

// Result contains the outcome of command execution.
type Result = executor.Result

// Builder creates configured Executor instances.
type Builder = executor.Builder

// Workspace is a restricted-permission temporary directory with secure
// cleanup.
type Workspace = workspace.Workspace

// Session identifies one process run in audit records.
type Session = audit.Session

// AuditLogger appends structured audit records.
type AuditLogger = audit.Logger

// Allowlist permits only named executables.
type Allowlist = policy.Allowlist

// =============================================================================
// Error Variables
// =============================================================================

// Common errors returned by the library.
var (
	// ErrInvalidLength indicates a non-positive token length.
	ErrInvalidLength = secrets.ErrInvalidLength

	// ErrPathTraversal indicates a path escaping its base directory.
	ErrPathTraversal = validation.ErrPathTraversal

	// ErrInvalidPath indicates a malformed path.
	ErrInvalidPath = validation.ErrInvalidPath

	// ErrWorkspaceCreation indicates workspace setup failed.
	ErrWorkspaceCreation = workspace.ErrWorkspaceCreation

	// ErrWorkspaceWrite indicates a workspace file write failed.
	ErrWorkspaceWrite = workspace.ErrWrite

	// ErrCommandNotAllowed indicates an allowlist denial.
	ErrCommandNotAllowed = executor.ErrCommandNotAllowed

	// ErrCommandTimeout indicates execution exceeded its timeout.
	ErrCommandTimeout = executor.ErrTimeout

	// ErrAuditWrite indicates the audit sink could not be written.
	ErrAuditWrite = audit.ErrWrite
)

// =============================================================================
// Factory Functions
// =============================================================================

// NewBuilder creates an executor builder.
//
// Example:
//
//	exec, err := secureauto.NewBuilder().
//	    WithPolicy(secureauto.NewAllowlist("echo", "date")).
//	    WithAuditLogger(logger).
//	    WithDefaultTimeout(30 * time.Second).
//	    Build()
func NewBuilder() *Builder {
	return executor.NewBuilder()
}

// NewAllowlist creates an allowlist of permitted executable names.
// An empty allowlist denies every command.
func NewAllowlist(names ...string) *Allowlist {
	return policy.NewAllowlist(names...)
}

// NewSession creates a session for audit correlation.
func NewSession() *Session {
	return audit.NewSession()
}

// NewWorkspace creates a secure workspace. The caller must guarantee
// Cleanup runs on every exit path, normally with defer.
//
// Example:
//
//	ws, err := secureauto.NewWorkspace()
//	if err != nil {
//	    return err
//	}
//	defer ws.Cleanup()
func NewWorkspace(opts ...workspace.Option) (*Workspace, error) {
	return workspace.New(opts...)
}

// =============================================================================
// Command Construction
// =============================================================================

// Cmd creates a CommandBuilder for the binary and arguments.
func Cmd(binary string, args ...string) *CommandBuilder {
	return executor.NewCommand(binary, args...)
}

// MustCmd creates a command and panics on error. Use only for constants.
func MustCmd(binary string, args ...string) *Command {
	return executor.NewCommand(binary, args...).MustBuild()
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Token returns a URL-safe token of byteLength secure random bytes.
func Token(byteLength int) (string, error) {
	return secrets.Token(byteLength)
}

// HashBytes returns the hex SHA-256 digest of content.
func HashBytes(content []byte) string {
	return secrets.HashBytes(content)
}

// ResolveWithin confines candidate to base, resolving symlinks before the
// containment check.
func ResolveWithin(base, candidate string) (string, error) {
	return validation.ResolveWithin(base, candidate)
}

// LoadPolicy creates a loader for a YAML allowlist policy file.
func LoadPolicy(basePath, policyFile string) (*policy.Loader, error) {
	return policy.NewLoader(basePath, policyFile)
}

// Execute is a convenience for one-off execution of an allowlisted
// command. For repeated executions, build an Executor once instead.
func Execute(ctx context.Context, allow *Allowlist, logger AuditLogger, timeout time.Duration, binary string, args ...string) (*Result, error) {
	exec, err := NewBuilder().
		WithPolicy(allow).
		WithAuditLogger(logger).
		WithDefaultTimeout(timeout).
		Build()
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck // shutdown of a drained executor cannot fail meaningfully
		_ = exec.Shutdown(context.Background())
	}()

	cmd, err := Cmd(binary, args...).Build()
	if err != nil {
		return nil, err
	}

	return exec.Execute(ctx, cmd)
}

// Version returns the library version.
func Version() string {
	return "1.0.0"
}
