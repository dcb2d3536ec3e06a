package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrCommandNotAllowed indicates the binary is not in the allowlist.
	ErrCommandNotAllowed = errors.New("command not in allowlist")

	// ErrArgumentNotAllowed indicates an argument was rejected.
	ErrArgumentNotAllowed = errors.New("argument not allowed")

	// ErrTimeout indicates execution exceeded the timeout.
	ErrTimeout = errors.New("command timed out")

	// ErrRateLimited indicates the rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidCommand indicates an invalid command configuration.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrExecutorShutdown indicates the executor has been shut down.
	ErrExecutorShutdown = errors.New("executor shutdown")
)

// ErrorCode provides structured error classification for audit records and
// top-level reporting.
type ErrorCode string

const (
	// ErrCodeNotAllowed indicates an allowlist denial.
	ErrCodeNotAllowed ErrorCode = "COMMAND_NOT_ALLOWED"

	// ErrCodeValidationFailed indicates input validation failure.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrCodeExecutionFailed indicates the process failed.
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// ErrCodeTimeout indicates the timeout was exceeded.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeRateLimited indicates rate limiting.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// ErrCodeAuditFailed indicates the audit sink could not be written.
	ErrCodeAuditFailed ErrorCode = "AUDIT_FAILED"

	// ErrCodeInternalError indicates an internal error.
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ExecutionError provides detailed error information.
type ExecutionError struct {
	// Op is the operation that failed.
	Op string

	// Binary is the base name of the binary involved.
	Binary string

	// Err is the underlying error.
	Err error

	// Code is the structured error code.
	Code ErrorCode

	// Details provides human-readable details.
	Details string
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Binary, e.Details)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Binary, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Violation describes a specific policy violation.
type Violation struct {
	// Code is the violation code.
	Code string

	// Field is the field that violated the policy.
	Field string

	// Message describes the violation.
	Message string
}

// NotAllowedError is returned when a command is denied by the allowlist.
type NotAllowedError struct {
	ExecutionError
	Violations []Violation
}

// NewNotAllowedError creates an allowlist denial error.
func NewNotAllowedError(binary string, violations []Violation) error {
	return &NotAllowedError{
		ExecutionError: ExecutionError{
			Op:      "allowlist_check",
			Binary:  binary,
			Err:     ErrCommandNotAllowed,
			Code:    ErrCodeNotAllowed,
			Details: fmt.Sprintf("binary %q is not permitted", binary),
		},
		Violations: violations,
	}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(binary string, timeout string) error {
	return &ExecutionError{
		Op:      "execute",
		Binary:  binary,
		Err:     ErrTimeout,
		Code:    ErrCodeTimeout,
		Details: fmt.Sprintf("execution exceeded timeout of %s", timeout),
	}
}

// NewValidationError creates a validation error.
func NewValidationError(binary, field, message string) error {
	return &ExecutionError{
		Op:      "validate",
		Binary:  binary,
		Err:     ErrInvalidCommand,
		Code:    ErrCodeValidationFailed,
		Details: fmt.Sprintf("%s: %s", field, message),
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(binary string) error {
	return &ExecutionError{
		Op:      "rate_limit",
		Binary:  binary,
		Err:     ErrRateLimited,
		Code:    ErrCodeRateLimited,
		Details: "rate limit exceeded",
	}
}

// GetErrorCode extracts the structured code from an error.
func GetErrorCode(err error) ErrorCode {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Code
	}
	return ErrCodeInternalError
}
