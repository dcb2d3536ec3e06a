package executor

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNotAllowedError(t *testing.T) {
	violations := []Violation{{Code: "BINARY_NOT_ALLOWED", Field: "binary", Message: "rm is not permitted"}}
	err := NewNotAllowedError("rm", violations)

	if !errors.Is(err, ErrCommandNotAllowed) {
		t.Error("NewNotAllowedError does not match ErrCommandNotAllowed")
	}

	var notAllowed *NotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatal("error is not a *NotAllowedError")
	}
	if len(notAllowed.Violations) != 1 {
		t.Errorf("got %d violations, want 1", len(notAllowed.Violations))
	}
	if !strings.Contains(err.Error(), "rm") {
		t.Errorf("error message %q does not name the binary", err.Error())
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("sleep", "5s")
	if !errors.Is(err, ErrTimeout) {
		t.Error("NewTimeoutError does not match ErrTimeout")
	}
	if GetErrorCode(err) != ErrCodeTimeout {
		t.Errorf("GetErrorCode = %v, want ErrCodeTimeout", GetErrorCode(err))
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("echo", "args", "null byte")
	if !errors.Is(err, ErrInvalidCommand) {
		t.Error("NewValidationError does not match ErrInvalidCommand")
	}
	if GetErrorCode(err) != ErrCodeValidationFailed {
		t.Errorf("GetErrorCode = %v, want ErrCodeValidationFailed", GetErrorCode(err))
	}
}

func TestGetErrorCodeWrapped(t *testing.T) {
	err := fmt.Errorf("running pipeline: %w", NewRateLimitError("git"))
	if GetErrorCode(err) != ErrCodeRateLimited {
		t.Errorf("GetErrorCode through wrapping = %v, want ErrCodeRateLimited", GetErrorCode(err))
	}
	if GetErrorCode(errors.New("plain")) != ErrCodeInternalError {
		t.Error("GetErrorCode for a plain error should be ErrCodeInternalError")
	}
}
