// Package validation provides input validation and path confinement.
//
// ResolveWithin is the path-traversal guard used by the workspace package;
// the Validator registry runs path, argument and environment checks over a
// command before the executor spawns anything.
package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tanwiraasif/secure-automation-framework/executor"
)

// Validator validates one aspect of a command.
type Validator interface {
	// Name returns the validator name, used in error messages.
	Name() string

	// Validate validates a command.
	Validate(ctx context.Context, cmd *executor.Command) error

	// Priority determines execution order (lower runs earlier).
	Priority() int
}

// Registry runs a set of validators in priority order.
type Registry struct {
	validators []Validator
	mu         sync.RWMutex
}

// NewRegistry creates an empty validator registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a validator to the registry.
func (r *Registry) Register(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.validators = append(r.validators, v)
	sort.SliceStable(r.validators, func(i, j int) bool {
		return r.validators[i].Priority() < r.validators[j].Priority()
	})
}

// Unregister removes a validator by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, v := range r.validators {
		if v.Name() == name {
			r.validators = append(r.validators[:i], r.validators[i+1:]...)
			return
		}
	}
}

// ValidateAll runs every validator against the command, collecting all
// failures rather than stopping at the first.
func (r *Registry) ValidateAll(ctx context.Context, cmd *executor.Command) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, v := range r.validators {
		if err := v.Validate(ctx, cmd); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Name(), err))
		}
	}

	if len(errs) > 0 {
		return &Errors{Errors: errs}
	}
	return nil
}

// Errors aggregates multiple validation failures.
type Errors struct {
	Errors []error
}

// Error returns the error message.
func (e *Errors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors occurred", len(e.Errors))
}

// Unwrap returns the first error.
func (e *Errors) Unwrap() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Is reports whether any aggregated error matches the target.
func (e *Errors) Is(target error) bool {
	for _, err := range e.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DefaultRegistry returns a registry with the default path, argument and
// environment validators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPathValidator(nil))
	r.Register(NewArgumentValidator(nil))
	r.Register(NewEnvironmentValidator(nil))
	return r
}
