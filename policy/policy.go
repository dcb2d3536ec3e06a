// Package policy provides allowlist policy for command execution, loadable
// from YAML policy files.
package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tanwiraasif/secure-automation-framework/executor"
)

// Policy is the decision interface consumed by the executor.
type Policy = executor.Policy

// Decision is the outcome of a policy check.
type Decision = executor.PolicyDecision

// Allowlist permits only commands whose base name is in a fixed set.
//
// An empty allowlist denies every command: the default is fail-closed.
// Permitting everything requires the explicit PermissivePolicy constructor,
// never an implicit fallthrough.
type Allowlist struct {
	names   map[string]struct{}
	version string
	mu      sync.RWMutex
}

// NewAllowlist creates an allowlist from permitted executable names.
// Names are compared against the base name of the command binary, so
// "echo" matches both "echo" and "/bin/echo".
func NewAllowlist(names ...string) *Allowlist {
	a := &Allowlist{
		names:   make(map[string]struct{}, len(names)),
		version: "allowlist",
	}
	for _, name := range names {
		a.names[filepath.Base(name)] = struct{}{}
	}
	return a
}

// Validate implements Policy.Validate.
func (a *Allowlist) Validate(ctx context.Context, cmd *executor.Command) (*Decision, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	name := cmd.Name()
	if _, ok := a.names[name]; ok {
		return &Decision{Allowed: true}, nil
	}

	reason := fmt.Sprintf("binary %q is not in the allowlist", name)
	if len(a.names) == 0 {
		reason = "allowlist is empty; all commands are denied"
	}

	return &Decision{
		Allowed: false,
		Reason:  reason,
		Violations: []executor.Violation{{
			Code:    "BINARY_NOT_ALLOWED",
			Field:   "binary",
			Message: reason,
		}},
	}, nil
}

// Version implements Policy.Version.
func (a *Allowlist) Version() string {
	return a.version
}

// Names returns the sorted permitted names.
func (a *Allowlist) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.names))
	for name := range a.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add permits additional names.
func (a *Allowlist) Add(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, name := range names {
		a.names[filepath.Base(name)] = struct{}{}
	}
}

// PermissivePolicy returns a policy that allows every command.
// This is the explicit opt-out of allowlisting; use only in tests.
func PermissivePolicy() Policy {
	return &permissivePolicy{}
}

type permissivePolicy struct{}

func (p *permissivePolicy) Validate(ctx context.Context, cmd *executor.Command) (*Decision, error) {
	return &Decision{Allowed: true}, nil
}

func (p *permissivePolicy) Version() string { return "permissive" }
