// Package secureauto provides secure temporary workspaces and allowlisted,
// audited command execution.
//
// The package centralizes the defensive idioms a small automation tool
// needs: owner-only temp directories with overwrite-then-delete cleanup,
// path confinement that survives symlink indirection, argument-vector
// subprocess execution behind an allowlist and a timeout, append-only
// JSONL audit logging correlated by session, and OS-backed token and
// digest helpers.
//
// See the subpackages for the individual components:
//
//   - executor:      allowlisted, audited command execution
//   - policy:        YAML allowlist policy files
//   - workspace:     restricted-permission workspaces with secure cleanup
//   - validation:    path confinement and input validation
//   - audit:         session-correlated JSONL audit logging
//   - secrets:       secure tokens and SHA-256 digests
//   - observability: OpenTelemetry tracing and metrics
//   - resilience:    fail-fast execution rate limiting
//   - config:        aggregated configuration presets
//
// File I/O for the audit sink and policy files goes through
// github.com/victoralfred/gowritter/safepath for confined path handling.
package secureauto
