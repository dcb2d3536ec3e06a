// Package config aggregates configuration for the secure automation
// framework.
package config

import (
	"time"

	"github.com/tanwiraasif/secure-automation-framework/audit"
	"github.com/tanwiraasif/secure-automation-framework/observability"
	"github.com/tanwiraasif/secure-automation-framework/resilience"
	"github.com/tanwiraasif/secure-automation-framework/workspace"
)

// Config is the top-level configuration.
type Config struct {
	Executor    ExecutorConfig
	Audit       audit.Config
	Workspace   WorkspaceConfig
	RateLimiter resilience.Config
	Telemetry   observability.TelemetryConfig

	// PolicyBasePath and PolicyPath locate the YAML allowlist file.
	PolicyBasePath string
	PolicyPath     string
}

// ExecutorConfig configures command execution.
type ExecutorConfig struct {
	// DefaultTimeout bounds commands that carry no explicit timeout.
	DefaultTimeout time.Duration

	// MaxOutputBytes caps captured stdout and stderr, each.
	MaxOutputBytes int64

	// EnableRateLimit wires the rate limiter into the executor.
	EnableRateLimit bool

	// EnableMetrics wires telemetry and the in-process metrics aggregate.
	EnableMetrics bool
}

// WorkspaceConfig configures secure workspaces.
type WorkspaceConfig struct {
	// Prefix names the workspace directory under the temp root.
	Prefix string

	// WipePasses is the number of random overwrite passes on cleanup.
	WipePasses int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Executor: ExecutorConfig{
			DefaultTimeout:  30 * time.Second,
			MaxOutputBytes:  1 << 20,
			EnableRateLimit: true,
			EnableMetrics:   true,
		},
		Audit: audit.DefaultConfig(),
		Workspace: WorkspaceConfig{
			Prefix:     "secure-ws-",
			WipePasses: workspace.DefaultWipePasses,
		},
		RateLimiter:    resilience.DefaultConfig(),
		Telemetry:      observability.DefaultTelemetryConfig(),
		PolicyBasePath: "/etc/secure-automation",
		PolicyPath:     "policy.yaml",
	}
}

// DevelopmentConfig returns a configuration suitable for development:
// generous timeouts, chained audit records in a local file, no rate
// limiting.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.Executor.DefaultTimeout = 60 * time.Second
	cfg.Executor.EnableRateLimit = false
	cfg.Audit.BasePath = "."
	cfg.Audit.FilePath = "audit.log"
	cfg.Audit.ChainHashes = true
	return cfg
}

// ProductionConfig returns a hardened configuration.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.Executor.DefaultTimeout = 30 * time.Second
	cfg.Executor.MaxOutputBytes = 256 * 1024
	cfg.Audit.ChainHashes = true
	cfg.RateLimiter.RequestsPerSecond = 10
	cfg.RateLimiter.Burst = 20
	return cfg
}

// Validate normalizes invalid values to safe defaults.
func (c *Config) Validate() error {
	if c.Executor.DefaultTimeout <= 0 {
		c.Executor.DefaultTimeout = 30 * time.Second
	}
	if c.Executor.MaxOutputBytes <= 0 {
		c.Executor.MaxOutputBytes = 1 << 20
	}
	if c.Workspace.WipePasses < 1 {
		c.Workspace.WipePasses = 1
	}
	return nil
}
