package policy

import (
	"fmt"
	"time"
)

// Config is the YAML policy file structure.
//
// Example:
//
//	version: "1.0"
//	allowlist:
//	  - echo
//	  - date
//	limits:
//	  default_timeout: 30s
//	  max_output: 1Mi
//	audit:
//	  enabled: true
//	  chain_hashes: true
//	workspace:
//	  wipe_passes: 3
type Config struct {
	Version   string          `yaml:"version"`
	Allowlist []string        `yaml:"allowlist"`
	Limits    LimitsConfig    `yaml:"limits"`
	Audit     AuditConfig     `yaml:"audit"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metadata  Metadata        `yaml:"metadata"`
}

// Metadata contains descriptive policy metadata.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Updated     string `yaml:"updated"`
}

// LimitsConfig contains execution limit settings.
type LimitsConfig struct {
	// DefaultTimeout bounds each command execution.
	DefaultTimeout Duration `yaml:"default_timeout"`

	// MaxOutput bounds captured stdout and stderr, each.
	MaxOutput ByteSize `yaml:"max_output"`
}

// AuditConfig contains audit sink settings.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BasePath    string `yaml:"base_path"`
	FilePath    string `yaml:"file_path"`
	ChainHashes bool   `yaml:"chain_hashes"`
}

// WorkspaceConfig contains workspace settings.
type WorkspaceConfig struct {
	Prefix     string `yaml:"prefix"`
	WipePasses int    `yaml:"wipe_passes"`
}

// RateLimitConfig contains rate limit settings.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ExampleConfig returns a policy configuration to use as a starting point.
func ExampleConfig() *Config {
	return &Config{
		Version:   "1.0",
		Allowlist: []string{"echo", "date", "pwd"},
		Limits: LimitsConfig{
			DefaultTimeout: Duration{30 * time.Second},
			MaxOutput:      ByteSize{1024 * 1024},
		},
		Audit: AuditConfig{
			Enabled:     true,
			BasePath:    "/var/log",
			FilePath:    "secure-automation/audit.log",
			ChainHashes: true,
		},
		Workspace: WorkspaceConfig{
			Prefix:     "secure-ws-",
			WipePasses: 3,
		},
	}
}

// Duration is a time.Duration unmarshaled from YAML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML unmarshals a duration from YAML.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	d.Duration = duration
	return nil
}

// MarshalYAML marshals a duration to YAML.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// ByteSize is a size in bytes unmarshaled from YAML strings like "1Mi" or
// plain integers.
type ByteSize struct {
	Bytes int64
}

// UnmarshalYAML unmarshals a byte size from YAML.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var n int64
		if err := unmarshal(&n); err != nil {
			return err
		}
		b.Bytes = n
		return nil
	}

	bytes, err := parseByteSize(s)
	if err != nil {
		return err
	}
	b.Bytes = bytes
	return nil
}

// MarshalYAML marshals a byte size to YAML.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%d", b.Bytes), nil
}

var byteSuffixes = map[string]int64{
	"":    1,
	"B":   1,
	"K":   1000,
	"KB":  1000,
	"Ki":  1024,
	"KiB": 1024,
	"M":   1000 * 1000,
	"MB":  1000 * 1000,
	"Mi":  1024 * 1024,
	"MiB": 1024 * 1024,
	"G":   1000 * 1000 * 1000,
	"GB":  1000 * 1000 * 1000,
	"Gi":  1024 * 1024 * 1024,
	"GiB": 1024 * 1024 * 1024,
}

// parseByteSize parses strings like "1024", "64Ki", "10MB".
func parseByteSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	var num int64
	if _, err := fmt.Sscanf(s[:i], "%d", &num); err != nil {
		return 0, err
	}

	multiplier, ok := byteSuffixes[s[i:]]
	if !ok {
		return 0, fmt.Errorf("invalid byte size suffix %q", s[i:])
	}

	return num * multiplier, nil
}
