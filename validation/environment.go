package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tanwiraasif/secure-automation-framework/executor"
)

// EnvironmentValidatorConfig configures the environment validator.
type EnvironmentValidatorConfig struct {
	// AllowedVars are variable names that may pass through.
	// Supports wildcards: "PATH", "LC_*".
	AllowedVars []string

	// DeniedVars are variable names that are always rejected.
	// Supports wildcards: "*_SECRET*", "LD_PRELOAD".
	DeniedVars []string

	// MaxVars bounds the variable count.
	MaxVars int

	// MaxValueLength bounds the length of a variable value.
	MaxValueLength int
}

// EnvironmentValidator validates environment variables supplied on a
// command before they reach the child process.
type EnvironmentValidator struct {
	config        *EnvironmentValidatorConfig
	allowedRegexp []*regexp.Regexp
	deniedRegexp  []*regexp.Regexp
}

// NewEnvironmentValidator creates an environment validator. A nil config
// applies defaults that reject loader-injection and credential-bearing
// variables.
func NewEnvironmentValidator(config *EnvironmentValidatorConfig) *EnvironmentValidator {
	if config == nil {
		config = &EnvironmentValidatorConfig{
			AllowedVars: []string{
				"PATH", "HOME", "USER", "LANG", "LC_*", "TZ", "TERM",
			},
			DeniedVars: []string{
				"*_SECRET*", "*_PASSWORD*", "*_TOKEN*", "*_KEY*",
				"LD_PRELOAD", "LD_LIBRARY_PATH", "DYLD_*",
			},
			MaxVars:        50,
			MaxValueLength: 8192,
		}
	}

	v := &EnvironmentValidator{config: config}
	for _, pattern := range config.AllowedVars {
		if re := wildcardToRegexp(pattern); re != nil {
			v.allowedRegexp = append(v.allowedRegexp, re)
		}
	}
	for _, pattern := range config.DeniedVars {
		if re := wildcardToRegexp(pattern); re != nil {
			v.deniedRegexp = append(v.deniedRegexp, re)
		}
	}
	return v
}

// Name returns the validator name.
func (v *EnvironmentValidator) Name() string {
	return "environment_validator"
}

// Priority returns the execution priority.
func (v *EnvironmentValidator) Priority() int {
	return 30
}

// Validate validates the command environment.
func (v *EnvironmentValidator) Validate(ctx context.Context, cmd *executor.Command) error {
	if len(cmd.Env) > v.config.MaxVars {
		return fmt.Errorf("too many environment variables (%d > %d)",
			len(cmd.Env), v.config.MaxVars)
	}

	for key, value := range cmd.Env {
		if err := v.validateVar(key, value); err != nil {
			return err
		}
	}

	return nil
}

func (v *EnvironmentValidator) validateVar(key, value string) error {
	if !isValidEnvKey(key) {
		return fmt.Errorf("invalid environment key %q", key)
	}
	if len(value) > v.config.MaxValueLength {
		return fmt.Errorf("environment value for %q too long (%d > %d)",
			key, len(value), v.config.MaxValueLength)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("environment value for %q contains null byte", key)
	}

	for _, re := range v.deniedRegexp {
		if re.MatchString(key) {
			return fmt.Errorf("environment variable %q matches denied pattern", key)
		}
	}

	if len(v.allowedRegexp) > 0 {
		allowed := false
		for _, re := range v.allowedRegexp {
			if re.MatchString(key) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("environment variable %q not in allowlist", key)
		}
	}

	return nil
}

// wildcardToRegexp converts a wildcard pattern to an anchored regexp.
func wildcardToRegexp(pattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, "\\*", ".*")
	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return re
}

// isValidEnvKey reports whether key is a valid environment variable name.
func isValidEnvKey(key string) bool {
	if len(key) == 0 {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// MinimalEnvironment returns the minimal safe environment used as the base
// for every child process.
func MinimalEnvironment() map[string]string {
	return map[string]string{
		"PATH":   "/usr/bin:/bin",
		"LANG":   "C.UTF-8",
		"LC_ALL": "C.UTF-8",
		"HOME":   "/tmp",
	}
}

// MergeEnvironment merges base with overrides; overrides win.
func MergeEnvironment(base, override map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		result[k] = v
	}
	return result
}
