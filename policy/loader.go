package policy

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/victoralfred/gowritter/safepath"
	"gopkg.in/yaml.v3"
)

// Loader loads allowlist policies from YAML files confined under a base
// path.
type Loader struct {
	path       string
	safePath   *safepath.SafePath
	config     *Config
	allowlist  *Allowlist
	validators []ConfigValidator
	lastHash   []byte
	lastLoad   time.Time
	mu         sync.RWMutex
}

// ConfigValidator validates a policy configuration before it is accepted.
type ConfigValidator interface {
	Validate(config *Config) error
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithValidator adds a configuration validator.
func WithValidator(v ConfigValidator) LoaderOption {
	return func(l *Loader) {
		l.validators = append(l.validators, v)
	}
}

// NewLoader creates a policy loader for policyFile under basePath.
func NewLoader(basePath, policyFile string, opts ...LoaderOption) (*Loader, error) {
	sp, err := safepath.New(basePath)
	if err != nil {
		return nil, fmt.Errorf("creating safe path: %w", err)
	}

	l := &Loader{
		path:     policyFile,
		safePath: sp,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Load reads and parses the policy file, returning the compiled allowlist.
// If the file content is unchanged since the last load, the cached
// allowlist is returned.
func (l *Loader) Load(ctx context.Context) (*Allowlist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.safePath.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	hash := sha256.Sum256(data)
	if l.allowlist != nil && string(hash[:]) == string(l.lastHash) {
		return l.allowlist, nil
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	for _, v := range l.validators {
		if err := v.Validate(&config); err != nil {
			return nil, fmt.Errorf("policy validation failed: %w", err)
		}
	}

	allowlist := NewAllowlist(config.Allowlist...)
	allowlist.version = fmt.Sprintf("%s@%x", config.Version, hash[:8])

	l.config = &config
	l.allowlist = allowlist
	l.lastHash = hash[:]
	l.lastLoad = time.Now()

	return allowlist, nil
}

// Get returns the current allowlist without reloading, or nil before the
// first Load.
func (l *Loader) Get() *Allowlist {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowlist
}

// Config returns the full parsed configuration from the last Load, or nil
// before the first Load.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// LastLoad returns when the policy was last parsed.
func (l *Loader) LastLoad() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastLoad
}

// DefaultValidator rejects configurations without a version or with an
// empty allowlist.
type DefaultValidator struct {
	// AllowEmpty accepts an empty allowlist (which denies all commands).
	AllowEmpty bool
}

// Validate implements ConfigValidator.
func (v *DefaultValidator) Validate(config *Config) error {
	if config.Version == "" {
		return fmt.Errorf("policy version is required")
	}
	if !v.AllowEmpty && len(config.Allowlist) == 0 {
		return fmt.Errorf("allowlist is empty; this policy denies every command")
	}
	for _, name := range config.Allowlist {
		if name == "" {
			return fmt.Errorf("allowlist contains an empty name")
		}
	}
	return nil
}
