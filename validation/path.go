package validation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tanwiraasif/secure-automation-framework/executor"
)

// Sentinel errors for path validation.
var (
	// ErrPathTraversal indicates a path resolved outside its base directory.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrInvalidPath indicates a malformed or unusable path.
	ErrInvalidPath = errors.New("invalid path")
)

// ResolveWithin resolves candidate to an absolute path and requires the
// result to be base itself or a strict descendant of base.
//
// Relative candidates are joined to base first. Symbolic links in the
// candidate and in base are fully resolved before the containment check;
// checking only the literal string would let a symlink inside base point
// anywhere on the filesystem. Candidates that do not exist yet are resolved
// through their deepest existing ancestor, so the check also covers paths
// about to be created.
//
// Returns ErrPathTraversal when the resolved path escapes base. The
// filesystem is never modified.
func ResolveWithin(base, candidate string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("%w: base directory is required", ErrInvalidPath)
	}
	if candidate == "" {
		return "", fmt.Errorf("%w: candidate path is required", ErrInvalidPath)
	}
	if strings.ContainsRune(candidate, 0) {
		return "", fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("%w: resolving base: %v", ErrInvalidPath, err)
	}
	resolvedBase, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return "", fmt.Errorf("%w: resolving base %s: %v", ErrInvalidPath, absBase, err)
	}

	target := candidate
	if !filepath.IsAbs(target) {
		target = filepath.Join(resolvedBase, target)
	}
	target = filepath.Clean(target)

	resolved, err := resolveExisting(target)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %v", ErrInvalidPath, target, err)
	}

	rel, err := filepath.Rel(resolvedBase, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s escapes %s", ErrPathTraversal, candidate, base)
	}

	return resolved, nil
}

// resolveExisting resolves all symlinks in path. When the leaf does not
// exist yet, the deepest existing ancestor is resolved and the remaining
// lexical suffix is rejoined. The input must already be absolute and clean.
func resolveExisting(path string) (string, error) {
	p := path
	var suffix []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		suffix = append([]string{filepath.Base(p)}, suffix...)
		p = parent
	}
}

// SanitizePath cleans a path and rejects traversal segments and null bytes.
// Unlike ResolveWithin it is purely lexical: no filesystem access.
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}

	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", ErrPathTraversal
	}

	return cleaned, nil
}

// IsPathSafe reports whether SanitizePath accepts the path.
func IsPathSafe(path string) bool {
	_, err := SanitizePath(path)
	return err == nil
}

// PathValidatorConfig configures the command path validator.
type PathValidatorConfig struct {
	// AllowedPrefixes restricts absolute binaries to these prefixes.
	// Empty means any absolute path passes the prefix check.
	AllowedPrefixes []string

	// DeniedPrefixes rejects absolute binaries under these prefixes.
	DeniedPrefixes []string

	// CheckWorkdirExists requires the working directory to exist.
	CheckWorkdirExists bool
}

// PathValidator validates the binary and working-directory paths of a
// command before execution.
type PathValidator struct {
	config *PathValidatorConfig
}

// NewPathValidator creates a path validator. A nil config applies defaults
// that confine absolute binaries to the standard system binary directories.
func NewPathValidator(config *PathValidatorConfig) *PathValidator {
	if config == nil {
		config = &PathValidatorConfig{
			AllowedPrefixes: []string{
				"/usr/bin",
				"/usr/local/bin",
				"/bin",
			},
			DeniedPrefixes: []string{
				"/etc",
				"/root",
				"/proc",
				"/sys",
			},
			CheckWorkdirExists: true,
		}
	}
	return &PathValidator{config: config}
}

// Name returns the validator name.
func (v *PathValidator) Name() string {
	return "path_validator"
}

// Priority returns the execution priority.
func (v *PathValidator) Priority() int {
	return 10
}

// Validate validates a command's paths.
func (v *PathValidator) Validate(ctx context.Context, cmd *executor.Command) error {
	if err := v.validateBinary(cmd.Binary); err != nil {
		return fmt.Errorf("binary: %w", err)
	}
	if cmd.WorkingDir != "" {
		if err := v.validateWorkdir(cmd.WorkingDir); err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
	}
	return nil
}

func (v *PathValidator) validateBinary(binary string) error {
	if binary == "" {
		return fmt.Errorf("%w: binary is required", ErrInvalidPath)
	}
	if strings.ContainsRune(binary, 0) {
		return fmt.Errorf("%w: contains null byte", ErrInvalidPath)
	}

	// Bare names are resolved against a fixed PATH later; only absolute
	// paths carry directory components worth checking here.
	if !filepath.IsAbs(binary) {
		if strings.ContainsAny(binary, `/\`) {
			return fmt.Errorf("%w: relative binary must be a bare name", ErrInvalidPath)
		}
		return nil
	}

	cleaned := filepath.Clean(binary)
	if cleaned != binary {
		return fmt.Errorf("%w: %s is not in canonical form", ErrPathTraversal, binary)
	}

	if len(v.config.AllowedPrefixes) > 0 {
		allowed := false
		for _, prefix := range v.config.AllowedPrefixes {
			if strings.HasPrefix(cleaned, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: path not in allowed prefixes", ErrInvalidPath)
		}
	}

	for _, prefix := range v.config.DeniedPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			return fmt.Errorf("%w: path in denied prefix %s", ErrInvalidPath, prefix)
		}
	}

	return nil
}

func (v *PathValidator) validateWorkdir(dir string) error {
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: must be absolute", ErrInvalidPath)
	}
	if cleaned := filepath.Clean(dir); cleaned != dir {
		return fmt.Errorf("%w: %s is not in canonical form", ErrPathTraversal, dir)
	}

	if v.config.CheckWorkdirExists {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: not a directory", ErrInvalidPath)
		}
	}

	return nil
}
