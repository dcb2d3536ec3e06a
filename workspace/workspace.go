// Package workspace provides restricted-permission temporary workspaces
// with tracked files and secure overwrite-then-delete cleanup.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tanwiraasif/secure-automation-framework/audit"
	"github.com/tanwiraasif/secure-automation-framework/validation"
)

// Sentinel errors.
var (
	// ErrWorkspaceCreation indicates the workspace directory could not be
	// created with the required permissions.
	ErrWorkspaceCreation = errors.New("workspace creation failed")

	// ErrWrite indicates a file could not be written into the workspace.
	ErrWrite = errors.New("workspace write failed")

	// ErrCleaned indicates an operation on an already cleaned workspace.
	ErrCleaned = errors.New("workspace already cleaned")
)

// DefaultWipePasses is the number of random overwrite passes before the
// final zero pass during cleanup.
const DefaultWipePasses = 3

type state int

const (
	stateActive state = iota
	stateCleaned
)

// Workspace is a temporary directory restricted to the owning user.
// Files written through it are tracked and securely erased on Cleanup.
//
// A Workspace moves through two states: Active after New, Cleaned after
// Cleanup. Cleanup is idempotent; every other operation fails once the
// workspace is cleaned. Whoever creates a workspace is responsible for
// guaranteeing Cleanup runs on every exit path, normally via defer.
type Workspace struct {
	root       string
	tracked    map[string]struct{}
	wipePasses int
	auditLog   audit.Logger
	state      state
	mu         sync.Mutex
}

// Option configures a Workspace.
type Option func(*options)

type options struct {
	tempRoot   string
	prefix     string
	wipePasses int
	auditLog   audit.Logger
}

// WithTempRoot places the workspace under dir instead of the system temp
// root.
func WithTempRoot(dir string) Option {
	return func(o *options) { o.tempRoot = dir }
}

// WithPrefix sets the directory name prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithWipePasses sets the number of random overwrite passes before the
// final zero pass. Values below 1 are raised to 1.
func WithWipePasses(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.wipePasses = n
	}
}

// WithAuditLogger records workspace lifecycle events to the logger.
func WithAuditLogger(l audit.Logger) Option {
	return func(o *options) { o.auditLog = l }
}

// New creates a workspace directory with owner-only permissions at a
// unique, unpredictable path under the system temp root.
func New(opts ...Option) (*Workspace, error) {
	o := &options{
		prefix:     "secure-ws-",
		wipePasses: DefaultWipePasses,
	}
	for _, opt := range opts {
		opt(o)
	}

	dir, err := os.MkdirTemp(o.tempRoot, o.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkspaceCreation, err)
	}

	// MkdirTemp creates with 0700 already; chmod explicitly so a loose
	// process umask can never widen access.
	if err := os.Chmod(dir, 0o700); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: setting permissions: %v", ErrWorkspaceCreation, err)
	}

	// Resolve once so later containment checks compare resolved paths even
	// when the temp root itself is a symlink (macOS /tmp).
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: resolving root: %v", ErrWorkspaceCreation, err)
	}

	w := &Workspace{
		root:       resolved,
		tracked:    make(map[string]struct{}),
		wipePasses: o.wipePasses,
		auditLog:   o.auditLog,
		state:      stateActive,
	}

	if w.auditLog != nil {
		if err := w.auditLog.Log(context.Background(), "workspace_created", map[string]any{
			"root": w.root,
		}); err != nil {
			_ = os.RemoveAll(resolved)
			return nil, err
		}
	}

	return w, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve validates name against the workspace root and returns the
// resolved absolute path. Names that escape the root, whether through
// relative segments or symlink indirection, fail with
// validation.ErrPathTraversal.
func (w *Workspace) Resolve(name string) (string, error) {
	return validation.ResolveWithin(w.root, name)
}

// WriteFile writes content to the named file inside the workspace with
// owner-only read/write permissions and registers it for secure cleanup.
//
// The write is atomic: content goes to a sibling temporary file which is
// renamed into place, so no partial file is ever visible under the final
// name. The name is validated against the workspace root first; traversal
// attempts propagate validation.ErrPathTraversal.
func (w *Workspace) WriteFile(name string, content []byte) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateCleaned {
		return "", ErrCleaned
	}

	path, err := w.Resolve(name)
	if err != nil {
		return "", err
	}
	if path == w.root {
		return "", fmt.Errorf("%w: refusing to write workspace root", ErrWrite)
	}

	if dir := filepath.Dir(path); dir != w.root {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("%w: %v", ErrWrite, err)
		}
	}

	tmp, err := os.CreateTemp(w.root, ".pending-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, content); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: setting permissions: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	w.tracked[path] = struct{}{}

	if w.auditLog != nil {
		if err := w.auditLog.Log(context.Background(), "file_written", map[string]any{
			"name": name,
			"size": len(content),
		}); err != nil {
			return "", err
		}
	}

	return path, nil
}

func writeAndClose(f *os.File, content []byte) error {
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads the named file from the workspace after validating the
// name against the root.
func (w *Workspace) ReadFile(name string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateCleaned {
		return nil, ErrCleaned
	}

	path, err := w.Resolve(name)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(path)
}

// TrackedFiles returns the sorted paths registered for secure cleanup.
func (w *Workspace) TrackedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := make([]string, 0, len(w.tracked))
	for path := range w.tracked {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Cleanup securely erases every file in the workspace, then removes the
// directory. Each regular file is overwritten in place with random filler
// passes and a final zero pass before removal; untracked files left behind
// by subprocesses are wiped the same way.
//
// Cleanup is idempotent: calling it on a cleaned workspace is a no-op.
//
// Overwriting reduces, but does not eliminate, data residue: copy-on-write
// and journaling filesystems may keep relocated copies of old blocks that
// no userspace overwrite can reach.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateCleaned {
		return nil
	}

	var firstErr error

	// Wipe everything under the root, tracked or not, deepest files first.
	walkErr := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			if err := wipeFile(path, w.wipePasses); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return nil
	})
	if walkErr != nil && firstErr == nil {
		firstErr = walkErr
	}

	if err := os.RemoveAll(w.root); err != nil && firstErr == nil {
		firstErr = err
	}

	w.state = stateCleaned
	w.tracked = make(map[string]struct{})

	if w.auditLog != nil {
		details := map[string]any{"root": w.root}
		if firstErr != nil {
			details["error"] = firstErr.Error()
		}
		if err := w.auditLog.Log(context.Background(), "workspace_cleaned", details); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
