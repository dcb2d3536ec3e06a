// Package executor provides allowlisted, audited command execution.
package executor

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Command describes a single subprocess invocation.
// Commands are immutable once built and are always executed as an argument
// vector, never through a shell interpreter.
type Command struct {
	// Binary is the executable to run. Either an absolute path or a bare
	// program name ("echo") resolved against a fixed PATH at run time.
	// Allowlist checks always apply to the base name.
	Binary string

	// Args are the command arguments (excluding the binary name).
	Args []string

	// Env is the environment for the command. It is merged over a minimal
	// safe base environment; the parent's environment never leaks through.
	Env map[string]string

	// WorkingDir is the working directory. Must be absolute when set.
	WorkingDir string

	// Timeout bounds execution. If zero, the executor's default applies.
	Timeout time.Duration

	// Stdin provides input to the command.
	Stdin io.Reader

	// Metadata carries arbitrary key-value pairs into audit records.
	// Values placed here are logged; never put secrets in metadata.
	Metadata map[string]string
}

// CommandBuilder provides a fluent API for constructing commands.
type CommandBuilder struct {
	cmd *Command
	err error
}

// NewCommand creates a CommandBuilder for the given binary and arguments.
func NewCommand(binary string, args ...string) *CommandBuilder {
	return &CommandBuilder{
		cmd: &Command{
			Binary:   binary,
			Args:     args,
			Env:      make(map[string]string),
			Metadata: make(map[string]string),
		},
	}
}

// WithWorkingDir sets the working directory.
func (b *CommandBuilder) WithWorkingDir(dir string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.cmd.WorkingDir = dir
	return b
}

// WithTimeout sets the execution timeout.
func (b *CommandBuilder) WithTimeout(timeout time.Duration) *CommandBuilder {
	if b.err != nil {
		return b
	}
	if timeout <= 0 {
		b.err = fmt.Errorf("%w: timeout must be positive", ErrInvalidCommand)
		return b
	}
	b.cmd.Timeout = timeout
	return b
}

// WithEnv adds an environment variable.
func (b *CommandBuilder) WithEnv(key, value string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.cmd.Env[key] = value
	return b
}

// WithStdin sets the standard input reader.
func (b *CommandBuilder) WithStdin(stdin io.Reader) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.cmd.Stdin = stdin
	return b
}

// WithMetadata adds a metadata entry carried into audit records.
func (b *CommandBuilder) WithMetadata(key, value string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.cmd.Metadata[key] = value
	return b
}

// Build validates and returns the command.
func (b *CommandBuilder) Build() (*Command, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.cmd.Binary == "" {
		return nil, fmt.Errorf("%w: binary is required", ErrInvalidCommand)
	}

	if strings.ContainsRune(b.cmd.Binary, 0) {
		return nil, fmt.Errorf("%w: binary contains null byte", ErrInvalidCommand)
	}

	// A relative binary must be a bare program name. Allowing "./sub/echo"
	// would let the path component defeat a base-name allowlist.
	if !filepath.IsAbs(b.cmd.Binary) && strings.ContainsAny(b.cmd.Binary, `/\`) {
		return nil, fmt.Errorf("%w: binary must be an absolute path or a bare name", ErrInvalidCommand)
	}

	if b.cmd.WorkingDir != "" && !filepath.IsAbs(b.cmd.WorkingDir) {
		return nil, fmt.Errorf("%w: working directory must be an absolute path", ErrInvalidCommand)
	}

	return b.cmd, nil
}

// MustBuild validates and returns the command, panicking on error.
// Use only when the inputs are known constants.
func (b *CommandBuilder) MustBuild() *Command {
	cmd, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cmd
}

// Name returns the base name of the binary, the value allowlists and audit
// records use.
func (c *Command) Name() string {
	return filepath.Base(c.Binary)
}

// Clone creates a deep copy of the command.
func (c *Command) Clone() *Command {
	clone := &Command{
		Binary:     c.Binary,
		Args:       make([]string, len(c.Args)),
		Env:        make(map[string]string, len(c.Env)),
		WorkingDir: c.WorkingDir,
		Timeout:    c.Timeout,
		Stdin:      c.Stdin,
		Metadata:   make(map[string]string, len(c.Metadata)),
	}

	copy(clone.Args, c.Args)
	for k, v := range c.Env {
		clone.Env[k] = v
	}
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// String returns a printable representation of the command.
func (c *Command) String() string {
	if len(c.Args) == 0 {
		return c.Binary
	}
	return fmt.Sprintf("%s %v", c.Binary, c.Args)
}
