// Command securedemo demonstrates the secure workspace and audited
// command execution flow end to end. It exits 0 on success; any failure
// is reported and turns into a non-zero exit, with workspace cleanup
// guaranteed on every path.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tanwiraasif/secure-automation-framework/audit"
	"github.com/tanwiraasif/secure-automation-framework/config"
	"github.com/tanwiraasif/secure-automation-framework/executor"
	"github.com/tanwiraasif/secure-automation-framework/policy"
	"github.com/tanwiraasif/secure-automation-framework/secrets"
	"github.com/tanwiraasif/secure-automation-framework/validation"
	"github.com/tanwiraasif/secure-automation-framework/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "securedemo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("Secure Automation Framework")
	fmt.Println("===========================")

	cfg := config.DevelopmentConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	session := audit.NewSession()
	logger, err := audit.NewFileLogger(session, cfg.Audit)
	if err != nil {
		return fmt.Errorf("creating audit logger: %w", err)
	}
	defer logger.Close()

	ctx := context.Background()

	fmt.Println("\n1. Secure token generation:")
	token, err := secrets.DefaultToken()
	if err != nil {
		return err
	}
	fmt.Printf("   token: %s...\n", token[:16])

	fmt.Println("\n2. Secure hashing:")
	fmt.Printf("   sha256: %s\n", secrets.HashString("sensitive_data_123"))

	fmt.Println("\n3. Path validation:")
	ws, err := workspace.New(
		workspace.WithPrefix(cfg.Workspace.Prefix),
		workspace.WithWipePasses(cfg.Workspace.WipePasses),
		workspace.WithAuditLogger(logger),
	)
	if err != nil {
		return err
	}
	// Cleanup runs on every exit path, including errors below.
	defer func() {
		if cleanupErr := ws.Cleanup(); cleanupErr != nil {
			fmt.Fprintf(os.Stderr, "securedemo: cleanup: %v\n", cleanupErr)
		}
	}()

	if _, err := ws.Resolve("../../../etc/passwd"); errors.Is(err, validation.ErrPathTraversal) {
		fmt.Printf("   blocked traversal: %v\n", err)
	} else {
		return fmt.Errorf("traversal was not blocked: %v", err)
	}

	fmt.Println("\n4. Secure file handling:")
	path, err := ws.WriteFile("notes.txt", []byte("secret"))
	if err != nil {
		return err
	}
	fmt.Printf("   wrote %s\n", path)

	fmt.Println("\n5. Allowlisted command execution:")
	exec, err := executor.NewBuilder().
		WithPolicy(policy.NewAllowlist("echo", "pwd", "date")).
		WithValidators(validation.DefaultRegistry()).
		WithAuditLogger(logger).
		WithDefaultTimeout(cfg.Executor.DefaultTimeout).
		WithMaxOutputBytes(cfg.Executor.MaxOutputBytes).
		Build()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:errcheck // executor is drained by the time we get here
		_ = exec.Shutdown(shutdownCtx)
	}()

	cmd, err := executor.NewCommand("echo", "hello from the secure runner").Build()
	if err != nil {
		return err
	}
	result, err := exec.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("executing echo: %w", err)
	}
	fmt.Printf("   %s", result.StdoutString())

	// A disallowed command must be rejected before anything spawns.
	denied, err := executor.NewCommand("rm", "-rf", "/").Build()
	if err != nil {
		return err
	}
	if _, err := exec.Execute(ctx, denied); !errors.Is(err, executor.ErrCommandNotAllowed) {
		return fmt.Errorf("rm was not denied: %v", err)
	}
	fmt.Println("   blocked disallowed command: rm")

	fmt.Println("\n6. Audit logging:")
	if err := logger.Log(ctx, "demo_run", map[string]any{"status": "success"}); err != nil {
		return err
	}
	fmt.Printf("   session %s recorded to %s\n", session.ID, cfg.Audit.FilePath)

	return nil
}
