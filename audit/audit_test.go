package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tanwiraasif/secure-automation-framework/secrets"
)

func TestNewSession(t *testing.T) {
	a := NewSession()
	b := NewSession()

	if a.ID == "" || b.ID == "" {
		t.Fatal("session ID is empty")
	}
	if a.ID == b.ID {
		t.Error("two sessions share the same ID")
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
	if a.CreatedAt.Location() != a.CreatedAt.UTC().Location() {
		t.Error("CreatedAt is not UTC")
	}
}

func readRecords(t *testing.T, path string) []Record {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening audit file: %v", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", len(records)+1, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return records
}

func TestFileLogger(t *testing.T) {
	base := t.TempDir()
	session := NewSession()
	logger, err := NewFileLogger(session, Config{
		BasePath: base,
		FilePath: "audit.log",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	if err := logger.Log(ctx, "workspace_created", map[string]any{"path": "/tmp/ws"}); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	if err := logger.Log(ctx, "command_execution", map[string]any{"binary": "echo", "exit_code": float64(0)}); err != nil {
		t.Fatalf("Log() error: %v", err)
	}

	records := readRecords(t, filepath.Join(base, "audit.log"))
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	for i, r := range records {
		if r.SessionID != session.ID {
			t.Errorf("record %d session = %q, want %q", i, r.SessionID, session.ID)
		}
		if r.Timestamp == "" {
			t.Errorf("record %d has no timestamp", i)
		}
	}
	if records[0].Action != "workspace_created" {
		t.Errorf("first action = %q, want workspace_created", records[0].Action)
	}
	if records[1].Details["binary"] != "echo" {
		t.Errorf("second record binary = %v, want echo", records[1].Details["binary"])
	}
}

func TestFileLoggerPermissions(t *testing.T) {
	base := t.TempDir()
	logger, err := NewFileLogger(NewSession(), Config{
		BasePath: base,
		FilePath: "audit.log",
		Enabled:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Log(context.Background(), "test", nil); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(base, "audit.log"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("audit file mode = %o, want 0600", perm)
	}
}

func TestFileLoggerHashChain(t *testing.T) {
	base := t.TempDir()
	logger, err := NewFileLogger(NewSession(), Config{
		BasePath:    base,
		FilePath:    "audit.log",
		ChainHashes: true,
		Enabled:     true,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, action := range []string{"first", "second", "third"} {
		if err := logger.Log(ctx, action, nil); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(base, "audit.log")
	records := readRecords(t, path)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].PrevHash != "" {
		t.Errorf("first record prev_hash = %q, want empty", records[0].PrevHash)
	}

	// Each prev_hash must be the SHA-256 of the previous line.
	f, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var lines [][]byte
	for _, line := range splitLines(f) {
		lines = append(lines, line)
	}
	for i := 1; i < len(records); i++ {
		want := secrets.HashBytes(lines[i-1])
		if records[i].PrevHash != want {
			t.Errorf("record %d prev_hash = %q, want hash of previous line", i, records[i].PrevHash)
		}
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	return lines
}

func TestFileLoggerDisabled(t *testing.T) {
	base := t.TempDir()
	logger, err := NewFileLogger(NewSession(), Config{
		BasePath: base,
		FilePath: "audit.log",
		Enabled:  false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Log(context.Background(), "dropped", nil); err != nil {
		t.Fatalf("Log() on disabled logger error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "audit.log")); !os.IsNotExist(err) {
		t.Error("disabled logger wrote to the sink")
	}
}

func TestMemoryLogger(t *testing.T) {
	session := NewSession()
	logger := NewMemoryLogger(session)

	ctx := context.Background()
	if err := logger.Log(ctx, "one", map[string]any{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if err := logger.Log(ctx, "two", nil); err != nil {
		t.Fatal(err)
	}

	records := logger.Records()
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Action != "one" || records[1].Action != "two" {
		t.Errorf("actions = %q, %q", records[0].Action, records[1].Action)
	}
	if records[0].SessionID != session.ID {
		t.Errorf("session = %q, want %q", records[0].SessionID, session.ID)
	}

	// Records() returns a copy.
	records[0].Action = "mutated"
	if logger.Records()[0].Action != "one" {
		t.Error("mutating the returned slice changed the logger's state")
	}
}

func TestNoopLogger(t *testing.T) {
	logger := NoopLogger()
	if err := logger.Log(context.Background(), "anything", nil); err != nil {
		t.Errorf("NoopLogger.Log() error: %v", err)
	}
	if logger.Session() == nil {
		t.Error("NoopLogger has no session")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NoopLogger.Close() error: %v", err)
	}
}
