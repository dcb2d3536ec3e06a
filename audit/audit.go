// Package audit provides append-only structured audit logging.
//
// Every record is one self-contained JSON object per line, carrying the
// session identifier of the process run that produced it. Records are never
// mutated or deleted by this module; write failures always surface to the
// caller so it can decide whether the triggering operation should abort.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/victoralfred/gowritter/safepath"

	"github.com/tanwiraasif/secure-automation-framework/secrets"
)

// ErrWrite indicates the audit sink could not be written.
var ErrWrite = errors.New("audit write failed")

// Session identifies one process run. All records logged through loggers
// built on the same Session share its ID, so a reader can correlate every
// action of a run. Sessions are immutable.
type Session struct {
	// ID is an opaque unique identifier.
	ID string

	// CreatedAt is the UTC creation time.
	CreatedAt time.Time
}

// NewSession creates a session with a fresh unique ID.
// Sessions are explicit values rather than process-global state, so tests
// can run several independent sessions in one process.
func NewSession() *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
}

// Record is one audit log entry.
type Record struct {
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	SessionID string         `json:"session_id"`

	// PrevHash chains this record to the previous one when hash chaining
	// is enabled, making silent tampering or truncation detectable.
	PrevHash string `json:"prev_hash,omitempty"`
}

// Logger appends audit records to a sink.
type Logger interface {
	// Log appends one record for the given action. Details values must be
	// JSON-encodable primitives.
	Log(ctx context.Context, action string, details map[string]any) error

	// Session returns the session this logger records under.
	Session() *Session

	// Close releases the sink.
	Close() error
}

// Config configures the file-backed logger.
type Config struct {
	// BasePath is the directory confining all sink I/O.
	BasePath string

	// FilePath is the sink file, relative to BasePath.
	FilePath string

	// ChainHashes links each record to the SHA-256 of the previous line.
	ChainHashes bool

	// Enabled turns logging on. A disabled logger drops records silently;
	// it exists for tests and development presets, never production.
	Enabled bool
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	return Config{
		BasePath:    "/var/log",
		FilePath:    "secure-automation/audit.log",
		ChainHashes: false,
		Enabled:     true,
	}
}

// fileLogger appends JSONL records to a file confined under a base path.
type fileLogger struct {
	session  *Session
	safePath *safepath.SafePath
	config   Config
	lastHash string
	mu       sync.Mutex
}

// NewFileLogger creates a file-backed audit logger for the session.
func NewFileLogger(session *Session, config Config) (Logger, error) {
	sp, err := safepath.New(config.BasePath)
	if err != nil {
		return nil, fmt.Errorf("creating safe path: %w", err)
	}

	return &fileLogger{
		session:  session,
		safePath: sp,
		config:   config,
	}, nil
}

// Log implements Logger.Log.
func (l *fileLogger) Log(ctx context.Context, action string, details map[string]any) error {
	if !l.config.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record := Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Action:    action,
		Details:   details,
		SessionID: l.session.ID,
	}
	if l.config.ChainHashes {
		record.PrevHash = l.lastHash
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshaling record: %v", ErrWrite, err)
	}
	line := append(data, '\n')

	// One AppendFile call per record: a reader never observes a partial
	// entry under the single-writer model.
	if err := l.safePath.AppendFile(l.config.FilePath, line, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if l.config.ChainHashes {
		l.lastHash = secrets.HashBytes(data)
	}

	return nil
}

// Session implements Logger.Session.
func (l *fileLogger) Session() *Session {
	return l.session
}

// Close implements Logger.Close.
func (l *fileLogger) Close() error {
	return nil
}

// MemoryLogger collects records in memory. It is intended for tests and for
// the top-level demo's summary output.
type MemoryLogger struct {
	session *Session
	records []Record
	mu      sync.Mutex
}

// NewMemoryLogger creates an in-memory audit logger for the session.
func NewMemoryLogger(session *Session) *MemoryLogger {
	return &MemoryLogger{session: session}
}

// Log implements Logger.Log.
func (l *MemoryLogger) Log(ctx context.Context, action string, details map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Action:    action,
		Details:   details,
		SessionID: l.session.ID,
	})
	return nil
}

// Session implements Logger.Session.
func (l *MemoryLogger) Session() *Session {
	return l.session
}

// Close implements Logger.Close.
func (l *MemoryLogger) Close() error {
	return nil
}

// Records returns a copy of everything logged so far.
func (l *MemoryLogger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// NoopLogger returns a logger that discards everything.
func NoopLogger() Logger {
	return &noopLogger{session: NewSession()}
}

type noopLogger struct {
	session *Session
}

func (l *noopLogger) Log(ctx context.Context, action string, details map[string]any) error {
	return nil
}
func (l *noopLogger) Session() *Session { return l.session }
func (l *noopLogger) Close() error      { return nil }
