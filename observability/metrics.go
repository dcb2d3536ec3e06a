package observability

import (
	"sync"
	"time"
)

// Metrics aggregates execution statistics in-process, independent of any
// metrics backend. It is safe for concurrent use.
type Metrics struct {
	total       int64
	succeeded   int64
	failed      int64
	timedOut    int64
	denied      int64
	rateLimited int64
	binaryStats map[string]*BinaryStats
	mu          sync.Mutex
}

// BinaryStats contains per-binary statistics.
type BinaryStats struct {
	Binary        string
	Executions    int64
	Failures      int64
	TotalDuration time.Duration
	LastStatus    string
	LastExecution time.Time
}

// NewMetrics creates an empty metrics aggregate.
func NewMetrics() *Metrics {
	return &Metrics{
		binaryStats: make(map[string]*BinaryStats),
	}
}

// RecordExecution records one execution outcome.
func (m *Metrics) RecordExecution(binary, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	switch status {
	case "success":
		m.succeeded++
	case "timeout":
		m.timedOut++
		m.failed++
	case "not_allowed":
		m.denied++
		m.failed++
	case "rate_limited":
		m.rateLimited++
		m.failed++
	default:
		m.failed++
	}

	stats, ok := m.binaryStats[binary]
	if !ok {
		stats = &BinaryStats{Binary: binary}
		m.binaryStats[binary] = stats
	}
	stats.Executions++
	if status != "success" {
		stats.Failures++
	}
	stats.TotalDuration += duration
	stats.LastStatus = status
	stats.LastExecution = time.Now()
}

// Snapshot is a point-in-time copy of the aggregate counters.
type Snapshot struct {
	Total       int64
	Succeeded   int64
	Failed      int64
	TimedOut    int64
	Denied      int64
	RateLimited int64
	PerBinary   map[string]BinaryStats
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Total:       m.total,
		Succeeded:   m.succeeded,
		Failed:      m.failed,
		TimedOut:    m.timedOut,
		Denied:      m.denied,
		RateLimited: m.rateLimited,
		PerBinary:   make(map[string]BinaryStats, len(m.binaryStats)),
	}
	for binary, stats := range m.binaryStats {
		snap.PerBinary[binary] = *stats
	}
	return snap
}
