package arbiter

import "sync/atomic"

// MetricsSnapshot is a point-in-time copy of the arbiter counters.
type MetricsSnapshot struct {
	ActiveSessions  int64 `json:"active_sessions"`
	PromptsEnqueued int64 `json:"prompts_enqueued"`
	PromptsResolved int64 `json:"prompts_resolved"`
	PromptsDenied   int64 `json:"prompts_denied"`
	StaleResponses  int64 `json:"stale_responses"`
}

// Metrics tracks arbiter operations with atomic counters.
type Metrics struct {
	activeSessions  atomic.Int64
	promptsEnqueued atomic.Int64
	promptsResolved atomic.Int64
	promptsDenied   atomic.Int64
	staleResponses  atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordSession(delta int) {
	m.activeSessions.Add(int64(delta))
}

func (m *Metrics) RecordEnqueued(delta int) {
	m.promptsEnqueued.Add(int64(delta))
}

func (m *Metrics) RecordResolved(delta int) {
	m.promptsResolved.Add(int64(delta))
}

func (m *Metrics) RecordDenied(delta int) {
	m.promptsDenied.Add(int64(delta))
}

func (m *Metrics) RecordStale(delta int) {
	m.staleResponses.Add(int64(delta))
}

// Snapshot returns a consistent copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ActiveSessions:  m.activeSessions.Load(),
		PromptsEnqueued: m.promptsEnqueued.Load(),
		PromptsResolved: m.promptsResolved.Load(),
		PromptsDenied:   m.promptsDenied.Load(),
		StaleResponses:  m.staleResponses.Load(),
	}
}
