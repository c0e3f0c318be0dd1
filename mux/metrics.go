package mux

import "sync/atomic"

type MetricsSnapshot struct {
	ActiveSessions  int64 `json:"active_sessions"`
	Subscribers     int64 `json:"subscribers"`
	EventsPublished int64 `json:"events_published"`
	EventsDelivered int64 `json:"events_delivered"`
	EventsDropped   int64 `json:"events_dropped"`
	ReplaysServed   int64 `json:"replays_served"`
	EventsReplayed  int64 `json:"events_replayed"`
}

type Metrics struct {
	activeSessions  atomic.Int64
	subscribers     atomic.Int64
	eventsPublished atomic.Int64
	eventsDelivered atomic.Int64
	eventsDropped   atomic.Int64
	replaysServed   atomic.Int64
	eventsReplayed  atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordSession(delta int) {
	m.activeSessions.Add(int64(delta))
}

func (m *Metrics) RecordSubscriber(delta int) {
	m.subscribers.Add(int64(delta))
}

func (m *Metrics) RecordPublished(delta int) {
	m.eventsPublished.Add(int64(delta))
}

func (m *Metrics) RecordDelivered(delta int) {
	m.eventsDelivered.Add(int64(delta))
}

func (m *Metrics) RecordDropped(delta int) {
	m.eventsDropped.Add(int64(delta))
}

func (m *Metrics) RecordReplay(events int) {
	m.replaysServed.Add(1)
	m.eventsReplayed.Add(int64(events))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ActiveSessions:  m.activeSessions.Load(),
		Subscribers:     m.subscribers.Load(),
		EventsPublished: m.eventsPublished.Load(),
		EventsDelivered: m.eventsDelivered.Load(),
		EventsDropped:   m.eventsDropped.Load(),
		ReplaysServed:   m.replaysServed.Load(),
		EventsReplayed:  m.eventsReplayed.Load(),
	}
}
