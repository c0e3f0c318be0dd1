package mux

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tailored-agentic-units/relay/event"
	"github.com/tailored-agentic-units/relay/observability"
)

// Mux event types emitted to the configured observer.
const (
	EventSessionCreated  observability.EventType = "mux.session.created"
	EventSessionTornDown observability.EventType = "mux.session.torn_down"
	EventSubscribed      observability.EventType = "mux.subscriber.added"
	EventUnsubscribed    observability.EventType = "mux.subscriber.removed"
	EventEnvelopeDropped observability.EventType = "mux.envelope.dropped"
	EventReplayServed    observability.EventType = "mux.replay.served"
)

// SessionInfo is a point-in-time view of one session, served to heartbeat
// probes and the admin API.
type SessionInfo struct {
	SessionID   string    `json:"session_id"`
	Subscribers int       `json:"subscribers"`
	Buffered    int       `json:"buffered"`
	MaxSeq      uint64    `json:"max_seq"`
	StartedAt   time.Time `json:"started_at"`
}

// Mux maps connections to sessions and gives every session a single ordered
// event stream regardless of how many connections are attached. It owns each
// session's replay buffer; nothing else writes to one.
type Mux struct {
	sessions map[string]*session
	mu       sync.RWMutex

	replayCapacity int
	sendBufferSize int

	logger   *slog.Logger
	observer observability.Observer
	metrics  *Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Mux from cfg, typically DefaultConfig with overrides.
func New(ctx context.Context, cfg Config) *Mux {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultSendBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = observability.NoOpObserver{}
	}

	muxCtx, cancel := context.WithCancel(ctx)
	return &Mux{
		sessions:       make(map[string]*session),
		replayCapacity: cfg.ReplayCapacity,
		sendBufferSize: cfg.SendBufferSize,
		logger:         cfg.Logger,
		observer:       cfg.Observer,
		metrics:        NewMetrics(),
		ctx:            muxCtx,
		cancel:         cancel,
	}
}

// Subscribe adds the connection to the session's delivery set, creating the
// session if needed. Subscribing twice with the same ids returns the
// existing subscription.
func (m *Mux) Subscribe(sessionID, connID string) (*Subscription, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if connID == "" {
		return nil, errors.New("conn id is required")
	}
	if m.ctx.Err() != nil {
		return nil, ErrMuxClosed
	}

	s := m.acquire(sessionID)
	sub, created := m.attachLocked(s, connID)
	s.mu.Unlock()

	if created {
		m.logger.DebugContext(
			m.ctx,
			"connection subscribed",
			slog.String("session_id", sessionID),
			slog.String("conn_id", connID),
		)
		m.observer.OnEvent(m.ctx, observability.Event{
			Type:      EventSubscribed,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    "mux.Subscribe",
			Data: map[string]any{
				"session_id": sessionID,
				"conn_id":    connID,
			},
		})
	}

	return sub, nil
}

// Unsubscribe removes the connection from the session's delivery set and
// closes its subscription. It is a no-op for unknown sessions or
// connections; the buffer and the session's liveness are unaffected.
func (m *Mux) Unsubscribe(sessionID, connID string) {
	s, ok := m.lookup(sessionID)
	if !ok {
		return
	}

	sub, exists := s.subs[connID]
	if exists {
		delete(s.subs, connID)
		sub.channel.Close()
	}
	s.mu.Unlock()

	if !exists {
		return
	}

	m.metrics.RecordSubscriber(-1)
	m.logger.DebugContext(
		m.ctx,
		"connection unsubscribed",
		slog.String("session_id", sessionID),
		slog.String("conn_id", connID),
	)
	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventUnsubscribed,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "mux.Unsubscribe",
		Data: map[string]any{
			"session_id": sessionID,
			"conn_id":    connID,
		},
	})
}

// Publish appends the event to the session's replay buffer, evicting the
// oldest entry at capacity, and fans it out to every subscriber. All
// subscribers of a session observe the same relative order. The session is
// created on first publish; zero subscribers is not an error.
func (m *Mux) Publish(sessionID string, p event.Payload) (*event.Envelope, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if p == nil {
		return nil, errors.New("event payload is required")
	}
	if m.ctx.Err() != nil {
		return nil, ErrMuxClosed
	}

	s := m.acquire(sessionID)

	s.seq++
	env := event.NewEnvelope(sessionID, s.seq, p)
	s.buffer.Append(env)

	delivered := 0
	for _, sub := range s.subs {
		if m.deliver(sub, env) {
			delivered++
		}
	}
	subscribers := len(s.subs)
	s.mu.Unlock()

	m.metrics.RecordPublished(1)
	m.metrics.RecordDelivered(delivered)
	m.logger.DebugContext(
		m.ctx,
		"event published",
		slog.String("session_id", sessionID),
		slog.String("event_type", string(env.Type)),
		slog.Int("subscribers", subscribers),
		slog.Int("delivered", delivered),
	)

	return env, nil
}

// ReconnectAndReplay subscribes the connection and returns the replay
// snapshot: every buffered envelope, or only those strictly newer than
// lastSeen when it is non-zero, in original order. The transport writes the
// snapshot before draining the subscription, so envelopes published during
// the handoff stay ordered behind it. Unknown sessions return
// ErrSessionNotFound so a torn-down session surfaces as ended instead of
// silently respawning.
func (m *Mux) ReconnectAndReplay(sessionID, connID string, lastSeen time.Time) (*Subscription, []*event.Envelope, error) {
	if connID == "" {
		return nil, nil, errors.New("conn id is required")
	}

	s, ok := m.lookup(sessionID)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	sub, _ := m.attachLocked(s, connID)
	snapshot := s.buffer.Since(lastSeen)
	s.mu.Unlock()

	m.metrics.RecordReplay(len(snapshot))
	m.logger.InfoContext(
		m.ctx,
		"replay served",
		slog.String("session_id", sessionID),
		slog.String("conn_id", connID),
		slog.Int("events", len(snapshot)),
	)
	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventReplayServed,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "mux.ReconnectAndReplay",
		Data: map[string]any{
			"session_id": sessionID,
			"conn_id":    connID,
			"events":     len(snapshot),
		},
	})

	return sub, snapshot, nil
}

// Heartbeat reports liveness for the session. It returns ErrSessionNotFound
// once the session has been torn down or never existed.
func (m *Mux) Heartbeat(sessionID string) (SessionInfo, error) {
	s, ok := m.lookup(sessionID)
	if !ok {
		return SessionInfo{}, ErrSessionNotFound
	}
	defer s.mu.Unlock()

	return s.infoLocked(), nil
}

// Sessions lists every live session, sorted by id.
func (m *Mux) Sessions() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		if !s.torn {
			infos = append(infos, s.infoLocked())
		}
		s.mu.Unlock()
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].SessionID < infos[j].SessionID
	})
	return infos
}

// Teardown discards the session's buffer and closes every subscription.
// Idempotent; unknown sessions are a no-op.
func (m *Mux) Teardown(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	s.mu.Lock()
	s.torn = true
	subscribers := len(s.subs)
	for connID, sub := range s.subs {
		delete(s.subs, connID)
		sub.channel.Close()
	}
	s.mu.Unlock()

	m.metrics.RecordSubscriber(-subscribers)
	m.metrics.RecordSession(-1)
	m.logger.InfoContext(
		m.ctx,
		"session torn down",
		slog.String("session_id", sessionID),
		slog.Int("subscribers", subscribers),
	)
	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventSessionTornDown,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "mux.Teardown",
		Data: map[string]any{
			"session_id":  sessionID,
			"subscribers": subscribers,
		},
	})
}

// Metrics returns a snapshot of the mux counters.
func (m *Mux) Metrics() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// Close tears down every session and stops the mux. Safe to call more than
// once.
func (m *Mux) Close() {
	m.cancel()

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Teardown(id)
	}
}

// acquire returns the session for sessionID with its lock held, creating it
// if needed. A session observed mid-teardown is retried against the
// registry so the caller never mutates a dead session.
func (m *Mux) acquire(sessionID string) *session {
	for {
		s := m.getOrCreate(sessionID)
		s.mu.Lock()
		if !s.torn {
			return s
		}
		s.mu.Unlock()
	}
}

// lookup returns the session for sessionID with its lock held, without
// creating it.
func (m *Mux) lookup(sessionID string) (*session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}

	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return nil, false
	}
	return s, true
}

func (m *Mux) getOrCreate(sessionID string) *session {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return existing
	}
	s = newSession(sessionID, m.replayCapacity)
	m.sessions[sessionID] = s
	m.mu.Unlock()

	m.metrics.RecordSession(1)
	m.logger.DebugContext(
		m.ctx,
		"session created",
		slog.String("session_id", sessionID),
	)
	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventSessionCreated,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "mux.getOrCreate",
		Data: map[string]any{
			"session_id": sessionID,
		},
	})

	return s
}

// attachLocked returns the existing subscription for connID or creates one.
// Callers hold s.mu.
func (m *Mux) attachLocked(s *session, connID string) (*Subscription, bool) {
	if sub, exists := s.subs[connID]; exists {
		return sub, false
	}

	sub := &Subscription{
		sessionID: s.id,
		connID:    connID,
		channel:   NewMessageChannel[*event.Envelope](m.ctx, m.sendBufferSize),
	}
	s.subs[connID] = sub
	m.metrics.RecordSubscriber(1)
	return sub, true
}

// deliver queues env for one subscriber without blocking. When the
// subscriber's buffer is full, the oldest queued envelope is dropped to
// admit the newest.
func (m *Mux) deliver(sub *Subscription, env *event.Envelope) bool {
	if sub.channel.TrySend(env) {
		return true
	}

	if _, ok := sub.channel.TryReceive(); ok {
		m.metrics.RecordDropped(1)
		m.logger.WarnContext(
			m.ctx,
			"subscriber buffer full, dropped oldest envelope",
			slog.String("session_id", sub.sessionID),
			slog.String("conn_id", sub.connID),
			slog.Int("queued", sub.channel.QueueLength()),
			slog.Int("capacity", sub.channel.BufferSize()),
		)
		m.observer.OnEvent(m.ctx, observability.Event{
			Type:      EventEnvelopeDropped,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "mux.deliver",
			Data: map[string]any{
				"session_id": sub.sessionID,
				"conn_id":    sub.connID,
			},
		})
	}

	return sub.channel.TrySend(env)
}
