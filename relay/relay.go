// Package relay composes the prompt arbiter and the transport mux into the
// session relay service: a subprocess supervisor enqueues prompts and
// publishes events in-process, browser connections attach over the
// transport, and both sides meet in one ordered per-session stream.
//
// The relay initializes from configuration via New, creating the arbiter
// and mux internally. Functional options allow overrides.
//
//	cfg := relay.DefaultConfig()
//	r, err := relay.New(&cfg)
//	p, answer, err := r.EnqueuePermission("session-1", prompt.Permission{ToolName: "bash"})
//	resp := <-answer
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tailored-agentic-units/relay/arbiter"
	"github.com/tailored-agentic-units/relay/event"
	"github.com/tailored-agentic-units/relay/mux"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/prompt"
)

// SessionStatus is one session's liveness view enriched with its prompt
// state, served to heartbeat probes and the admin API.
type SessionStatus struct {
	mux.SessionInfo
	Prompting  bool   `json:"prompting"`
	PromptKind string `json:"prompt_kind,omitempty"`
}

// MetricsSnapshot combines the counters of both halves of the relay.
type MetricsSnapshot struct {
	Arbiter arbiter.MetricsSnapshot `json:"arbiter"`
	Mux     mux.MetricsSnapshot     `json:"mux"`
}

// Option configures a Relay before its subsystems are constructed.
type Option func(*Relay)

// WithLogger overrides the default process logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithObserver overrides the config-resolved observer.
func WithObserver(o observability.Observer) Option {
	return func(r *Relay) { r.observer = o }
}

// Relay is the session relay service.
type Relay struct {
	arbiter *arbiter.Arbiter
	mux     *mux.Mux

	logger   *slog.Logger
	observer observability.Observer

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// New creates a Relay from configuration. The arbiter and mux are wired
// internally: prompt lifecycle events publish through the mux, so every
// attached connection sees activations and dismissals. Functional options
// applied before construction can override the logger and observer.
func New(cfg *Config, opts ...Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	r := &Relay{
		logger:   slog.Default(),
		observer: observer,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())

	muxCfg := mux.DefaultConfig()
	muxCfg.ReplayCapacity = cfg.ReplayCapacity
	muxCfg.SendBufferSize = cfg.SendBufferSize
	muxCfg.Logger = r.logger
	muxCfg.Observer = r.observer
	r.mux = mux.New(r.ctx, muxCfg)

	arbCfg := arbiter.DefaultConfig()
	arbCfg.Publisher = r.mux
	arbCfg.Logger = r.logger
	arbCfg.Observer = r.observer
	r.arbiter = arbiter.New(r.ctx, arbCfg)

	return r, nil
}

// EnqueuePermission asks the session's human to allow or deny a tool
// invocation. The returned channel receives exactly one response.
func (r *Relay) EnqueuePermission(sessionID string, d prompt.Permission) (*prompt.Prompt, <-chan prompt.Response, error) {
	return r.arbiter.Enqueue(sessionID, d)
}

// EnqueueQuestion asks the session's human an ordered list of questions.
func (r *Relay) EnqueueQuestion(sessionID string, d prompt.UserQuestion) (*prompt.Prompt, <-chan prompt.Response, error) {
	return r.arbiter.Enqueue(sessionID, d)
}

// EnqueuePlanApproval asks the session's human to accept or reject a plan.
func (r *Relay) EnqueuePlanApproval(sessionID string, d prompt.PlanApproval) (*prompt.Prompt, <-chan prompt.Response, error) {
	return r.arbiter.Enqueue(sessionID, d)
}

// EnqueueCommitApproval asks the session's human to approve a commit.
func (r *Relay) EnqueueCommitApproval(sessionID string, d prompt.CommitApproval) (*prompt.Prompt, <-chan prompt.Response, error) {
	return r.arbiter.Enqueue(sessionID, d)
}

// Publish appends an event to the session's stream and fans it out.
func (r *Relay) Publish(sessionID string, p event.Payload) (*event.Envelope, error) {
	return r.mux.Publish(sessionID, p)
}

// Resolve delivers a human response for the named prompt. Stale prompt ids
// are ignored; an unknown session returns ErrSessionNotFound.
func (r *Relay) Resolve(sessionID, promptID string, resp prompt.Response) error {
	if err := r.arbiter.Resolve(sessionID, promptID, resp); err != nil {
		if errors.Is(err, arbiter.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// ActivePrompt returns the session's current active prompt, if any.
func (r *Relay) ActivePrompt(sessionID string) (*prompt.Prompt, bool) {
	return r.arbiter.Peek(sessionID)
}

// Subscribe attaches a connection to the session's stream.
func (r *Relay) Subscribe(sessionID, connID string) (*mux.Subscription, error) {
	return r.mux.Subscribe(sessionID, connID)
}

// Unsubscribe detaches a connection; the session keeps running.
func (r *Relay) Unsubscribe(sessionID, connID string) {
	r.mux.Unsubscribe(sessionID, connID)
}

// Reconnect attaches the connection and returns the catch-up sequence the
// transport writes before draining the subscription: the buffered envelopes
// (all, or only those strictly newer than lastSeen when non-zero), a
// replay_done marker carrying the count, and finally the active prompt's
// request again so the client's dialog state matches the server's. The
// marker and the re-push are direct envelopes with no sequence number.
func (r *Relay) Reconnect(sessionID, connID string, lastSeen time.Time) (*mux.Subscription, []*event.Envelope, error) {
	sub, snapshot, err := r.mux.ReconnectAndReplay(sessionID, connID, lastSeen)
	if err != nil {
		if errors.Is(err, mux.ErrSessionNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	out := make([]*event.Envelope, 0, len(snapshot)+2)
	out = append(out, snapshot...)
	out = append(out, event.NewEnvelope(sessionID, 0, event.ReplayDone{Count: len(snapshot)}))
	if p, ok := r.arbiter.Peek(sessionID); ok {
		out = append(out, event.NewEnvelope(sessionID, 0, event.PromptRequest(p)))
	}

	return sub, out, nil
}

// Heartbeat reports liveness and prompt state for the session, or
// ErrSessionNotFound once it has been torn down.
func (r *Relay) Heartbeat(sessionID string) (SessionStatus, error) {
	info, err := r.mux.Heartbeat(sessionID)
	if err != nil {
		if errors.Is(err, mux.ErrSessionNotFound) {
			return SessionStatus{}, ErrSessionNotFound
		}
		return SessionStatus{}, err
	}

	return r.status(info), nil
}

// Sessions lists every live session with its prompt state, sorted by id.
func (r *Relay) Sessions() []SessionStatus {
	infos := r.mux.Sessions()
	statuses := make([]SessionStatus, 0, len(infos))
	for _, info := range infos {
		statuses = append(statuses, r.status(info))
	}
	return statuses
}

// Interrupt force-denies every pending prompt for the session and keeps it
// alive, mirroring the user pressing stop mid-run. Returns the number of
// prompts swept.
func (r *Relay) Interrupt(sessionID string) int {
	swept := r.arbiter.DenyAll(sessionID, "interrupted")

	r.observer.OnEvent(r.ctx, observability.Event{
		Type:      EventSessionInterrupted,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "relay.Interrupt",
		Data: map[string]any{
			"session_id": sessionID,
			"swept":      swept,
		},
	})

	return swept
}

// EndSession clears the session's prompt state, unblocking every suspended
// enqueue caller exactly once, and tears down its buffer and
// subscriptions. Idempotent.
func (r *Relay) EndSession(sessionID string) {
	r.arbiter.ClearSession(sessionID)
	r.mux.Teardown(sessionID)

	r.observer.OnEvent(r.ctx, observability.Event{
		Type:      EventSessionEnded,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "relay.EndSession",
		Data: map[string]any{
			"session_id": sessionID,
		},
	})
}

// Metrics returns a combined snapshot of the relay counters.
func (r *Relay) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Arbiter: r.arbiter.Metrics(),
		Mux:     r.mux.Metrics(),
	}
}

// Close ends every live session so no supervisor caller hangs at exit,
// then stops the mux. Safe to call more than once.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		for _, status := range r.Sessions() {
			r.EndSession(status.SessionID)
		}
		r.mux.Close()

		r.logger.InfoContext(r.ctx, "relay closed")
		r.observer.OnEvent(r.ctx, observability.Event{
			Type:      EventClosed,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "relay.Close",
			Data:      map[string]any{},
		})

		r.cancel()
	})
}

func (r *Relay) status(info mux.SessionInfo) SessionStatus {
	status := SessionStatus{SessionInfo: info}
	if p, ok := r.arbiter.Peek(info.SessionID); ok {
		status.Prompting = true
		status.PromptKind = string(p.Kind())
	}
	return status
}
