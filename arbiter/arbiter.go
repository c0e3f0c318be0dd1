package arbiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tailored-agentic-units/relay/event"
	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/prompt"
)

// Arbiter event types emitted to the configured observer.
const (
	EventPromptEnqueued observability.EventType = "arbiter.prompt.enqueued"
	EventPromptResolved observability.EventType = "arbiter.prompt.resolved"
	EventPromptsSwept   observability.EventType = "arbiter.prompts.swept"
	EventStaleResponse  observability.EventType = "arbiter.response.stale"
	EventSessionCleared observability.EventType = "arbiter.session.cleared"
)

// Publisher pushes prompt lifecycle events to a session's subscribers. The
// mux satisfies it; a nil publisher leaves prompts visible only via Peek.
type Publisher interface {
	Publish(sessionID string, p event.Payload) (*event.Envelope, error)
}

// Arbiter serializes competing requests for human attention. Each session
// holds an ordered pending list whose head, after a stable sort by variant
// priority, is the one active prompt, plus a resolver table correlating
// prompt ids with the channels their enqueuers suspend on.
type Arbiter struct {
	sessions map[string]*promptQueue
	mu       sync.RWMutex

	publisher Publisher
	logger    *slog.Logger
	observer  observability.Observer
	metrics   *Metrics

	ctx context.Context
}

// New creates an Arbiter from cfg, typically DefaultConfig with overrides.
func New(ctx context.Context, cfg Config) *Arbiter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = observability.NoOpObserver{}
	}

	return &Arbiter{
		sessions:  make(map[string]*promptQueue),
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
		metrics:   NewMetrics(),
		ctx:       ctx,
	}
}

// Enqueue adds a prompt for sessionID and returns the channel its caller
// suspends on. The channel receives exactly one response, delivered by
// Resolve or a denial sweep; there is no timeout. The prompt's request is
// pushed to subscribers only when it lands at the head of the queue;
// otherwise it waits, invisible to clients, behind higher-priority work.
func (a *Arbiter) Enqueue(sessionID string, d prompt.Detail) (*prompt.Prompt, <-chan prompt.Response, error) {
	p, err := prompt.New(sessionID, d)
	if err != nil {
		return nil, nil, err
	}

	q := a.acquire(sessionID)

	ch := make(chan prompt.Response, 1)
	q.resolvers[p.ID] = ch
	q.pending = append(q.pending, p)
	q.sortLocked()

	activated := q.pending[0] == p
	if activated {
		a.push(sessionID, event.PromptRequest(p))
	}
	depth := len(q.pending)
	q.mu.Unlock()

	a.metrics.RecordEnqueued(1)
	a.logger.DebugContext(
		a.ctx,
		"prompt enqueued",
		slog.String("session_id", sessionID),
		slog.String("prompt_id", p.ID),
		slog.String("kind", string(p.Kind())),
		slog.Bool("activated", activated),
		slog.Int("pending", depth),
	)
	a.observer.OnEvent(a.ctx, observability.Event{
		Type:      EventPromptEnqueued,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "arbiter.Enqueue",
		Data: map[string]any{
			"session_id": sessionID,
			"prompt_id":  p.ID,
			"kind":       string(p.Kind()),
			"activated":  activated,
		},
	})

	return p, ch, nil
}

// Resolve delivers r to the caller suspended on promptID and advances the
// queue: the resolved event goes to every subscriber so other tabs dismiss
// their dialog, and when the head changed the next prompt's request is
// pushed. A missing resolver is expected when a duplicate or stale tab
// answers an already-resolved prompt; it is logged and ignored, as is a
// response whose variant does not match the prompt's. A missing session
// returns ErrSessionNotFound. The resolver entry is removed before the
// send, so a Resolve racing a sweep delivers at most once.
func (a *Arbiter) Resolve(sessionID, promptID string, r prompt.Response) error {
	if r == nil {
		return errors.New("prompt response is required")
	}

	q, ok := a.lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	ch, ok := q.resolvers[promptID]
	if !ok {
		q.mu.Unlock()
		a.recordStale(sessionID, promptID, "no resolver for prompt id")
		return nil
	}
	if p, found := q.findLocked(promptID); found && p.Kind() != r.Kind() {
		q.mu.Unlock()
		a.recordStale(sessionID, promptID, "response variant does not match prompt")
		return nil
	}

	prevHead, _ := q.headLocked()
	delete(q.resolvers, promptID)
	q.removeLocked(promptID)
	ch <- r

	a.push(sessionID, event.PromptResolved(r.Kind(), promptID))
	if head, live := q.headLocked(); live && head != prevHead {
		a.push(sessionID, event.PromptRequest(head))
	}
	q.mu.Unlock()

	a.metrics.RecordResolved(1)
	a.logger.DebugContext(
		a.ctx,
		"prompt resolved",
		slog.String("session_id", sessionID),
		slog.String("prompt_id", promptID),
		slog.String("kind", string(r.Kind())),
	)
	a.observer.OnEvent(a.ctx, observability.Event{
		Type:      EventPromptResolved,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "arbiter.Resolve",
		Data: map[string]any{
			"session_id": sessionID,
			"prompt_id":  promptID,
			"kind":       string(r.Kind()),
		},
	})

	return nil
}

// Peek returns the session's active prompt without mutating state. A
// freshly attached connection uses it to render consistent dialog state.
func (a *Arbiter) Peek(sessionID string) (*prompt.Prompt, bool) {
	q, ok := a.lookup(sessionID)
	if !ok {
		return nil, false
	}
	defer q.mu.Unlock()

	return q.headLocked()
}

// DenyAll force-resolves every pending prompt with a variant-appropriate
// denial and empties the queue. The session stays alive and accepts new
// prompts afterward; interrupts use this. Returns the number swept.
func (a *Arbiter) DenyAll(sessionID, reason string) int {
	q, ok := a.lookup(sessionID)
	if !ok {
		return 0
	}

	swept := q.sweepLocked(reason)
	for _, p := range swept {
		a.push(sessionID, event.PromptResolved(p.Kind(), p.ID))
	}
	q.mu.Unlock()

	if len(swept) == 0 {
		return 0
	}

	a.metrics.RecordDenied(len(swept))
	a.logger.InfoContext(
		a.ctx,
		"pending prompts denied",
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
		slog.Int("swept", len(swept)),
	)
	a.observer.OnEvent(a.ctx, observability.Event{
		Type:      EventPromptsSwept,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "arbiter.DenyAll",
		Data: map[string]any{
			"session_id": sessionID,
			"reason":     reason,
			"swept":      len(swept),
		},
	})

	return len(swept)
}

// ClearSession sweeps the session like DenyAll and then deletes its state
// entirely, unblocking every outstanding Enqueue caller exactly once.
// Idempotent; used at session end. A later Enqueue for the same id
// recreates the session.
func (a *Arbiter) ClearSession(sessionID string) {
	a.mu.Lock()
	q, ok := a.sessions[sessionID]
	if ok {
		delete(a.sessions, sessionID)
	}
	a.mu.Unlock()

	if !ok {
		return
	}

	q.mu.Lock()
	q.cleared = true
	swept := q.sweepLocked("session ended")
	for _, p := range swept {
		a.push(sessionID, event.PromptResolved(p.Kind(), p.ID))
	}
	q.mu.Unlock()

	a.metrics.RecordSession(-1)
	if len(swept) > 0 {
		a.metrics.RecordDenied(len(swept))
	}
	a.logger.InfoContext(
		a.ctx,
		"session prompt state cleared",
		slog.String("session_id", sessionID),
		slog.Int("swept", len(swept)),
	)
	a.observer.OnEvent(a.ctx, observability.Event{
		Type:      EventSessionCleared,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "arbiter.ClearSession",
		Data: map[string]any{
			"session_id": sessionID,
			"swept":      len(swept),
		},
	})
}

// Metrics returns a snapshot of the arbiter counters.
func (a *Arbiter) Metrics() MetricsSnapshot {
	return a.metrics.Snapshot()
}

// acquire returns the queue for sessionID with its lock held, creating it
// if needed. A queue observed mid-clear is retried against the registry so
// the caller never lands a prompt in dead state.
func (a *Arbiter) acquire(sessionID string) *promptQueue {
	for {
		q := a.getOrCreate(sessionID)
		q.mu.Lock()
		if !q.cleared {
			return q
		}
		q.mu.Unlock()
	}
}

// lookup returns the queue for sessionID with its lock held, without
// creating it.
func (a *Arbiter) lookup(sessionID string) (*promptQueue, bool) {
	a.mu.RLock()
	q, ok := a.sessions[sessionID]
	a.mu.RUnlock()

	if !ok {
		return nil, false
	}

	q.mu.Lock()
	if q.cleared {
		q.mu.Unlock()
		return nil, false
	}
	return q, true
}

func (a *Arbiter) getOrCreate(sessionID string) *promptQueue {
	a.mu.RLock()
	q, ok := a.sessions[sessionID]
	a.mu.RUnlock()
	if ok {
		return q
	}

	a.mu.Lock()
	if existing, ok := a.sessions[sessionID]; ok {
		a.mu.Unlock()
		return existing
	}
	q = newPromptQueue(sessionID)
	a.sessions[sessionID] = q
	a.mu.Unlock()

	a.metrics.RecordSession(1)
	a.logger.DebugContext(
		a.ctx,
		"session prompt state created",
		slog.String("session_id", sessionID),
	)

	return q
}

// push publishes a prompt lifecycle payload for the session. Activation
// order matters, so callers invoke it while holding the queue lock; the
// publish itself performs no blocking I/O. Zero subscribers is not an
// error, and neither is a missing publisher.
func (a *Arbiter) push(sessionID string, p event.Payload) {
	if a.publisher == nil || p == nil {
		return
	}
	if _, err := a.publisher.Publish(sessionID, p); err != nil {
		a.logger.WarnContext(
			a.ctx,
			"prompt event publish failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (a *Arbiter) recordStale(sessionID, promptID, reason string) {
	a.metrics.RecordStale(1)
	a.logger.WarnContext(
		a.ctx,
		"stale prompt response ignored",
		slog.String("session_id", sessionID),
		slog.String("prompt_id", promptID),
		slog.String("reason", reason),
	)
	a.observer.OnEvent(a.ctx, observability.Event{
		Type:      EventStaleResponse,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "arbiter.Resolve",
		Data: map[string]any{
			"session_id": sessionID,
			"prompt_id":  promptID,
			"reason":     reason,
		},
	})
}
