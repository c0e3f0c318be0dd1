package mux

import (
	"sync"
	"time"

	"github.com/tailored-agentic-units/relay/replay"
)

// session owns one session's replay buffer, subscriber set, and sequence
// counter. All mutation happens under mu, making the session the single
// logical owner the per-session ordering guarantees rely on. No lock is
// shared between sessions.
type session struct {
	id      string
	buffer  *replay.Buffer
	subs    map[string]*Subscription
	seq     uint64
	started time.Time
	torn    bool
	mu      sync.Mutex
}

func newSession(id string, replayCapacity int) *session {
	return &session{
		id:      id,
		buffer:  replay.NewBuffer(replayCapacity),
		subs:    make(map[string]*Subscription),
		started: time.Now(),
	}
}

// infoLocked builds a SessionInfo snapshot. Callers hold s.mu.
func (s *session) infoLocked() SessionInfo {
	return SessionInfo{
		SessionID:   s.id,
		Subscribers: len(s.subs),
		Buffered:    s.buffer.Len(),
		MaxSeq:      s.seq,
		StartedAt:   s.started,
	}
}
