package mux

import (
	"context"

	"github.com/tailored-agentic-units/relay/event"
)

// Subscription is one connection's attachment to a session. The transport
// drains it with Next and writes each envelope to its socket; the session
// owner only ever queues into it without blocking.
type Subscription struct {
	sessionID string
	connID    string
	channel   *MessageChannel[*event.Envelope]
}

// SessionID returns the session this subscription is attached to.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// ConnID returns the connection that owns this subscription.
func (s *Subscription) ConnID() string {
	return s.connID
}

// Next blocks until the next envelope is delivered or ctx ends. Once the
// subscription is closed and its queue drained, Next returns
// ErrSubscriptionClosed.
func (s *Subscription) Next(ctx context.Context) (*event.Envelope, error) {
	env, err := s.channel.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, ErrSubscriptionClosed
	}
	return env, nil
}
