package relay

import "github.com/tailored-agentic-units/relay/observability"

// Relay event types emitted at the composition root.
const (
	EventSessionInterrupted observability.EventType = "relay.session.interrupted"
	EventSessionEnded       observability.EventType = "relay.session.ended"
	EventClosed             observability.EventType = "relay.closed"
)
