// Package mux fans session event streams out to connections and replays
// buffered history on reconnect.
//
// A session is one agent run; a connection is one attached viewer, such as
// a browser tab. The mux keeps the two decoupled: publishers emit into a
// session without knowing who is watching, and connections attach and
// detach without disturbing the stream.
//
// # Sessions and Subscriptions
//
// Sessions are created implicitly by the first publish or subscribe that
// names them:
//
//	m := mux.New(ctx, mux.DefaultConfig())
//
//	sub, err := m.Subscribe("session-1", "tab-a")
//	for {
//	    env, err := sub.Next(ctx)
//	    if err != nil {
//	        break
//	    }
//	    // render env
//	}
//
// Subscribe is idempotent per (session, connection) pair, and Unsubscribe
// is a no-op for pairs that are not attached.
//
// # Publishing
//
// Publish stamps the payload into an envelope with a per-session sequence
// number, appends it to the replay buffer, and fans it out:
//
//	env, err := m.Publish("session-1", event.Output{Content: "hello"})
//
// Every subscriber of a session observes envelopes in publish order.
// Publishing to a session with no subscribers still buffers, so a viewer
// that attaches later can catch up.
//
// # Replay
//
// ReconnectAndReplay attaches the connection and returns the buffered
// history in one step:
//
//	sub, snapshot, err := m.ReconnectAndReplay("session-1", "tab-a", lastSeen)
//
// When lastSeen is non-zero only envelopes strictly newer than it are
// returned. The caller writes the snapshot before draining the
// subscription; anything published during the handoff queues behind it in
// the subscription's channel, so the combined stream stays ordered.
//
// # Backpressure
//
// A slow subscriber never blocks a publish. When a subscription's buffer
// fills, the oldest queued envelope is dropped to admit the newest, and the
// drop is counted and reported to the observer. The replay buffer is
// unaffected; a reconnect recovers the dropped history.
//
// # Lifecycle
//
// Teardown discards a session's buffer and closes its subscriptions;
// subsequent Heartbeat calls return ErrSessionNotFound so probes can tell
// an ended session from a live one. Close tears down every session.
//
// # Integration
//
// The mux is the delivery half of the relay: the arbiter package decides
// which prompt is active per session and publishes prompt lifecycle events
// through the mux, and the server package bridges subscriptions onto
// WebSocket connections.
package mux
