// Package event defines the closed set of stream events a session can emit
// and the envelope that carries them to subscribers and the replay buffer.
//
// # Event Types
//
// Events fall into three groups:
//
//   - Stream events produced by the session supervisor: output, message,
//     thinking, tool_use, usage, todos, agent, status, command_output,
//     compacting
//   - Prompt lifecycle events produced by the arbitration queue:
//     *_request when a prompt becomes active, *_resolved when it is answered
//   - Transport markers: replay_done, sent directly to a reconnecting
//     connection after its replay snapshot and never buffered
//
// # Envelopes
//
// Every delivered event is wrapped in an Envelope carrying the session id, a
// per-session monotonic sequence number, the type tag, and a timestamp:
//
//	env := event.NewEnvelope("session-1", 7, event.Output{Content: "hello"})
//	data, _ := json.Marshal(env)
//
// The payload is a sealed tagged union. Marshaling writes the type tag next
// to the payload; unmarshaling dispatches on the tag back to the concrete
// payload type, so both sides of the wire stay exhaustively checked.
//
// # Integration
//
// The mux package assigns sequence numbers and owns envelope delivery; the
// arbiter package emits prompt lifecycle payloads via PromptRequest and
// PromptResolved.
package event
