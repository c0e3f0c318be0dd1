// Package arbiter serializes competing requests for human attention into
// exactly one active prompt per session.
//
// A long-running agent subprocess raises prompts (tool permissions, plan
// approvals, free-form questions, commit approvals) and must suspend until
// a human answers. The answer may arrive minutes later, over a different
// connection than the one that saw the prompt, or never. The arbiter owns
// that round trip: it queues prompts per session, decides which one the
// human sees, and correlates each answer back to the caller waiting on it.
//
// # Enqueue and Suspension
//
// Enqueue returns a channel the caller blocks on:
//
//	p, answer, err := arb.Enqueue("session-1", prompt.Permission{
//	    ToolName:  "bash",
//	    ToolInput: map[string]any{"command": "rm -rf build"},
//	})
//	if err != nil {
//	    return err
//	}
//	r := <-answer
//
// The channel receives exactly one response: the human's, delivered by
// Resolve, or a synthesized denial from a sweep. There is no timeout; a
// prompt waits until answered or until its session is interrupted or
// ended.
//
// # Priority
//
// The active prompt is the head of the pending list after a stable sort by
// variant priority:
//
//   - Permission (0)
//   - UserQuestion (1)
//   - PlanApproval (2)
//   - CommitApproval (3)
//
// Lower numbers surface first; equal priorities keep insertion order. A
// permission prompt arriving while a commit approval is on screen preempts
// it, and the commit approval returns once the permission resolves. All
// prompts except the head are invisible to clients.
//
// # Resolution
//
// Resolve names the prompt by id:
//
//	err := arb.Resolve("session-1", p.ID, prompt.PermissionResponse{Approved: true})
//
// Stale ids are expected, not errors: a second tab answering an
// already-resolved prompt gets a warn log and a nil return. Each resolver
// entry is removed before its channel send, so a Resolve racing a sweep on
// the same id delivers at most once, with the loser a no-op.
//
// # Sweeps
//
// DenyAll force-resolves everything pending with variant-appropriate
// denials and keeps the session; interrupts use it. ClearSession does the
// same sweep and then deletes the session's state; session end uses it.
// Both unblock every suspended caller exactly once.
//
// # Concurrency
//
// Each session's queue and resolver table are guarded by that session's
// own lock; operations on different sessions never contend. Enqueue
// callers suspend holding no locks. Resolver channels are buffered, so
// delivery never blocks the owner.
//
// # Integration
//
// The arbiter publishes prompt request and resolved events through the
// Publisher interface, satisfied by the mux, so every attached connection
// sees activations and dismissals. The relay composition root wires the
// two together and exposes typed Enqueue wrappers to the subprocess
// supervisor.
package arbiter
