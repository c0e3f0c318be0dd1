package arbiter

import (
	"sort"
	"sync"

	"github.com/tailored-agentic-units/relay/prompt"
)

// promptQueue is one session's pending prompts plus the resolvers awaiting
// their answers. All fields are guarded by mu; every mutation for a session
// goes through its queue, never through shared state.
type promptQueue struct {
	sessionID string
	pending   []*prompt.Prompt
	resolvers map[string]chan prompt.Response

	// cleared marks a queue removed from the registry mid-operation so a
	// racing enqueue retries against a fresh queue.
	cleared bool

	mu sync.Mutex
}

func newPromptQueue(sessionID string) *promptQueue {
	return &promptQueue{
		sessionID: sessionID,
		resolvers: make(map[string]chan prompt.Response),
	}
}

// sortLocked re-sorts pending by variant priority. The sort is stable so
// prompts of equal priority keep their insertion order.
func (q *promptQueue) sortLocked() {
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].Kind().Priority() < q.pending[j].Kind().Priority()
	})
}

// headLocked returns the active prompt: the first pending element after the
// stable priority sort.
func (q *promptQueue) headLocked() (*prompt.Prompt, bool) {
	if len(q.pending) == 0 {
		return nil, false
	}
	return q.pending[0], true
}

// findLocked returns the pending prompt with the given id.
func (q *promptQueue) findLocked(promptID string) (*prompt.Prompt, bool) {
	for _, p := range q.pending {
		if p.ID == promptID {
			return p, true
		}
	}
	return nil, false
}

// removeLocked deletes the prompt with the given id from pending, reporting
// whether it was present.
func (q *promptQueue) removeLocked(promptID string) bool {
	for i, p := range q.pending {
		if p.ID == promptID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// sweepLocked force-resolves every resolver with the variant-appropriate
// denial and empties the queue, returning the swept prompts in pending
// order. Each resolver entry is removed before its send, so a sweep
// composes with a concurrent Resolve as first-one-wins.
func (q *promptQueue) sweepLocked(reason string) []*prompt.Prompt {
	swept := make([]*prompt.Prompt, 0, len(q.pending))
	for _, p := range q.pending {
		ch, ok := q.resolvers[p.ID]
		if !ok {
			continue
		}
		delete(q.resolvers, p.ID)
		ch <- p.Deny(reason)
		swept = append(swept, p)
	}
	q.pending = nil
	return swept
}
