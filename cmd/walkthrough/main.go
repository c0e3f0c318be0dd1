// Command walkthrough drives the relay in process: a supervisor goroutine
// publishes output and blocks on prompts while a subscriber plays the UI
// tab that watches the stream and answers. Run it with no arguments;
// lifecycle events go to stderr, the walkthrough itself to stdout.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tailored-agentic-units/relay/event"
	"github.com/tailored-agentic-units/relay/prompt"
	"github.com/tailored-agentic-units/relay/relay"
)

const sessionID = "walkthrough"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := relay.DefaultConfig()
	r, err := relay.New(&cfg, relay.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create relay: %v", err)
	}
	defer r.Close()

	sub, err := r.Subscribe(sessionID, "tab-1")
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The tab mirrors every envelope and clicks "allow" on permission
	// requests as they arrive.
	var tab sync.WaitGroup
	tab.Add(1)
	go func() {
		defer tab.Done()
		for {
			env, err := sub.Next(ctx)
			if err != nil {
				return
			}
			fmt.Printf("[tab]        seq=%d type=%s\n", env.Seq, env.Type)

			if req, ok := env.Payload.(event.PermissionRequest); ok {
				err := r.Resolve(sessionID, req.RequestID, prompt.PermissionResponse{
					Approved: true,
					Pattern:  "Bash(go test *)",
				})
				if err != nil {
					log.Fatalf("Failed to resolve: %v", err)
				}
			}
		}
	}()

	// The supervisor streams some output, then blocks on a permission.
	if _, err := r.Publish(sessionID, event.Output{Content: "running go test ./..."}); err != nil {
		log.Fatalf("Failed to publish: %v", err)
	}

	p, answer, err := r.EnqueuePermission(sessionID, prompt.Permission{
		ToolName:  "bash",
		ToolInput: map[string]any{"command": "go test ./..."},
	})
	if err != nil {
		log.Fatalf("Failed to enqueue permission: %v", err)
	}
	fmt.Printf("[supervisor] blocked on permission %s\n", p.ID)

	perm := (<-answer).(prompt.PermissionResponse)
	fmt.Printf("[supervisor] approved=%t pattern=%q\n", perm.Approved, perm.Pattern)

	// A question nobody answers, swept away by an interrupt.
	_, abandoned, err := r.EnqueueQuestion(sessionID, prompt.UserQuestion{
		Questions: []prompt.Question{{Question: "Continue?", Options: []string{"yes", "no"}}},
	})
	if err != nil {
		log.Fatalf("Failed to enqueue question: %v", err)
	}
	fmt.Printf("[supervisor] interrupt swept %d prompt(s)\n", r.Interrupt(sessionID))

	if q, ok := (<-abandoned).(prompt.QuestionResponse); ok {
		fmt.Printf("[supervisor] question dismissed, %d answer(s)\n", len(q.Answers))
	}

	status, err := r.Heartbeat(sessionID)
	if err != nil {
		log.Fatalf("Failed to heartbeat: %v", err)
	}
	fmt.Printf("[admin]      buffered=%d max_seq=%d prompting=%t\n",
		status.Buffered, status.MaxSeq, status.Prompting)

	m := r.Metrics()
	fmt.Printf("[admin]      enqueued=%d resolved=%d denied=%d published=%d\n",
		m.Arbiter.PromptsEnqueued, m.Arbiter.PromptsResolved,
		m.Arbiter.PromptsDenied, m.Mux.EventsPublished)

	// Let the tab drain the tail of the stream before tearing down.
	time.Sleep(100 * time.Millisecond)
	cancel()
	tab.Wait()
}
