package mux_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/relay/event"
	"github.com/tailored-agentic-units/relay/mux"
	"github.com/tailored-agentic-units/relay/observability"
)

// Helper function to create a test mux
func createTestMux(t *testing.T) *mux.Mux {
	return mux.New(context.Background(), mux.DefaultConfig())
}

// Helper function to drain n envelopes from a subscription
func drain(t *testing.T, sub *mux.Subscription, n int) []*event.Envelope {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	envs := make([]*event.Envelope, 0, n)
	for len(envs) < n {
		env, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v after %d envelopes", err, len(envs))
		}
		envs = append(envs, env)
	}
	return envs
}

func TestMux_Subscribe_Idempotent(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	first, err := m.Subscribe("session-1", "tab-a")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	second, err := m.Subscribe("session-1", "tab-a")
	if err != nil {
		t.Fatalf("Second Subscribe() error = %v", err)
	}

	if first != second {
		t.Error("Subscribe() should return the existing subscription for a repeated conn id")
	}

	metrics := m.Metrics()
	if metrics.Subscribers != 1 {
		t.Errorf("Subscribers = %d, want 1", metrics.Subscribers)
	}
}

func TestMux_Subscribe_Validation(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	if _, err := m.Subscribe("", "tab-a"); err == nil {
		t.Error("Subscribe() should fail for empty session id")
	}
	if _, err := m.Subscribe("session-1", ""); err == nil {
		t.Error("Subscribe() should fail for empty conn id")
	}
}

func TestMux_Publish_FanOut(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	subA, err := m.Subscribe("session-1", "tab-a")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	subB, err := m.Subscribe("session-1", "tab-b")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		if _, err := m.Publish("session-1", event.Output{Content: c}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	for name, sub := range map[string]*mux.Subscription{"tab-a": subA, "tab-b": subB} {
		envs := drain(t, sub, len(contents))
		for i, env := range envs {
			if env.Seq != uint64(i+1) {
				t.Errorf("%s envelope %d Seq = %d, want %d", name, i, env.Seq, i+1)
			}
			out, ok := env.Payload.(event.Output)
			if !ok {
				t.Fatalf("%s envelope %d payload type = %T, want event.Output", name, i, env.Payload)
			}
			if out.Content != contents[i] {
				t.Errorf("%s envelope %d Content = %q, want %q", name, i, out.Content, contents[i])
			}
		}
	}
}

func TestMux_Publish_BuffersWithoutSubscribers(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	for i := 0; i < 3; i++ {
		if _, err := m.Publish("session-1", event.Output{Content: "buffered"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	// A viewer attaching after the fact still gets the full history
	_, snapshot, err := m.ReconnectAndReplay("session-1", "tab-a", time.Time{})
	if err != nil {
		t.Fatalf("ReconnectAndReplay() error = %v", err)
	}
	if len(snapshot) != 3 {
		t.Errorf("snapshot length = %d, want 3", len(snapshot))
	}
}

func TestMux_Publish_Validation(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	if _, err := m.Publish("", event.Output{Content: "x"}); err == nil {
		t.Error("Publish() should fail for empty session id")
	}
	if _, err := m.Publish("session-1", nil); err == nil {
		t.Error("Publish() should fail for nil payload")
	}
}

func TestMux_ReconnectAndReplay_UnknownSession(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	_, _, err := m.ReconnectAndReplay("nonexistent", "tab-a", time.Time{})
	if !errors.Is(err, mux.ErrSessionNotFound) {
		t.Errorf("ReconnectAndReplay() error = %v, want ErrSessionNotFound", err)
	}
}

func TestMux_ReconnectAndReplay_SinceFilter(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	var cutoff time.Time
	for i := 1; i <= 5; i++ {
		env, err := m.Publish("session-1", event.Output{Content: "entry"})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if i == 3 {
			cutoff = env.Timestamp
		}
		time.Sleep(time.Millisecond)
	}

	_, snapshot, err := m.ReconnectAndReplay("session-1", "tab-a", cutoff)
	if err != nil {
		t.Fatalf("ReconnectAndReplay() error = %v", err)
	}

	// Strictly newer than the cutoff: envelopes 4 and 5
	if len(snapshot) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snapshot))
	}
	if snapshot[0].Seq != 4 || snapshot[1].Seq != 5 {
		t.Errorf("snapshot seqs = %d, %d, want 4, 5", snapshot[0].Seq, snapshot[1].Seq)
	}
}

func TestMux_ReconnectAndReplay_BoundedByCapacity(t *testing.T) {
	cfg := mux.DefaultConfig()
	cfg.ReplayCapacity = 20
	m := mux.New(context.Background(), cfg)
	defer m.Close()

	for i := 0; i < 70; i++ {
		if _, err := m.Publish("session-1", event.Output{Content: "entry"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	_, snapshot, err := m.ReconnectAndReplay("session-1", "tab-a", time.Time{})
	if err != nil {
		t.Fatalf("ReconnectAndReplay() error = %v", err)
	}

	if len(snapshot) != 20 {
		t.Fatalf("snapshot length = %d, want 20", len(snapshot))
	}
	if snapshot[0].Seq != 51 {
		t.Errorf("oldest replayed Seq = %d, want 51", snapshot[0].Seq)
	}
	if snapshot[19].Seq != 70 {
		t.Errorf("newest replayed Seq = %d, want 70", snapshot[19].Seq)
	}
}

func TestMux_Deliver_DropsOldestWhenFull(t *testing.T) {
	cfg := mux.DefaultConfig()
	cfg.SendBufferSize = 2
	m := mux.New(context.Background(), cfg)
	defer m.Close()

	sub, err := m.Subscribe("session-1", "slow-tab")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Publish without draining; the two-slot buffer forces three evictions
	for i := 0; i < 5; i++ {
		if _, err := m.Publish("session-1", event.Output{Content: "entry"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	metrics := m.Metrics()
	if metrics.EventsDropped != 3 {
		t.Errorf("EventsDropped = %d, want 3", metrics.EventsDropped)
	}

	// The newest envelopes survive
	envs := drain(t, sub, 2)
	if envs[0].Seq != 4 || envs[1].Seq != 5 {
		t.Errorf("queued seqs = %d, %d, want 4, 5", envs[0].Seq, envs[1].Seq)
	}
}

func TestMux_Unsubscribe_ClosesSubscription(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	sub, err := m.Subscribe("session-1", "tab-a")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	m.Unsubscribe("session-1", "tab-a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, mux.ErrSubscriptionClosed) {
		t.Errorf("Next() error = %v, want ErrSubscriptionClosed", err)
	}

	metrics := m.Metrics()
	if metrics.Subscribers != 0 {
		t.Errorf("Subscribers = %d, want 0", metrics.Subscribers)
	}
}

func TestMux_Unsubscribe_UnknownIsNoOp(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	m.Unsubscribe("nonexistent", "tab-a")

	if _, err := m.Subscribe("session-1", "tab-a"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	m.Unsubscribe("session-1", "other-tab")

	metrics := m.Metrics()
	if metrics.Subscribers != 1 {
		t.Errorf("Subscribers = %d, want 1", metrics.Subscribers)
	}
}

func TestMux_Heartbeat(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	if _, err := m.Heartbeat("session-1"); !errors.Is(err, mux.ErrSessionNotFound) {
		t.Errorf("Heartbeat() before creation error = %v, want ErrSessionNotFound", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Publish("session-1", event.Output{Content: "entry"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if _, err := m.Subscribe("session-1", "tab-a"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := m.Subscribe("session-1", "tab-b"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	info, err := m.Heartbeat("session-1")
	if err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if info.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want %q", info.SessionID, "session-1")
	}
	if info.Subscribers != 2 {
		t.Errorf("Subscribers = %d, want 2", info.Subscribers)
	}
	if info.Buffered != 3 {
		t.Errorf("Buffered = %d, want 3", info.Buffered)
	}
	if info.MaxSeq != 3 {
		t.Errorf("MaxSeq = %d, want 3", info.MaxSeq)
	}
	if info.StartedAt.IsZero() {
		t.Error("StartedAt should not be zero")
	}
}

func TestMux_Teardown(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	sub, err := m.Subscribe("session-1", "tab-a")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := m.Publish("session-1", event.Output{Content: "entry"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	drain(t, sub, 1)

	m.Teardown("session-1")

	if _, err := m.Heartbeat("session-1"); !errors.Is(err, mux.ErrSessionNotFound) {
		t.Errorf("Heartbeat() after teardown error = %v, want ErrSessionNotFound", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, mux.ErrSubscriptionClosed) {
		t.Errorf("Next() after teardown error = %v, want ErrSubscriptionClosed", err)
	}

	// Teardown is idempotent
	m.Teardown("session-1")

	metrics := m.Metrics()
	if metrics.ActiveSessions != 0 {
		t.Errorf("ActiveSessions = %d, want 0", metrics.ActiveSessions)
	}
	if metrics.Subscribers != 0 {
		t.Errorf("Subscribers = %d, want 0", metrics.Subscribers)
	}
}

func TestMux_Sessions_Sorted(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	for _, id := range []string{"session-c", "session-a", "session-b"} {
		if _, err := m.Publish(id, event.Output{Content: "entry"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	infos := m.Sessions()
	if len(infos) != 3 {
		t.Fatalf("Sessions() length = %d, want 3", len(infos))
	}

	want := []string{"session-a", "session-b", "session-c"}
	for i, info := range infos {
		if info.SessionID != want[i] {
			t.Errorf("Sessions()[%d].SessionID = %q, want %q", i, info.SessionID, want[i])
		}
	}
}

func TestMux_Close_RejectsFurtherUse(t *testing.T) {
	m := createTestMux(t)

	if _, err := m.Publish("session-1", event.Output{Content: "entry"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	m.Close()

	if _, err := m.Publish("session-1", event.Output{Content: "entry"}); !errors.Is(err, mux.ErrMuxClosed) {
		t.Errorf("Publish() after close error = %v, want ErrMuxClosed", err)
	}
	if _, err := m.Subscribe("session-1", "tab-a"); !errors.Is(err, mux.ErrMuxClosed) {
		t.Errorf("Subscribe() after close error = %v, want ErrMuxClosed", err)
	}

	metrics := m.Metrics()
	if metrics.ActiveSessions != 0 {
		t.Errorf("ActiveSessions = %d, want 0", metrics.ActiveSessions)
	}
}

func TestMux_ConcurrentPublish_MonotonicSeq(t *testing.T) {
	m := createTestMux(t)
	defer m.Close()

	sub, err := m.Subscribe("session-1", "tab-a")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	const (
		writers    = 4
		perWriter  = 50
		totalCount = writers * perWriter
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := m.Publish("session-1", event.Output{Content: "entry"}); err != nil {
					t.Errorf("Publish() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	envs := drain(t, sub, totalCount)
	var prev uint64
	for i, env := range envs {
		if env.Seq <= prev {
			t.Fatalf("envelope %d Seq = %d, not greater than previous %d", i, env.Seq, prev)
		}
		prev = env.Seq
	}

	info, err := m.Heartbeat("session-1")
	if err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if info.MaxSeq != totalCount {
		t.Errorf("MaxSeq = %d, want %d", info.MaxSeq, totalCount)
	}
}

// recordingObserver captures event types for assertions.
type recordingObserver struct {
	mu    sync.Mutex
	types []observability.EventType
}

func (r *recordingObserver) OnEvent(_ context.Context, e observability.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
}

func (r *recordingObserver) saw(t observability.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.types {
		if got == t {
			return true
		}
	}
	return false
}

func TestMux_ObserverReceivesLifecycleEvents(t *testing.T) {
	obs := &recordingObserver{}
	cfg := mux.DefaultConfig()
	cfg.Observer = obs
	m := mux.New(context.Background(), cfg)
	defer m.Close()

	if _, err := m.Subscribe("session-1", "tab-a"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, err := m.Publish("session-1", event.Output{Content: "entry"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	m.Unsubscribe("session-1", "tab-a")
	m.Teardown("session-1")

	for _, want := range []observability.EventType{
		mux.EventSessionCreated,
		mux.EventSubscribed,
		mux.EventUnsubscribed,
		mux.EventSessionTornDown,
	} {
		if !obs.saw(want) {
			t.Errorf("observer did not receive %s", want)
		}
	}
}
