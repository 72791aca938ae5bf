package stream

import (
	"context"
	"testing"
	"time"

	"github.com/pion/logging"
)

func testLogger() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = logging.LogLevelError
	return f.NewLogger("stream-test")
}

func progressEvent(progress int, status string) Event {
	return Event{
		JSONRPC: "2.0",
		Method:  MethodProgress,
		Params:  Params{Progress: progress, Status: status},
	}
}

func TestOpenDeliversEstablishmentFirst(t *testing.T) {
	m := NewSessionManager(testLogger())
	s := m.Open()

	if s.State() != StateOpen {
		t.Fatalf("state = %v, want open", s.State())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	id, err := s.AwaitSessionID(ctx)
	if err != nil {
		t.Fatalf("AwaitSessionID: %v", err)
	}
	if id != s.ID() {
		t.Fatalf("announced id %q != session id %q", id, s.ID())
	}
}

func TestAwaitSessionIDLeavesStreamOpen(t *testing.T) {
	m := NewSessionManager(testLogger())
	s := m.Open()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := s.AwaitSessionID(ctx); err != nil {
		t.Fatalf("AwaitSessionID: %v", err)
	}

	m.Publish(s.ID(), progressEvent(100, StatusCompleted))
	events := s.CollectUntilDone(ctx)
	if len(events) != 1 || !events[0].Terminal() {
		t.Fatalf("stream unusable after id extraction: %+v", events)
	}
}

func TestCollectUntilDoneStopsAtTerminal(t *testing.T) {
	m := NewSessionManager(testLogger())
	s := m.Open()

	m.Publish(s.ID(), progressEvent(10, "running"))
	m.Publish(s.ID(), progressEvent(50, "running"))
	m.Publish(s.ID(), progressEvent(100, StatusCompleted))
	m.Publish(s.ID(), progressEvent(999, "running")) // must stay queued

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// skip the establishment event
	if _, err := s.AwaitSessionID(ctx); err != nil {
		t.Fatalf("AwaitSessionID: %v", err)
	}

	events := s.CollectUntilDone(ctx)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Params.Progress != 10 || events[1].Params.Progress != 50 {
		t.Fatalf("events out of order: %+v", events)
	}
	if !events[2].Terminal() {
		t.Fatalf("last event not terminal: %+v", events[2])
	}
	if s.State() != StateDraining {
		t.Fatalf("state = %v, want draining", s.State())
	}
	if len(s.queue) != 1 {
		t.Fatalf("post-terminal event not left queued, queue len %d", len(s.queue))
	}
}

func TestCollectForReturnsWithinBudget(t *testing.T) {
	m := NewSessionManager(testLogger())
	s := m.Open()

	// A stream that never emits a terminal event.
	m.Publish(s.ID(), progressEvent(10, "running"))

	start := time.Now()
	events := s.CollectFor(100 * time.Millisecond)
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Fatalf("returned after %v, before the budget", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("returned after %v, way past the budget", elapsed)
	}
	// establishment event + one progress event
	if len(events) != 2 {
		t.Fatalf("got %d partial events, want 2", len(events))
	}
	if s.State() != StateTimedOut {
		t.Fatalf("state = %v, want timed_out", s.State())
	}
}

func TestCollectForEmptyStreamIsNotAnError(t *testing.T) {
	s := &Session{id: "bare", state: StateOpen, queue: make(chan []byte, 8)}

	events := s.CollectFor(50 * time.Millisecond)
	if len(events) != 0 {
		t.Fatalf("got %d events from an empty stream", len(events))
	}
}

func TestMalformedEventsAreSkipped(t *testing.T) {
	m := NewSessionManager(testLogger())
	s := m.Open()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := s.AwaitSessionID(ctx); err != nil {
		t.Fatalf("AwaitSessionID: %v", err)
	}

	m.PublishRaw(s.ID(), []byte("{not json at all"))
	m.PublishRaw(s.ID(), []byte(`{"jsonrpc":"2.0"}`)) // no method
	m.Publish(s.ID(), progressEvent(100, StatusCompleted))

	events := s.CollectUntilDone(ctx)
	if len(events) != 1 {
		t.Fatalf("malformed lines leaked through: %+v", events)
	}
}

func TestNoTransitionOutOfClosed(t *testing.T) {
	m := NewSessionManager(testLogger())
	s := m.Open()
	m.Disconnect(s.ID())

	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
	s.setState(StateOpen)
	if s.State() != StateClosed {
		t.Fatal("closed session transitioned back to open")
	}
	if m.Publish(s.ID(), progressEvent(1, "running")) {
		t.Fatal("publish to a disconnected session succeeded")
	}
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	m := NewSessionManager(testLogger())
	a := m.Open()
	b := m.Open()

	m.Broadcast(progressEvent(100, StatusCompleted))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, s := range []*Session{a, b} {
		if _, err := s.AwaitSessionID(ctx); err != nil {
			t.Fatalf("AwaitSessionID: %v", err)
		}
		if events := s.CollectUntilDone(ctx); len(events) != 1 {
			t.Fatalf("session %s got %d events, want 1", s.ID(), len(events))
		}
	}
}

func TestTickerEmitsAtApproximateInterval(t *testing.T) {
	m := NewSessionManager(testLogger())
	s := m.Open()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartTicker(ctx, "stock://ticker", 20*time.Millisecond, 1)

	events := s.CollectFor(250 * time.Millisecond)

	updates := 0
	for _, ev := range events {
		if ev.Method == MethodResourceUpdated {
			if ev.Params.URI != "stock://ticker" {
				t.Fatalf("unexpected uri %q", ev.Params.URI)
			}
			updates++
		}
	}
	// ~12 expected; allow wide scheduler slack
	if updates < 5 {
		t.Fatalf("got %d ticker updates in 250ms at 20ms cadence", updates)
	}
}
