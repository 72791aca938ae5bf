package stream

import (
	"context"
	"sync"
	"time"

	"github.com/pion/transport/v4/deadline"
)

// State is the lifecycle of one push session. There is no way back to
// StateConnecting; reconnection creates a new session.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateDraining // terminal event consumed
	StateTimedOut
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateTimedOut:
		return "timed_out"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const sessionQueueDepth = 256

// Session is one logical push channel. Events arrive as raw lines and are
// parsed lazily at consumption time.
type Session struct {
	id string

	mu    sync.Mutex
	state State

	queue chan []byte
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState enforces forward-only transitions; a closed or timed-out
// session stays where it is.
func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == StateTimedOut {
		return
	}
	s.state = next
}

// push enqueues a raw line without ever blocking the publisher. A full
// queue drops the line: push channels are best-effort.
func (s *Session) push(line []byte) bool {
	select {
	case s.queue <- line:
		return true
	default:
		return false
	}
}

// Close disconnects the session. Pending events become unreachable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

// CollectFor reads events for at most budget d of wall-clock time and
// returns whatever arrived, possibly nothing. Hitting the budget is an
// expected outcome, not an error; the session moves to StateTimedOut.
// A terminal event also ends the read early.
func (s *Session) CollectFor(d time.Duration) []Event {
	dl := deadline.New()
	dl.Set(time.Now().Add(d))

	var events []Event
	for {
		select {
		case line := <-s.queue:
			ev, ok := parseEvent(line)
			if !ok {
				continue
			}
			events = append(events, ev)
			if ev.Terminal() {
				s.setState(StateDraining)
				return events
			}
		case <-dl.Done():
			s.setState(StateTimedOut)
			return events
		}
	}
}

// CollectUntilDone reads events until the first terminal one, inclusive.
// Events queued after the terminal one stay queued. A cancelled context
// ends the read with the partial result; partial results are valid.
func (s *Session) CollectUntilDone(ctx context.Context) []Event {
	var events []Event
	for {
		select {
		case line := <-s.queue:
			ev, ok := parseEvent(line)
			if !ok {
				continue
			}
			events = append(events, ev)
			if ev.Terminal() {
				s.setState(StateDraining)
				return events
			}
		case <-ctx.Done():
			s.setState(StateTimedOut)
			return events
		}
	}
}

// AwaitSessionID reads until the session-establishment event and returns
// the announced id. The session stays open for further consumption.
func (s *Session) AwaitSessionID(ctx context.Context) (string, error) {
	for {
		select {
		case line := <-s.queue:
			ev, ok := parseEvent(line)
			if !ok {
				continue
			}
			if ev.Method == MethodConnection && ev.Params.SessionID != "" {
				return ev.Params.SessionID, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
