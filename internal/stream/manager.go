// Package stream models the server-push side of a stateful session
// transport: sessions with ordered event queues, bounded consumption, and
// interval publishers. All session state is owned by a SessionManager so
// independent runs (and parallel tests) never share globals.
package stream

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"golang.org/x/time/rate"
)

type SessionManager struct {
	log logging.LeveledLogger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(log logging.LeveledLogger) *SessionManager {
	return &SessionManager{
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Open establishes a new push session. The first event on the queue is the
// establishment event announcing the session id.
func (m *SessionManager) Open() *Session {
	s := &Session{
		id:    uuid.NewString(),
		state: StateConnecting,
		queue: make(chan []byte, sessionQueueDepth),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	s.push(Event{
		JSONRPC: "2.0",
		Method:  MethodConnection,
		Params:  Params{SessionID: s.id},
	}.encode())
	s.setState(StateOpen)

	m.log.Debugf("session %s opened", s.id)
	return s
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Publish delivers an event to one session. Unknown or closed sessions
// swallow the event.
func (m *SessionManager) Publish(id string, ev Event) bool {
	s, ok := m.Get(id)
	if !ok || s.State() == StateClosed {
		return false
	}
	return s.push(ev.encode())
}

// PublishRaw injects an arbitrary line, valid or not. Consumers skip what
// they cannot parse.
func (m *SessionManager) PublishRaw(id string, line []byte) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	return s.push(line)
}

// Broadcast pushes an event to every live session.
func (m *SessionManager) Broadcast(ev Event) {
	line := ev.encode()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.State() == StateClosed {
			continue
		}
		s.push(line)
	}
}

// Disconnect closes and forgets a session.
func (m *SessionManager) Disconnect(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
		m.log.Debugf("session %s disconnected", id)
	}
}

// StartTicker broadcasts a synthetic quote for uri at a fixed approximate
// interval until ctx is cancelled. The cadence is paced by a rate limiter,
// so it drifts with scheduling load rather than ticking rigidly.
func (m *SessionManager) StartTicker(ctx context.Context, uri string, interval time.Duration, seed int64) {
	go func() {
		lim := rate.NewLimiter(rate.Every(interval), 1)
		rng := rand.New(rand.NewSource(seed))
		for {
			if err := lim.Wait(ctx); err != nil {
				return
			}
			price := 100.0 + (rng.Float64()*10 - 5)
			delta, _ := json.Marshal(map[string]any{
				"price":     math.Round(price*100) / 100,
				"timestamp": time.Now().UnixMilli(),
			})
			m.Broadcast(Event{
				JSONRPC: "2.0",
				Method:  MethodResourceUpdated,
				Params:  Params{URI: uri, Delta: delta},
			})
		}
	}()
}
