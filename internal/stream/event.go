package stream

import "encoding/json"

// Notification methods pushed over a session.
const (
	MethodConnection      = "connection"
	MethodProgress        = "notifications/progress"
	MethodResourceUpdated = "notifications/resources/updated"
)

// StatusCompleted is the terminal marker for long-running task streams.
const StatusCompleted = "completed"

// Event is one server-push notification in JSON-RPC notification shape.
type Event struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
}

type Params struct {
	SessionID string          `json:"sessionId,omitempty"`
	Progress  int             `json:"progress,omitempty"`
	Status    string          `json:"status,omitempty"`
	Result    string          `json:"result,omitempty"`
	URI       string          `json:"uri,omitempty"`
	Delta     json.RawMessage `json:"delta,omitempty"`
}

// Terminal reports whether the event ends a task stream.
func (e Event) Terminal() bool { return e.Params.Status == StatusCompleted }

func (e Event) encode() []byte {
	b, _ := json.Marshal(e)
	return b
}

// parseEvent decodes one raw line from a session. Streams are best-effort:
// a malformed line is reported as not-ok and skipped, never as an error.
func parseEvent(line []byte) (Event, bool) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, false
	}
	if e.Method == "" {
		return Event{}, false
	}
	return e, true
}
