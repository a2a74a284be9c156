// Package stream implements live container log tailing: per-session read
// loops over a remote channel, bounded replay buffers, time/size-bounded
// batching and a process-wide session registry.
package stream

import "time"

// Batch is one bounded group of log lines emitted to subscribers.
type Batch struct {
	SessionID string    `json:"sessionId"`
	Target    string    `json:"target"`
	Lines     []string  `json:"lines"`
	Total     int       `json:"total"` // buffered line count at emit time
	Timestamp time.Time `json:"timestamp"`
	Realtime  bool      `json:"realtime"`
	Final     bool      `json:"final"` // last batch of a terminated stream
}

// HistoryResult is the outcome of a synchronous bounded-backlog fetch.
// Lines are already level-filtered.
type HistoryResult struct {
	Target    string    `json:"target"`
	Lines     []string  `json:"lines"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
	Realtime  bool      `json:"realtime"`
}

// EventType discriminates session notifications.
type EventType int

const (
	// EventBatch carries a batch of log lines.
	EventBatch EventType = iota
	// EventError reports an I/O failure observed while running.
	EventError
	// EventClosed marks the end of a session's event stream.
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventBatch:
		return "batch"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a typed session notification. Exactly one payload field is set,
// according to Type.
type Event struct {
	Type      EventType
	SessionID string
	Target    string
	Batch     *Batch
	Err       error
}

// Sink receives session events. Implementations must be safe for use from
// the session's read loop; Emit should not block indefinitely.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }
