package observability

import (
	"log/slog"
	"sync"
	"time"
)

// EventType tags the append-only audit events.
type EventType string

const (
	EventToolCalled   EventType = "TOOL_CALLED"
	EventToolResult   EventType = "TOOL_RESULT"
	EventPolicyDenied EventType = "POLICY_DENIED"
	EventRetry        EventType = "RETRY"
	EventJobSubmitted EventType = "JOB_SUBMITTED"
	EventJobCompleted EventType = "JOB_COMPLETED"
	EventJobFailed    EventType = "JOB_FAILED"
)

// Event is one append-only record. Seq is globally monotonic and assigned
// atomically on append.
type Event struct {
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"requestId"`
	TaskID    string         `json:"taskId"`
	ToolName  string         `json:"toolName,omitempty"`
	TraceID   string         `json:"traceId,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Listener receives events by copy.
type Listener func(Event)

// EventLog is a bounded append-only event buffer with fan-out. When the
// buffer is full the oldest events are dropped; Seq keeps counting.
type EventLog struct {
	mu        sync.Mutex
	events    []Event
	capacity  int
	seq       uint64
	listeners map[int]listenerEntry
	nextSub   int
	logger    *slog.Logger
}

type listenerEntry struct {
	eventType EventType // empty matches all types
	fn        Listener
}

// NewEventLog creates an event log holding up to capacity events
// (default 4096).
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 4096
	}
	return &EventLog{
		capacity:  capacity,
		listeners: make(map[int]listenerEntry),
		logger:    slog.Default().With("component", "eventlog"),
	}
}

// Append stamps the event with the next sequence number and current time,
// stores it, and fans it out. A panicking listener is recovered and logged
// without stopping delivery to others.
func (l *EventLog) Append(event Event) Event {
	l.mu.Lock()
	l.seq++
	event.Seq = l.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	targets := make([]listenerEntry, 0, len(l.listeners))
	for _, entry := range l.listeners {
		if entry.eventType == "" || entry.eventType == event.Type {
			targets = append(targets, entry)
		}
	}
	l.mu.Unlock()

	for _, entry := range targets {
		l.deliver(entry.fn, event)
	}
	return event
}

func (l *EventLog) deliver(fn Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event listener panicked", "event_type", string(event.Type), "panic", r)
		}
	}()
	fn(event)
}

// On registers a listener for one event type. An empty type matches every
// event. Returns an unsubscribe function.
func (l *EventLog) On(eventType EventType, fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.listeners[id] = listenerEntry{eventType: eventType, fn: fn}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Subscribe registers a listener for all events.
func (l *EventLog) Subscribe(fn Listener) func() {
	return l.On("", fn)
}

// GetAll returns a copy of the retained events in sequence order.
func (l *EventLog) GetAll() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// LastSeq returns the most recently assigned sequence number.
func (l *EventLog) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}
