// Package events carries pipeline progress from the orchestrator to whoever is
// watching: the CLI progress bar, the failure reporter, tests.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacaproxy/proxy-release/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog         EventType = "log"
	EventStateChange EventType = "state_change"
	EventStepFailed  EventType = "step_failed"
	EventComplete    EventType = "complete"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents a message worth surfacing outside the log stream,
// typically a non-fatal warning.
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	State   string
	Error   error
}

// StateChangeEvent represents an orchestrator state transition.
type StateChangeEvent struct {
	BaseEvent
	OldState string
	NewState string
	Index    int // position of NewState among the run's planned states, 1-based
	Total    int // number of planned states in this run
}

// StepFailedEvent is published once when a fatal step error ends the run.
type StepFailedEvent struct {
	BaseEvent
	State string
	Error error
}

// CompleteEvent represents the end of a pipeline run.
type CompleteEvent struct {
	BaseEvent
	FinalState string
	Warnings   int
	Duration   time.Duration
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking. Events for a
// subscriber whose buffer is full are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, state string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
		State:     state,
		Error:     err,
	})
}

// PublishStateChange is a convenience method for publishing state transitions
func (eb *EventBus) PublishStateChange(oldState, newState string, index, total int) {
	eb.Publish(&StateChangeEvent{
		BaseEvent: BaseEvent{EventType: EventStateChange, Time: time.Now()},
		OldState:  oldState,
		NewState:  newState,
		Index:     index,
		Total:     total,
	})
}

// PublishStepFailed is a convenience method for publishing a fatal step failure
func (eb *EventBus) PublishStepFailed(state string, err error) {
	eb.Publish(&StepFailedEvent{
		BaseEvent: BaseEvent{EventType: EventStepFailed, Time: time.Now()},
		State:     state,
		Error:     err,
	})
}

// PublishComplete is a convenience method for publishing the end of a run
func (eb *EventBus) PublishComplete(finalState string, warnings int, d time.Duration) {
	eb.Publish(&CompleteEvent{
		BaseEvent:  BaseEvent{EventType: EventComplete, Time: time.Now()},
		FinalState: finalState,
		Warnings:   warnings,
		Duration:   d,
	})
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// DroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) DroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
