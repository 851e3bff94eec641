package utils

import (
	"sync"
	"time"
)

// Well-known event types emitted by the orchestration pipeline.
const (
	EventGapRunCompleted       = "gap.run.completed"
	EventGapRunFailed          = "gap.run.failed"
	EventCompetitionGapUpdated = "competition.gap.updated"
	EventContextGraphSaved     = "context.graph.saved"
)

// Event represents an event in the system
type Event struct {
	Type      string         // Event type (e.g., "gap.run.completed")
	Source    string         // Component that emitted the event
	Payload   map[string]any // Event data
	Timestamp time.Time      // When the event occurred
}

// EventHandler is a function that handles events
type EventHandler func(Event) error

// EventBus manages event publication and subscription
type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	logger   *Logger
}

var (
	globalEventBus     *EventBus
	globalEventBusOnce sync.Once
)

// GetEventBus returns the global event bus instance
func GetEventBus() *EventBus {
	globalEventBusOnce.Do(func() {
		globalEventBus = &EventBus{
			handlers: make(map[string][]EventHandler),
			logger:   GetLogger(),
		}
	})
	return globalEventBus
}

// NewEventBus creates a new event bus (for testing)
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
		logger:   GetLogger(),
	}
}

// Subscribe registers a handler for an event type
func (eb *EventBus) Subscribe(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// Publish publishes an event to all registered handlers. Handler errors are
// logged, never propagated to the publisher.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	handlers := append([]EventHandler(nil), eb.handlers[event.Type]...)
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		eb.logger.Debug("No handlers registered for event type",
			String("event_type", event.Type),
			String("source", event.Source))
		return
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			eb.logger.Error("Event handler failed", err,
				String("event_type", event.Type),
				String("source", event.Source))
		}
	}
}
