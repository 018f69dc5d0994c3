// Package orchestrator event notification uses the Observer pattern
// over CloudEvents for standardized event format and interoperability
// with external dashboards and audit sinks.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Orchestration event types emitted through the observer subject.
const (
	EventTypeComponentRegistered = "com.tradeforge.orchestrator.component.registered"
	EventTypePlanCreated         = "com.tradeforge.orchestrator.plan.created"
	EventTypePlanExecuted        = "com.tradeforge.orchestrator.plan.executed"
	EventTypePlanFailed          = "com.tradeforge.orchestrator.plan.failed"
	EventTypeStepFailed          = "com.tradeforge.orchestrator.step.failed"
	EventTypeHealthChanged       = "com.tradeforge.orchestrator.health.status_changed"
	EventTypeRestartInitiated    = "com.tradeforge.orchestrator.restart.initiated"
	EventTypeRestartSucceeded    = "com.tradeforge.orchestrator.restart.succeeded"
	EventTypeRestartExhausted    = "com.tradeforge.orchestrator.restart.exhausted"
	EventTypeMaintenanceEntered  = "com.tradeforge.orchestrator.maintenance.entered"
	EventTypeMaintenanceExited   = "com.tradeforge.orchestrator.maintenance.exited"
	EventTypeSystemStarted       = "com.tradeforge.orchestrator.system.started"
	EventTypeSystemStopped       = "com.tradeforge.orchestrator.system.stopped"
)

// Observer defines the interface for objects that want to be notified
// of orchestration events. Observers should handle events quickly to
// avoid blocking other observers.
type Observer interface {
	// OnEvent is called when an event the observer subscribed to occurs.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used
	// for registration tracking and debugging.
	ObserverID() string
}

// Subject is implemented by event emitters. Observer errors are logged
// and never propagate to orchestration hot paths.
type Subject interface {
	// RegisterObserver adds an observer, optionally filtered by event
	// types. An empty filter receives all events. Re-registering an
	// observer id replaces its filter.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers an event to all matching observers.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
}

type observerEntry struct {
	observer   Observer
	eventTypes map[string]struct{} // empty means all events
}

// ObserverSubject is the default Subject implementation.
type ObserverSubject struct {
	mu        sync.RWMutex
	observers map[string]observerEntry
	logger    Logger
}

// NewObserverSubject creates an empty subject.
func NewObserverSubject(logger Logger) *ObserverSubject {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &ObserverSubject{
		observers: make(map[string]observerEntry),
		logger:    logger,
	}
}

// RegisterObserver implements Subject.
func (s *ObserverSubject) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}

	filter := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[observer.ObserverID()] = observerEntry{observer: observer, eventTypes: filter}
	return nil
}

// UnregisterObserver implements Subject.
func (s *ObserverSubject) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observers, observer.ObserverID())
	return nil
}

// NotifyObservers implements Subject. Delivery is sequential on the
// calling goroutine; observer errors are logged, never returned.
func (s *ObserverSubject) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	s.mu.RLock()
	entries := make([]observerEntry, 0, len(s.observers))
	for _, entry := range s.observers {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	for _, entry := range entries {
		if len(entry.eventTypes) > 0 {
			if _, ok := entry.eventTypes[event.Type()]; !ok {
				continue
			}
		}
		if err := entry.observer.OnEvent(ctx, event); err != nil {
			s.logger.Debug("Observer returned error",
				"observer", entry.observer.ObserverID(),
				"eventType", event.Type(),
				"error", err)
		}
	}
	return nil
}

// ObserverCount returns the number of registered observers.
func (s *ObserverSubject) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// FuncObserver adapts a function to the Observer interface.
type FuncObserver struct {
	ID string
	Fn func(ctx context.Context, event cloudevents.Event) error
}

// OnEvent implements Observer.
func (o *FuncObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	if o.Fn == nil {
		return nil
	}
	return o.Fn(ctx, event)
}

// ObserverID implements Observer.
func (o *FuncObserver) ObserverID() string {
	if o.ID == "" {
		return fmt.Sprintf("func-observer-%p", o)
	}
	return o.ID
}
