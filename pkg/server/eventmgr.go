package server

import (
	"sync"

	"github.com/igor-ci/igor/pkg/metrics"
	"github.com/igor-ci/igor/pkg/protocol"
)

// EventSubscriber receives events matching its filter.
type EventSubscriber interface {
	ID() string
	PushEvent(e protocol.Event)
}

type eventSubscription struct {
	sub EventSubscriber
	// filter holds the event names the subscriber wants; empty means all
	filter map[string]bool
}

// EventManager fans events out to subscribers by filter.
type EventManager struct {
	mu            sync.Mutex
	subscriptions map[string]eventSubscription
}

// NewEventManager creates an empty event manager.
func NewEventManager() *EventManager {
	return &EventManager{subscriptions: make(map[string]eventSubscription)}
}

// Add registers the subscriber with a filter of event names. An empty
// filter subscribes to all events. A second Add replaces the filter.
func (m *EventManager) Add(sub EventSubscriber, events []string) {
	filter := make(map[string]bool, len(events))
	for _, name := range events {
		filter[name] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[sub.ID()] = eventSubscription{sub: sub, filter: filter}
}

// Discard removes the subscriber, if present.
func (m *EventManager) Discard(sub EventSubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, sub.ID())
}

// PushEvent delivers the event to every subscriber whose filter is empty or
// contains the event's name. Delivery iterates over a snapshot of the
// subscription table, so subscribers may be added or discarded during
// delivery.
func (m *EventManager) PushEvent(e protocol.Event) {
	m.mu.Lock()
	snapshot := make([]eventSubscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		snapshot = append(snapshot, s)
	}
	m.mu.Unlock()

	for _, s := range snapshot {
		if len(s.filter) == 0 || s.filter[e.Name] {
			s.sub.PushEvent(e)
			metrics.EventsDelivered.WithLabelValues(e.Name).Inc()
		}
	}
}
