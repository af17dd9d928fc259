package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*TicketEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*TicketEvent, 0),
	}
}

// PublishTicketEvent records the event and returns any configured error.
func (m *MockPublisher) PublishTicketEvent(ctx context.Context, event *TicketEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*TicketEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TicketEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsOfKind returns events of a single kind.
func (m *MockPublisher) GetPublishedEventsOfKind(kind string) []*TicketEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TicketEvent, 0)
	for _, event := range m.publishedEvents {
		if event.Kind == kind {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on PublishTicketEvent.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// MockSubscriber replays a fixed list of events to each subscriber and then
// waits for the context to end.
type MockSubscriber struct {
	Events []*TicketEvent
	Err    error
}

// Subscribe delivers the configured events whose subject matches.
func (m *MockSubscriber) Subscribe(ctx context.Context, subject string, fn func(*TicketEvent)) error {
	if m.Err != nil {
		return m.Err
	}
	for _, event := range m.Events {
		if subject == "" || subject == StreamSubjects || subject == event.Subject() {
			fn(event)
		}
	}
	<-ctx.Done()
	return nil
}

// Close is a no-op.
func (m *MockSubscriber) Close() error { return nil }
