package events

import (
	"sync"
)

// Handler receives committed events
type Handler func(event *Event)

// Bus fans committed events out to in-process subscribers.
// Handlers run synchronously on the publishing goroutine and must not block.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType]map[int]Handler
	all      map[int]Handler
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType]map[int]Handler),
		all:      make(map[int]Handler),
	}
}

// Subscribe registers handler for one event type and returns its unsubscribe func
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]Handler)
	}
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// SubscribeAll registers handler for every event type
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.all[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// Publish delivers event to its type subscribers and to catch-all subscribers
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[event.Type])+len(b.all))
	for _, h := range b.handlers[event.Type] {
		targets = append(targets, h)
	}
	for _, h := range b.all {
		targets = append(targets, h)
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(event)
	}
}
