package infrastructure

import (
	"log"
	"sync"

	"telereply/internal/entities"
	"telereply/internal/interfaces"
)

// EventBroadcaster fans chat events out to every connected observer. A failed
// send removes only that observer; delivery to the rest continues.
type EventBroadcaster struct {
	mu        sync.Mutex
	observers map[interfaces.Observer]struct{}
}

func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		observers: make(map[interfaces.Observer]struct{}),
	}
}

func (b *EventBroadcaster) Connect(o interfaces.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[o] = struct{}{}
}

func (b *EventBroadcaster) Disconnect(o interfaces.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, o)
}

// Count returns the number of connected observers.
func (b *EventBroadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

func (b *EventBroadcaster) Broadcast(event entities.ChatEvent) {
	b.mu.Lock()
	observers := make([]interfaces.Observer, 0, len(b.observers))
	for o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.Unlock()

	for _, o := range observers {
		if err := o.SendEvent(event); err != nil {
			log.Printf("[WS] broadcast error, dropping observer: %v", err)
			b.Disconnect(o)
		}
	}
}
