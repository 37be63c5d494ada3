package events

import (
	"sync"

	"github.com/primastock/inventory-service/internal/domain"
	"github.com/rs/zerolog/log"
)

const defaultBuffer = 64

// Bus is an in-process fan-out for domain events. Publishing never
// blocks the mutation path: a subscriber that cannot keep up loses
// events and a warning is logged instead.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan domain.Event
	buffer      int
	closed      bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{buffer: buffer}
}

// Subscribe registers a new subscriber channel. The channel is closed
// when the bus shuts down.
func (b *Bus) Subscribe() <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Event, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Warn().
				Str("event", event.EventName()).
				Str("event_id", event.EventID()).
				Msg("event subscriber buffer full, dropping event")
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

// StartLogSubscriber consumes events and logs them. It stands in for
// the external notification consumer; returns a done channel that is
// closed once the subscriber drains.
func StartLogSubscriber(b *Bus) <-chan struct{} {
	ch := b.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for event := range ch {
			log.Info().
				Str("event", event.EventName()).
				Str("event_id", event.EventID()).
				Interface("payload", event).
				Msg("domain event")
		}
	}()

	return done
}
