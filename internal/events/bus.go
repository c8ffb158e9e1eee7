package events

import "sync"

// Handler receives published events.
type Handler func(Event)

// Bus fans events out to subscribers from a single dispatch goroutine.
// Publish never blocks; when the queue is full the event is dropped.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler

	queue chan Event
	done  chan struct{}
}

// NewBus creates a bus and starts its dispatch goroutine.
func NewBus() *Bus {
	b := &Bus{
		subs:  make(map[int]Handler),
		queue: make(chan Event, 100),
		done:  make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Bus) loop() {
	for {
		select {
		case e := <-b.queue:
			b.mu.RLock()
			handlers := make([]Handler, 0, len(b.subs))
			for _, h := range b.subs {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			// Handlers run outside the lock so they may unsubscribe.
			for _, h := range handlers {
				h(e)
			}
		case <-b.done:
			return
		}
	}
}

// Subscribe registers a handler and returns its unsubscribe func.
// Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish queues an event for dispatch. Events published after Close, or
// while the queue is full, are dropped.
func (b *Bus) Publish(e Event) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.queue <- e:
	default:
	}
}

// Close stops the dispatch goroutine. Queued but undispatched events are
// dropped.
func (b *Bus) Close() {
	close(b.done)
}
