package promotion

import (
	"context"
	"sync"
)

// Broadcaster is the in-process signal. Publish reaches every listener in this
// process, including the one belonging to the publisher.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[int]chan struct{}
	nextID    int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[int]chan struct{})}
}

// Publish never blocks. A listener that has not yet consumed the previous signal
// gets the two coalesced into one.
func (b *Broadcaster) Publish(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *Broadcaster) listenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *Broadcaster) Listen(ctx context.Context, notify func()) error {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			notify()
		}
	}
}
