package output_storage

import (
	"fmt"
	"sync"
)

// Broadcaster fans a value out to every subscriber without ever blocking the publisher.
//
// Each subscriber channel has a buffer of one. When a subscriber is behind, its pending
// value is replaced by the newest one, so subscribers always observe the latest publish.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	stopped     bool
}

// NewBroadcaster creates an empty, running broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subscribers: make(map[chan T]struct{})}
}

// Subscribe registers a new subscriber. It fails once the broadcaster is stopped.
func (b *Broadcaster[T]) Subscribe() (chan T, error) {
	ch := make(chan T, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil, fmt.Errorf("failed to subscribe: broadcaster is stopped")
	}
	b.subscribers[ch] = struct{}{}
	return ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Publish delivers msg to all current subscribers.
func (b *Broadcaster[T]) Publish(msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	for s := range b.subscribers {
		select {
		case s <- msg:
		default:
			// subscriber is behind: replace its pending value with the newest one
			select {
			case <-s:
			default:
			}
			s <- msg
		}
	}
}

// Stop closes every subscriber channel. Further publishes are dropped.
func (b *Broadcaster[T]) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	for s := range b.subscribers {
		close(s)
	}
	b.subscribers = nil
}
