// Package output_storage records the output chunks of a process and replays them
// to any number of subscribers, late subscribers included.
package output_storage

import (
	"sync"
)

// OutputStorage is an append-only list of output chunks for one stream (stdout or stderr).
//
// Appends and subscriptions are safe for concurrent use. Every subscriber receives all
// chunks from the first one, in append order, and its channel is closed after Stop once
// everything was delivered.
type OutputStorage struct {
	mu     sync.RWMutex
	chunks [][]byte
	size   int
	closed bool

	notifier *Broadcaster[struct{}]
}

// NewOutputStorage creates a new, empty OutputStorage.
func NewOutputStorage() *OutputStorage {
	return &OutputStorage{notifier: NewBroadcaster[struct{}]()}
}

// Stop marks the stream as finished. Subscribers drain what is left and then see their channel closed.
func (s *OutputStorage) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notifier.Stop()
}

// Stopped reports whether Stop was called.
func (s *OutputStorage) Stopped() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Append adds a chunk. The slice is stored as is; callers that reuse buffers must pass a copy.
// Appends after Stop are dropped.
func (s *OutputStorage) Append(data []byte) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.chunks = append(s.chunks, data)
	s.size += len(data)
	s.mu.Unlock()

	s.notifier.Publish(struct{}{})
}

// next returns the chunk at idx, or whether the stream is over when idx is past the end.
func (s *OutputStorage) next(idx int) (chunk []byte, ok bool, closed bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < len(s.chunks) {
		return s.chunks[idx], true, s.closed
	}
	return nil, false, s.closed
}

// Subscribe returns a channel replaying every chunk from the beginning.
// The channel is closed after Stop, once all chunks were delivered.
func (s *OutputStorage) Subscribe(capacity int) <-chan []byte {
	ch := make(chan []byte, capacity)
	if s == nil {
		close(ch)
		return ch
	}
	// A stopped storage has no notifier left; the replay below never needs to wait then.
	notifier, _ := s.notifier.Subscribe()

	go func() {
		defer close(ch)
		idx := 0
		for {
			chunk, ok, closed := s.next(idx)
			if ok {
				idx++
				ch <- chunk
				continue
			}
			if closed || notifier == nil {
				return
			}
			<-notifier
		}
	}()

	return ch
}

// ForEach iterates over all stored chunks in append order until iter returns false.
func (s *OutputStorage) ForEach(iter func([]byte) bool) {
	if s == nil || iter == nil {
		return
	}
	s.mu.RLock()
	chunks := s.chunks
	s.mu.RUnlock()
	for _, c := range chunks {
		if !iter(c) {
			return
		}
	}
}

// Len returns the total number of bytes appended so far.
func (s *OutputStorage) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Bytes concatenates all stored chunks into a single slice.
func (s *OutputStorage) Bytes() []byte {
	out := make([]byte, 0, s.Len())
	s.ForEach(func(b []byte) bool {
		out = append(out, b...)
		return true
	})
	return out
}

// String returns all stored chunks concatenated into a single string.
func (s *OutputStorage) String() string {
	return string(s.Bytes())
}
