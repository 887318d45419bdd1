package runner

import "sync"

// Future is a value that is settled at most once, either resolved or rejected.
//
// Settling never blocks and nothing is reported when a future is never observed,
// so producers can settle futures nobody waits on.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewFuture creates an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve settles the future with v. It reports false if the future was already settled.
func (f *Future[T]) Resolve(v T) bool {
	settled := false
	f.once.Do(func() {
		f.val = v
		close(f.done)
		settled = true
	})
	return settled
}

// Reject settles the future with err. It reports false if the future was already settled.
func (f *Future[T]) Reject(err error) bool {
	settled := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Done is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future is settled and returns its outcome.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}
