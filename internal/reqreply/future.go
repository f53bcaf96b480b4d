package reqreply

import (
	"context"
	"sync"
)

// future is a value that is set exactly once. Waiters select on Done.
type future[T any] struct {
	ch   chan struct{}
	once sync.Once

	// val and err are written before ch is closed and only read after.
	val T
	err error
}

func newFuture[T any]() *future[T] {
	return &future[T]{ch: make(chan struct{})}
}

// resolve completes the future. It reports whether this call won; later
// calls are ignored.
func (f *future[T]) resolve(val T, err error) bool {
	won := false
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.ch)
		won = true
	})
	return won
}

// Done is closed once the future is resolved.
func (f *future[T]) Done() <-chan struct{} {
	return f.ch
}

// isDone reports whether the future has been resolved.
func (f *future[T]) isDone() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// result returns the resolved value. It must only be called once Done is
// closed.
func (f *future[T]) result() (T, error) {
	return f.val, f.err
}

// Wait blocks until the future is resolved or ctx is done.
func (f *future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.ch:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
