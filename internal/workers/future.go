package workers

import (
	"context"
	"sync"
)

// Future is a value resolved once by a producer.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve sets the value. Later calls are ignored.
func (f *Future[T]) Resolve(v T) {
	f.once.Do(func() {
		f.val = v
		close(f.done)
	})
}

// Done is closed once the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, nil
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	}
}

// Run submits fn to p and returns a future of its result.
//
// When submission fails the future resolves with onSubmitErr(err).
func Run[T any](ctx context.Context, p *Pool, fn func() T, onSubmitErr func(error) T) *Future[T] {
	f := NewFuture[T]()
	if err := p.Submit(ctx, func() { f.Resolve(fn()) }); err != nil {
		f.Resolve(onSubmitErr(err))
	}
	return f
}
