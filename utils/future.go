package utils

import (
	"context"

	goutils "go.viam.com/utils"
)

// Future is the eventual result of an asynchronous stage. A Future resolves exactly once.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn in its own goroutine and returns a Future for its result. A panic in fn is
// captured and logged by goutils rather than crashing the process; the Future then resolves
// with ErrStagePanicked.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	goutils.PanicCapturingGo(func() {
		resolved := false
		defer func() {
			if !resolved {
				f.err = ErrStagePanicked
			}
			close(f.done)
		}()
		f.value, f.err = fn(ctx)
		resolved = true
	})
	return f
}

// Resolved returns a Future that already holds value and err.
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Then starts next once prev has resolved successfully, handing it prev's value. If prev fails,
// next never runs and the returned Future carries prev's error.
func Then[T, U any](ctx context.Context, prev *Future[T], next func(ctx context.Context, value T) (U, error)) *Future[U] {
	return Go(ctx, func(ctx context.Context) (U, error) {
		var zero U
		value, err := prev.Await(ctx)
		if err != nil {
			return zero, err
		}
		return next(ctx, value)
	})
}

// Await blocks until the Future resolves or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the Future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
