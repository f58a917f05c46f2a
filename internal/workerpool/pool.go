// Package workerpool runs blocking work on a fixed number of goroutines.
//
// Submit hands a task to the pool and returns a Future right away when a
// worker slot is free; otherwise it waits for one. Slots are granted in
// submission order. Await blocks until the task finishes or the caller's
// context ends. Abandoning a Future does not stop its task.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Pool bounds the number of tasks running at once.
type Pool struct {
	size  int
	slots *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	tasks  sync.WaitGroup
}

// New returns a pool running at most size tasks at a time. Sizes below 1
// are raised to 1.
func New(size int) *Pool {
	size = max(size, 1)
	return &Pool{size: size, slots: semaphore.NewWeighted(int64(size))}
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int { return p.size }

// Close rejects further submissions and waits for running tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.tasks.Wait()
}

// Future is the pending result of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await returns the task's result, or ctx.Err() if ctx ends first. In the
// latter case the task keeps running and its result is dropped.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on p. It blocks until a worker slot is free or ctx
// ends. ctx only governs the wait for a slot; fn receives no context.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (*Future[T], error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	p.tasks.Add(1)
	p.mu.RUnlock()

	if err := p.slots.Acquire(ctx, 1); err != nil {
		p.tasks.Done()
		return nil, err
	}

	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer p.tasks.Done()
		defer p.slots.Release(1)
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.value, f.err = zero, &PanicError{Value: r}
			}
		}()
		f.value, f.err = fn()
	}()
	return f, nil
}

// Run submits fn and waits for its result.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	f, err := Submit(ctx, p, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Await(ctx)
}
