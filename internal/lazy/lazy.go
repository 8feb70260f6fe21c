// Package lazy provides values that are built on first use
package lazy

import (
	"context"
	"sync"
)

// Loader builds the value
type Loader[T any] func(ctx context.Context) (T, error)

// Lazy holds a value that is built by its loader the first time it is
// requested. The result, error included, is kept for later calls.
type Lazy[T any] struct {
	loader Loader[T]
	value  T
	err    error
	loaded bool
	mutex  sync.Mutex
}

// New creates a lazy value with a loader function
func New[T any](loader Loader[T]) *Lazy[T] {
	return &Lazy[T]{
		loader: loader,
	}
}

// Get returns the value, loading it if necessary
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.loaded {
		l.value, l.err = l.loader(ctx)
		l.loaded = true
	}

	return l.value, l.err
}

// Peek returns the value only when it was loaded successfully, without
// triggering the loader
func (l *Lazy[T]) Peek() (T, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.loaded || l.err != nil {
		var zero T
		return zero, false
	}
	return l.value, true
}

// IsLoaded returns true if the loader has run
func (l *Lazy[T]) IsLoaded() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.loaded
}
