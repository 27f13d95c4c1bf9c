// Package observe provides a small observable value used to publish listing
// snapshots to consumers.
package observe

import (
	"context"
	"sync"

	"github.com/Sternrassler/paged-listing/pkg/executor"
)

// Value holds the latest value of T and notifies listeners on change.
// Listener callbacks run on the executor given to NewValue, in publish order
// when that executor is serial.
type Value[T any] struct {
	exec executor.Executor

	mu        sync.RWMutex
	value     T
	version   uint64
	nextID    uint64
	listeners map[uint64]func(T)
}

// NewValue creates a Value holding initial. A nil executor delivers inline.
func NewValue[T any](initial T, exec executor.Executor) *Value[T] {
	if exec == nil {
		exec = executor.Inline
	}
	return &Value[T]{
		exec:      exec,
		value:     initial,
		listeners: make(map[uint64]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Version returns how many times the value has been replaced.
func (v *Value[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Set replaces the value and notifies listeners.
func (v *Value[T]) Set(val T) {
	v.Update(func(T) (T, bool) { return val, true })
}

// Update applies fn to the current value atomically. When fn reports no change
// nothing is published. The resulting value is returned either way.
func (v *Value[T]) Update(fn func(current T) (T, bool)) T {
	v.mu.Lock()
	next, changed := fn(v.value)
	if !changed {
		current := v.value
		v.mu.Unlock()
		return current
	}
	v.value = next
	v.version++
	listeners := make([]func(T), 0, len(v.listeners))
	for _, l := range v.listeners {
		listeners = append(listeners, l)
	}
	v.mu.Unlock()

	for _, l := range listeners {
		v.exec.Execute(func() { l(next) })
	}
	return next
}

// Listen registers fn for future changes. The returned func removes it.
func (v *Value[T]) Listen(fn func(T)) (cancel func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.listeners, id)
			v.mu.Unlock()
		})
	}
}

// Subscribe returns a channel that first yields the current value and then
// the latest value after each change. Slow readers only see the most recent
// value. The channel is closed when ctx is done.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	var mu sync.Mutex
	closed := false
	send := func(val T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- val:
		default:
			// drop the stale value so the newest one fits
			select {
			case <-ch:
			default:
			}
			ch <- val
		}
	}

	cancel := v.Listen(send)
	send(v.Get())

	go func() {
		<-ctx.Done()
		cancel()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}
