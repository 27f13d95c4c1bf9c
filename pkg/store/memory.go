package store

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps the items of one listing in process.
type Memory[T any] struct {
	mu    sync.RWMutex
	items []T
}

// NewMemory creates a store holding items initially.
func NewMemory[T any](items ...T) *Memory[T] {
	return &Memory[T]{items: slices.Clone(items)}
}

// Write appends items.
func (m *Memory[T]) Write(ctx context.Context, items []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	return nil
}

// Clear removes every item.
func (m *Memory[T]) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	return nil
}

// Replace swaps the contents for items.
func (m *Memory[T]) Replace(ctx context.Context, items []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = slices.Clone(items)
	return nil
}

// Read returns a copy of the items in insertion order.
func (m *Memory[T]) Read(ctx context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items), nil
}

// Len returns the number of stored items.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
