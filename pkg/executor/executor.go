// Package executor provides the execution contexts listings run their work on.
//
// A listing uses three of them: a network context for page fetches, a storage
// context for cache writes and a main context on which every observable update
// is applied. Any Executor can be supplied; Pool covers the default cases.
package executor

// Default sizes used when a listing creates its own executors.
const (
	// DefaultNetworkWorkers is the size of the default network pool.
	DefaultNetworkWorkers = 5

	// DefaultStorageWorkers keeps store writes serialized.
	DefaultStorageWorkers = 1
)

// Executor runs submitted tasks. Execute must not block waiting for the task.
type Executor interface {
	Execute(task func())
}

// Func adapts a plain function to the Executor interface.
type Func func(task func())

// Execute implements Executor.
func (f Func) Execute(task func()) {
	f(task)
}

// Inline runs every task on the calling goroutine. Mostly useful in tests.
var Inline Executor = Func(func(task func()) { task() })
