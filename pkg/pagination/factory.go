package pagination

import (
	"slices"
	"sync"

	"github.com/Sternrassler/paged-listing/pkg/executor"
	"github.com/Sternrassler/paged-listing/pkg/observe"
)

// Factory creates the data sources of one listing and publishes the current one.
// Every data source gets a higher generation than the one before it; all older
// generations are retired.
type Factory[T any] struct {
	build   func(generation uint64) *DataSource[T]
	started func(src *DataSource[T])
	current *observe.Value[*DataSource[T]]

	mu          sync.Mutex
	generation  uint64
	active      *DataSource[T]
	pendingSeed []T
	hasSeed     bool
}

// newFactory wires build and the started hook, which runs after every Create.
func newFactory[T any](build func(uint64) *DataSource[T], started func(*DataSource[T]), exec executor.Executor) *Factory[T] {
	return &Factory[T]{
		build:   build,
		started: started,
		current: observe.NewValue[*DataSource[T]](nil, exec),
	}
}

// Create builds a new data source, retires the previous one and hands the
// pending seed, if any, to the new source.
func (f *Factory[T]) Create() *DataSource[T] {
	f.mu.Lock()
	f.generation++
	src := f.build(f.generation)
	prev := f.active
	f.active = src
	seed, hasSeed := f.pendingSeed, f.hasSeed
	f.pendingSeed, f.hasSeed = nil, false
	f.mu.Unlock()

	if prev != nil {
		prev.retire()
	}
	if hasSeed {
		src.ResetData(seed)
	}
	f.current.Set(src)
	if f.started != nil {
		f.started(src)
	}
	return src
}

// TriggerReset registers seed for the next data source and creates it.
// A nil seed means the new source starts empty.
func (f *Factory[T]) TriggerReset(seed []T) *DataSource[T] {
	if seed != nil {
		f.mu.Lock()
		f.pendingSeed, f.hasSeed = slices.Clone(seed), true
		f.mu.Unlock()
	}
	return f.Create()
}

// Current returns the published data source, nil before the first Create.
func (f *Factory[T]) Current() *DataSource[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Sources exposes the current-source slot for observation.
func (f *Factory[T]) Sources() *observe.Value[*DataSource[T]] {
	return f.current
}

// Generation returns the generation of the most recent data source.
func (f *Factory[T]) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

func (f *Factory[T]) isCurrent(generation uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active != nil && f.active.generation == generation
}
