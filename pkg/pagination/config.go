package pagination

import (
	"github.com/Sternrassler/paged-listing/pkg/executor"
)

const (
	// DefaultFirstPage is the first page identifier used by DefaultConfig.
	DefaultFirstPage = 1

	// DefaultPageSize is the page size used when none is configured.
	DefaultPageSize = 20

	defaultName = "listing"
)

// Config holds listing configuration.
type Config struct {
	// Name identifies the listing in logs.
	Name string

	// FirstPage is the identifier of the first remote page. Zero is valid for
	// zero-based endpoints; negative values fall back to DefaultFirstPage.
	FirstPage int

	// PageSize is the number of items requested per append load.
	PageSize int

	// InitialLoadSize is the number of items requested by the first load.
	// It is rounded up to a multiple of PageSize.
	InitialLoadSize int

	// PrefetchDistance is how close to the end of the list LoadAround
	// has to get before the next page is requested.
	PrefetchDistance int

	// NetworkExecutor runs page fetches (default: pool of 5 workers).
	NetworkExecutor executor.Executor

	// StorageExecutor runs store writes in cache mode (default: one worker).
	// It must be serial for clear-then-write to stay a single unit.
	StorageExecutor executor.Executor

	// MainExecutor applies every snapshot update (default: one worker).
	// It must be serial.
	MainExecutor executor.Executor
}

// DefaultConfig returns the default listing configuration.
func DefaultConfig() Config {
	return Config{
		Name:             defaultName,
		FirstPage:        DefaultFirstPage,
		PageSize:         DefaultPageSize,
		InitialLoadSize:  DefaultPageSize,
		PrefetchDistance: DefaultPageSize,
	}
}

func (c Config) normalize() Config {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.FirstPage < 0 {
		c.FirstPage = DefaultFirstPage
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.InitialLoadSize < c.PageSize {
		c.InitialLoadSize = c.PageSize
	}
	if rem := c.InitialLoadSize % c.PageSize; rem != 0 {
		c.InitialLoadSize += c.PageSize - rem
	}
	if c.PrefetchDistance <= 0 {
		c.PrefetchDistance = c.PageSize
	}
	return c
}
