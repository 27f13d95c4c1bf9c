package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/paged-listing/pkg/executor"
)

// Store is the persistence surface of a cache-mode listing.
// Write appends in the given order, Clear removes every item of the listing
// and Read returns the current contents in insertion order.
type Store[T any] interface {
	Write(ctx context.Context, items []T) error
	Clear(ctx context.Context) error
	Read(ctx context.Context) ([]T, error)
}

// Replacer is implemented by stores that can clear and write atomically.
type Replacer[T any] interface {
	Replace(ctx context.Context, items []T) error
}

// CacheSync writes fetched pages through to a Store.
// All of its store calls are issued from the storage executor.
type CacheSync[T any] struct {
	store  Store[T]
	exec   executor.Executor
	logger zerolog.Logger
}

// NewCacheSync creates a synchronizer writing to store on exec.
// A nil exec runs writes on the calling goroutine.
func NewCacheSync[T any](store Store[T], exec executor.Executor, logger zerolog.Logger) *CacheSync[T] {
	if store == nil {
		panic("pagination: store cannot be nil")
	}
	if exec == nil {
		exec = executor.Inline
	}
	return &CacheSync[T]{store: store, exec: exec, logger: logger}
}

// OnInitialPage clears the listing's stored items and writes the first page.
// When the clear succeeds but the write fails the store is left empty.
func (c *CacheSync[T]) OnInitialPage(ctx context.Context, items []T) error {
	if r, ok := c.store.(Replacer[T]); ok {
		err := r.Replace(ctx, items)
		StoreOperations.WithLabelValues("replace", outcome(err)).Inc()
		if err != nil {
			return fmt.Errorf("replace stored items: %w", err)
		}
		return nil
	}

	err := c.store.Clear(ctx)
	StoreOperations.WithLabelValues("clear", outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("clear stored items: %w", err)
	}
	return c.OnAppendPage(ctx, items)
}

// OnAppendPage writes items after the ones already stored.
func (c *CacheSync[T]) OnAppendPage(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	err := c.store.Write(ctx, items)
	StoreOperations.WithLabelValues("write", outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("write %d items: %w", len(items), err)
	}
	return nil
}

// View reads the store contents.
func (c *CacheSync[T]) View(ctx context.Context) ([]T, error) {
	items, err := c.store.Read(ctx)
	StoreOperations.WithLabelValues("read", outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("read stored items: %w", err)
	}
	return items, nil
}

// sync writes one page on the storage executor and re-reads the view.
// The write is skipped when current reports the source was retired; done then
// receives no view and no error. The view is re-read after failed writes too;
// a failed re-read is only logged.
func (c *CacheSync[T]) sync(ctx context.Context, kind Kind, items []T, current func() bool, done func(view []T, ok bool, err error)) {
	c.exec.Execute(func() {
		if !current() {
			done(nil, false, nil)
			return
		}

		var err error
		if kind == KindInitial {
			err = c.OnInitialPage(ctx, items)
		} else {
			err = c.OnAppendPage(ctx, items)
		}
		if err != nil {
			// A clear may have gone through before the failed write.
			view, verr := c.View(ctx)
			if verr != nil {
				c.logger.Warn().Err(verr).Msg("Store view unavailable after failed write")
				done(nil, false, err)
				return
			}
			done(view, true, err)
			return
		}

		view, err := c.View(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Store view unavailable after write")
			done(nil, false, nil)
			return
		}
		done(view, true, nil)
	})
}

// load reads the store on the storage executor and hands the view to done.
func (c *CacheSync[T]) load(ctx context.Context, done func(view []T)) {
	c.exec.Execute(func() {
		view, err := c.View(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Initial store read failed")
			return
		}
		done(view)
	})
}
