package pagination

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/paged-listing/pkg/executor"
	"github.com/Sternrassler/paged-listing/pkg/logging"
	"github.com/Sternrassler/paged-listing/pkg/observe"
)

// Snapshot is the immutable state of a listing. Items and load states are
// always published together.
type Snapshot[T any] struct {
	Items      []T
	Refresh    LoadState
	Network    LoadState
	Generation uint64
	Exhausted  bool
}

// withState moves the state of kind to next. Invalid transitions leave the
// snapshot unchanged.
func (s Snapshot[T]) withState(kind Kind, next LoadState) Snapshot[T] {
	cur := &s.Network
	if kind == KindInitial {
		cur = &s.Refresh
	}
	if !canTransition(cur.Status, next.Status) {
		return s
	}
	*cur = next
	return s
}

// Listing is a remotely paginated collection presented as one growing list.
// It is safe for concurrent use.
type Listing[T any] struct {
	name    string
	cfg     Config
	cache   *CacheSync[T]
	factory *Factory[T]
	state   *observe.Value[Snapshot[T]]

	main    executor.Executor
	net     executor.Executor
	storage executor.Executor
	owned   []*executor.Pool

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	logger zerolog.Logger
}

// NewNetworkListing creates a listing that keeps fetched items in memory.
// The first page is requested immediately.
func NewNetworkListing[T any](fetcher PageFetcher[T], cfg Config) (*Listing[T], error) {
	if fetcher == nil {
		return nil, errors.New("pagination: page fetcher is required")
	}
	return newListing(fetcher, nil, cfg), nil
}

// NewCachedListing creates a listing that writes every fetched page to store
// and shows the store contents. The stored items are published before the
// first page is requested.
func NewCachedListing[T any](fetcher PageFetcher[T], store Store[T], cfg Config) (*Listing[T], error) {
	if fetcher == nil {
		return nil, errors.New("pagination: page fetcher is required")
	}
	if store == nil {
		return nil, errors.New("pagination: store is required")
	}
	return newListing(fetcher, store, cfg), nil
}

// NewNotPagedListing creates an in-memory listing over an endpoint that
// returns everything at once.
func NewNotPagedListing[T any](fetch func(ctx context.Context) ([]T, error), cfg Config) (*Listing[T], error) {
	if fetch == nil {
		return nil, errors.New("pagination: fetch function is required")
	}
	return NewNetworkListing(NotPaged(fetch), cfg)
}

// NewNotPagedCachedListing creates a cache-mode listing over an endpoint that
// returns everything at once.
func NewNotPagedCachedListing[T any](fetch func(ctx context.Context) ([]T, error), store Store[T], cfg Config) (*Listing[T], error) {
	if fetch == nil {
		return nil, errors.New("pagination: fetch function is required")
	}
	return NewCachedListing(NotPaged(fetch), store, cfg)
}

func newListing[T any](fetcher PageFetcher[T], store Store[T], cfg Config) *Listing[T] {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())

	l := &Listing[T]{
		name:   cfg.Name,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		logger: logging.ForListing("pagination", cfg.Name),
	}

	l.main = cfg.MainExecutor
	if l.main == nil {
		l.main = l.own(executor.NewSerial(cfg.Name + "-main"))
	}
	if store != nil {
		l.storage = cfg.StorageExecutor
		if l.storage == nil {
			l.storage = l.own(executor.NewSerial(cfg.Name + "-storage"))
		}
		l.cache = NewCacheSync(store, l.storage, l.logger)
	}
	l.net = cfg.NetworkExecutor
	if l.net == nil {
		l.net = l.own(executor.NewPool(cfg.Name+"-network", executor.DefaultNetworkWorkers))
	}

	l.state = observe.NewValue(Snapshot[T]{}, l.main)
	l.factory = newFactory(func(gen uint64) *DataSource[T] {
		return newDataSource(gen, sourceDeps[T]{
			ctx:     ctx,
			fetcher: fetcher,
			cfg:     cfg,
			cache:   l.cache,
			host:    l,
			logger:  l.logger,
		})
	}, l.started, l.main)

	if l.cache != nil {
		l.cache.load(ctx, func(view []T) {
			l.post(func() { l.publishView(view) })
		})
	}

	l.logger.Info().
		Int("first_page", cfg.FirstPage).
		Int("page_size", cfg.PageSize).
		Bool("cached", store != nil).
		Msg("Listing created")

	l.post(func() { l.factory.Create() })
	return l
}

func (l *Listing[T]) own(p *executor.Pool) executor.Executor {
	l.owned = append(l.owned, p)
	return p
}

// started resets the load states for a new generation and requests its first page.
func (l *Listing[T]) started(src *DataSource[T]) {
	gen := src.Generation()
	l.post(func() {
		l.update(gen, func(s Snapshot[T]) Snapshot[T] {
			s.Refresh = Idle()
			s.Network = Idle()
			s.Exhausted = false
			return s
		})
	})
	src.LoadInitial()
}

// Name returns the configured listing name.
func (l *Listing[T]) Name() string {
	return l.name
}

// Snapshot returns the latest published state.
func (l *Listing[T]) Snapshot() Snapshot[T] {
	return l.state.Get()
}

// Items returns the visible items.
func (l *Listing[T]) Items() []T {
	return slices.Clone(l.state.Get().Items)
}

// RefreshState returns the load state of the first page.
func (l *Listing[T]) RefreshState() LoadState {
	return l.state.Get().Refresh
}

// NetworkState returns the load state of the pages after the first.
func (l *Listing[T]) NetworkState() LoadState {
	return l.state.Get().Network
}

// Subscribe delivers the current snapshot and every later one until ctx is
// done. Slow readers only see the latest snapshot.
func (l *Listing[T]) Subscribe(ctx context.Context) <-chan Snapshot[T] {
	return l.state.Subscribe(ctx)
}

// Listen calls fn on the main executor for every published snapshot.
// fn must not call Close.
func (l *Listing[T]) Listen(fn func(Snapshot[T])) (cancel func()) {
	return l.state.Listen(fn)
}

// Factory returns the data source factory backing the listing.
func (l *Listing[T]) Factory() *Factory[T] {
	return l.factory
}

// LoadMore requests the next page from the current data source.
// Requests made while a fetch is in flight or after exhaustion are dropped.
func (l *Listing[T]) LoadMore() error {
	if l.closed.Load() {
		return ErrClosed
	}
	if src := l.factory.Current(); src != nil {
		src.LoadAfter()
	}
	return nil
}

// LoadAround signals that the item at index is being shown and requests the
// next page once index is within the prefetch distance of the end.
func (l *Listing[T]) LoadAround(index int) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if index < len(l.state.Get().Items)-l.cfg.PrefetchDistance {
		return nil
	}
	return l.LoadMore()
}

// Retry re-issues the failed request of the current data source.
func (l *Listing[T]) Retry() error {
	if l.closed.Load() {
		return ErrClosed
	}
	if src := l.factory.Current(); src != nil {
		src.Retry()
	}
	return nil
}

// Refresh replaces the current data source with a new one that starts again
// from the first page. Without a store the visible items carry over as the
// seed of the new source until its first page arrives.
func (l *Listing[T]) Refresh() error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.post(func() {
		var seed []T
		if l.cache == nil {
			seed = l.state.Get().Items
			if seed == nil {
				seed = []T{}
			}
		}
		src := l.factory.TriggerReset(seed)
		l.logger.Info().Uint64("generation", src.Generation()).Int("items", len(seed)).Msg("Listing refreshed")
	})
	return nil
}

// Close retires the current data source, cancels in-flight fetches and stops
// the executors the listing created. It must not be called from a listener.
func (l *Listing[T]) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	if src := l.factory.Current(); src != nil {
		src.retire()
	}
	// Owned pools were created main, storage, network; close them in reverse.
	for i := len(l.owned) - 1; i >= 0; i-- {
		l.owned[i].Close()
	}
	l.logger.Info().Msg("Listing closed")
	return nil
}

func (l *Listing[T]) isCurrent(generation uint64) bool {
	return !l.closed.Load() && l.factory.isCurrent(generation)
}

func (l *Listing[T]) post(task func()) {
	l.main.Execute(task)
}

func (l *Listing[T]) network() executor.Executor {
	return l.net
}

func (l *Listing[T]) update(generation uint64, fn func(Snapshot[T]) Snapshot[T]) {
	if !l.isCurrent(generation) {
		return
	}
	l.state.Update(func(cur Snapshot[T]) (Snapshot[T], bool) {
		next := fn(cur)
		next.Generation = generation
		return next, true
	})
}

func (l *Listing[T]) publishView(view []T) {
	if l.closed.Load() {
		return
	}
	l.state.Update(func(cur Snapshot[T]) (Snapshot[T], bool) {
		cur.Items = view
		return cur, true
	})
}
