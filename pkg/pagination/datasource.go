package pagination

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/paged-listing/pkg/executor"
)

// host is the owner a DataSource reports to. Listing implements it.
type host[T any] interface {
	// isCurrent reports whether generation is the published data source.
	isCurrent(generation uint64) bool

	// post schedules task on the observation executor.
	post(task func())

	// network returns the executor fetches run on.
	network() executor.Executor

	// update applies fn to the snapshot if generation is still current.
	// Must be called on the observation executor.
	update(generation uint64, fn func(Snapshot[T]) Snapshot[T])

	// publishView replaces the visible items with the store view.
	// Must be called on the observation executor.
	publishView(view []T)
}

// fetchRequest is one page request. A failed request is kept verbatim for Retry.
type fetchRequest struct {
	kind Kind
	page int
	size int
}

// fetchResult is what a fetch (and in cache mode the store write) produced.
type fetchResult[T any] struct {
	items   []T
	pages   int
	hasNext bool
	view    []T
	hasView bool
	err     error
}

type sourceDeps[T any] struct {
	ctx     context.Context
	fetcher PageFetcher[T]
	cfg     Config
	cache   *CacheSync[T]
	host    host[T]
	logger  zerolog.Logger
}

// DataSource drives the fetches of one listing generation. It owns the page
// cursor and, without a store, the accumulated items.
//
// A DataSource keeps at most one fetch in flight and ignores every request
// once it is exhausted or retired.
type DataSource[T any] struct {
	generation uint64
	deps       sourceDeps[T]
	logger     zerolog.Logger

	mu               sync.Mutex
	nextPage         int
	initialRequested bool
	initialDone      bool
	exhausted        bool
	inFlight         bool
	retired          bool
	seeded           bool
	failed           *fetchRequest
	items            []T
}

func newDataSource[T any](generation uint64, deps sourceDeps[T]) *DataSource[T] {
	return &DataSource[T]{
		generation: generation,
		deps:       deps,
		logger:     deps.logger.With().Uint64("generation", generation).Logger(),
		nextPage:   deps.cfg.FirstPage,
	}
}

// Generation returns the identity of this data source within its listing.
func (d *DataSource[T]) Generation() uint64 {
	return d.generation
}

// Exhausted reports whether the last successful fetch reported no further page.
func (d *DataSource[T]) Exhausted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exhausted
}

// Retired reports whether a newer data source replaced this one.
func (d *DataSource[T]) Retired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retired
}

// NextPage returns the page the next LoadAfter would request.
func (d *DataSource[T]) NextPage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextPage
}

// Items returns a copy of the accumulated items. Always empty in cache mode.
func (d *DataSource[T]) Items() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.items)
}

// LoadInitial requests the first page. Only the first call has any effect.
func (d *DataSource[T]) LoadInitial() bool {
	d.mu.Lock()
	if d.retired || d.initialRequested {
		d.mu.Unlock()
		return false
	}
	d.initialRequested = true
	d.inFlight = true
	d.mu.Unlock()

	d.start(fetchRequest{kind: KindInitial, page: d.deps.cfg.FirstPage, size: d.deps.cfg.InitialLoadSize})
	return true
}

// LoadAfter requests the page following the last successful one.
// It returns false when the request was dropped.
func (d *DataSource[T]) LoadAfter() bool {
	d.mu.Lock()
	var reason string
	switch {
	case d.retired:
		reason = "retired"
	case d.inFlight:
		reason = "in_flight"
	case !d.initialDone:
		reason = "not_started"
	case d.exhausted:
		reason = "exhausted"
	}
	if reason != "" {
		d.mu.Unlock()
		DroppedRequests.WithLabelValues(reason).Inc()
		d.logger.Debug().Str("reason", reason).Msg("Load request dropped")
		return false
	}
	req := fetchRequest{kind: KindAppend, page: d.nextPage, size: d.deps.cfg.PageSize}
	d.inFlight = true
	d.failed = nil
	d.mu.Unlock()

	d.start(req)
	return true
}

// Retry re-issues the request that failed last. It returns false when there
// is nothing to retry or a fetch is already in flight.
func (d *DataSource[T]) Retry() bool {
	d.mu.Lock()
	if d.retired || d.inFlight || d.failed == nil {
		d.mu.Unlock()
		return false
	}
	req := *d.failed
	d.failed = nil
	d.inFlight = true
	d.mu.Unlock()

	d.logger.Debug().Int("page", req.page).Str("kind", req.kind.String()).Msg("Retrying page")
	d.start(req)
	return true
}

// ResetData installs seed as the starting content. It is honoured once, only
// without a store and only before the first fetch was requested.
func (d *DataSource[T]) ResetData(seed []T) bool {
	if d.deps.cache != nil {
		return false
	}
	d.mu.Lock()
	if d.retired || d.seeded || d.initialRequested {
		d.mu.Unlock()
		return false
	}
	d.seeded = true
	d.items = slices.Clone(seed)
	items := slices.Clone(seed)
	d.mu.Unlock()

	gen := d.generation
	d.deps.host.post(func() {
		d.deps.host.update(gen, func(s Snapshot[T]) Snapshot[T] {
			s.Items = items
			return s
		})
	})
	d.logger.Debug().Int("items", len(items)).Msg("Data source seeded")
	return true
}

func (d *DataSource[T]) retire() {
	d.mu.Lock()
	d.retired = true
	d.mu.Unlock()
}

func (d *DataSource[T]) start(req fetchRequest) {
	gen := d.generation
	d.deps.host.post(func() {
		d.deps.host.update(gen, func(s Snapshot[T]) Snapshot[T] {
			return s.withState(req.kind, Loading())
		})
	})
	d.deps.host.network().Execute(func() { d.fetch(req) })
}

// fetch runs on the network executor.
func (d *DataSource[T]) fetch(req fetchRequest) {
	kind := req.kind.String()
	start := time.Now()
	resp, err := d.deps.fetcher.FetchPage(d.deps.ctx, req.page, req.size)
	PageFetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	PageFetches.WithLabelValues(kind, outcome(err)).Inc()

	if err != nil {
		d.finish(req, fetchResult[T]{err: &LoadError{Kind: req.kind, Page: req.page, Class: ErrFetch, Err: err}})
		return
	}

	pageSize := d.deps.cfg.PageSize
	consumed := (req.page-d.deps.cfg.FirstPage)*pageSize + req.size
	res := fetchResult[T]{
		items:   resp.Items,
		pages:   req.size / pageSize,
		hasNext: resp.HasNext(consumed, req.size),
	}

	if d.deps.cache == nil {
		d.finish(req, res)
		return
	}

	current := func() bool { return d.deps.host.isCurrent(d.generation) }
	d.deps.cache.sync(d.deps.ctx, req.kind, resp.Items, current, func(view []T, ok bool, err error) {
		if err != nil {
			res.err = &LoadError{Kind: req.kind, Page: req.page, Class: ErrStoreWrite, Err: err}
		}
		res.view, res.hasView = view, ok
		d.finish(req, res)
	})
}

func (d *DataSource[T]) finish(req fetchRequest, res fetchResult[T]) {
	d.deps.host.post(func() { d.apply(req, res) })
}

// apply runs on the observation executor.
func (d *DataSource[T]) apply(req fetchRequest, res fetchResult[T]) {
	current := d.deps.host.isCurrent(d.generation)

	d.mu.Lock()
	d.inFlight = false
	if d.retired || !current {
		d.mu.Unlock()
		if res.hasView {
			d.deps.host.publishView(res.view)
		}
		StaleResults.Inc()
		d.logger.Debug().Int("page", req.page).Msg("Discarding result of retired data source")
		return
	}

	if res.err != nil {
		failed := req
		d.failed = &failed
		d.mu.Unlock()
		d.logger.Warn().Err(res.err).Int("page", req.page).Str("kind", req.kind.String()).Msg("Page load failed")
		d.deps.host.update(d.generation, func(s Snapshot[T]) Snapshot[T] {
			if res.hasView {
				s.Items = res.view
			}
			return s.withState(req.kind, Failed(res.err))
		})
		return
	}

	d.nextPage = req.page + res.pages
	d.exhausted = !res.hasNext
	if req.kind == KindInitial {
		d.initialDone = true
	}
	var items []T
	if d.deps.cache == nil {
		if req.kind == KindInitial {
			d.items = slices.Clone(res.items)
		} else {
			d.items = append(d.items, res.items...)
		}
		items = slices.Clone(d.items)
	}
	exhausted := d.exhausted
	d.mu.Unlock()

	d.logger.Debug().
		Int("page", req.page).
		Str("kind", req.kind.String()).
		Int("items", len(res.items)).
		Bool("exhausted", exhausted).
		Msg("Page loaded")

	d.deps.host.update(d.generation, func(s Snapshot[T]) Snapshot[T] {
		s = s.withState(req.kind, Succeeded())
		switch {
		case d.deps.cache == nil:
			s.Items = items
		case res.hasView:
			s.Items = res.view
		}
		s.Exhausted = exhausted
		return s
	})
}
