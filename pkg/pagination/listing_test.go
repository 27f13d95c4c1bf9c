package pagination

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

// recordingStore keeps items in memory and logs every operation.
type recordingStore struct {
	mu       sync.Mutex
	items    []string
	ops      []string
	writeErr error
}

func newRecordingStore(items ...string) *recordingStore {
	return &recordingStore{items: items}
}

func (s *recordingStore) Write(ctx context.Context, items []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		s.ops = append(s.ops, "write-failed")
		return s.writeErr
	}
	s.ops = append(s.ops, "write:"+strings.Join(items, ","))
	s.items = append(s.items, items...)
	return nil
}

func (s *recordingStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "clear")
	s.items = nil
	return nil
}

func (s *recordingStore) Read(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items), nil
}

func (s *recordingStore) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ops)
}

func (s *recordingStore) setWriteErr(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// replacingStore adds an atomic Replace to recordingStore.
type replacingStore struct {
	*recordingStore
}

func (s replacingStore) Replace(ctx context.Context, items []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "replace:"+strings.Join(items, ","))
	s.items = slices.Clone(items)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Name = "test"
	cfg.PageSize = 3
	cfg.InitialLoadSize = 3
	cfg.PrefetchDistance = 1
	return cfg
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitSnapshot(t *testing.T, l *Listing[string], what string, cond func(Snapshot[string]) bool) Snapshot[string] {
	t.Helper()
	eventually(t, what, func() bool { return cond(l.Snapshot()) })
	return l.Snapshot()
}

func newTwoPageFetcher() *pageFetcher {
	return newPageFetcher(2, map[int][]string{
		1: {"a", "b", "c"},
		2: {"d", "e"},
	})
}

func loadTwoPages(t *testing.T, l *Listing[string]) {
	t.Helper()
	waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	if err := l.LoadMore(); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	waitSnapshot(t, l, "second page", func(s Snapshot[string]) bool {
		return s.Network.Status == StatusSuccess
	})
}

func TestListing_LoadsPagesInOrder(t *testing.T) {
	f := newTwoPageFetcher()
	l, err := NewNetworkListing[string](f, testConfig())
	if err != nil {
		t.Fatalf("NewNetworkListing() error = %v", err)
	}
	defer l.Close()

	snap := waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	if !slices.Equal(snap.Items, []string{"a", "b", "c"}) {
		t.Errorf("Items = %v, want [a b c]", snap.Items)
	}
	if snap.Exhausted {
		t.Error("Exhausted = true after first of two pages")
	}

	l.LoadMore()
	snap = waitSnapshot(t, l, "second page", func(s Snapshot[string]) bool {
		return s.Network.Status == StatusSuccess
	})
	if !slices.Equal(snap.Items, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("Items = %v, want [a b c d e]", snap.Items)
	}
	if !snap.Exhausted {
		t.Error("Exhausted = false after last page")
	}

	for i := 0; i < 5; i++ {
		l.LoadMore()
	}
	time.Sleep(20 * time.Millisecond)
	if got := f.Calls(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("calls = %v, want [1 2]", got)
	}
}

func TestListing_OverlappingLoadMoreFetchesOnce(t *testing.T) {
	f := newPageFetcher(5, map[int][]string{1: {"a"}, 2: {"b"}})
	l, _ := NewNetworkListing[string](f, testConfig())
	defer l.Close()

	waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})

	release := f.block(2)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.LoadMore()
		}()
	}
	wg.Wait()

	eventually(t, "page 2 request", func() bool { return len(f.Calls()) == 2 })
	release()
	snap := waitSnapshot(t, l, "second page", func(s Snapshot[string]) bool {
		return s.Network.Status == StatusSuccess
	})

	if got := f.Calls(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("calls = %v, want [1 2]", got)
	}
	if !slices.Equal(snap.Items, []string{"a", "b"}) {
		t.Errorf("Items = %v, want [a b]", snap.Items)
	}
}

func TestListing_RetryRequestsFailedPage(t *testing.T) {
	f := newPageFetcher(3, map[int][]string{1: {"a"}, 2: {"b"}, 3: {"c"}})
	l, _ := NewNetworkListing[string](f, testConfig())
	defer l.Close()

	waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})

	cause := errors.New("upstream unavailable")
	f.failOnce(2, cause)
	l.LoadMore()
	snap := waitSnapshot(t, l, "append error", func(s Snapshot[string]) bool {
		return s.Network.IsError()
	})
	if !errors.Is(snap.Network.Err, ErrFetch) || !errors.Is(snap.Network.Err, cause) {
		t.Errorf("Network.Err = %v, want fetch error wrapping cause", snap.Network.Err)
	}
	if !slices.Equal(snap.Items, []string{"a"}) {
		t.Errorf("Items during error = %v, want [a]", snap.Items)
	}

	l.Retry()
	snap = waitSnapshot(t, l, "retried page", func(s Snapshot[string]) bool {
		return s.Network.Status == StatusSuccess
	})
	if got := f.Calls(); !slices.Equal(got, []int{1, 2, 2}) {
		t.Errorf("calls = %v, want [1 2 2]", got)
	}
	if !slices.Equal(snap.Items, []string{"a", "b"}) {
		t.Errorf("Items = %v, want [a b]", snap.Items)
	}
}

func TestListing_RetryInitialFailure(t *testing.T) {
	f := newPageFetcher(1, map[int][]string{1: {"a"}})
	f.failOnce(1, errors.New("dns"))
	l, _ := NewNetworkListing[string](f, testConfig())
	defer l.Close()

	waitSnapshot(t, l, "initial error", func(s Snapshot[string]) bool {
		return s.Refresh.IsError()
	})

	l.LoadMore()
	l.Retry()
	snap := waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	if got := f.Calls(); !slices.Equal(got, []int{1, 1}) {
		t.Errorf("calls = %v, want [1 1]", got)
	}
	if !slices.Equal(snap.Items, []string{"a"}) {
		t.Errorf("Items = %v, want [a]", snap.Items)
	}
}

func TestListing_RefreshKeepsVisibleItems(t *testing.T) {
	f := newTwoPageFetcher()
	l, _ := NewNetworkListing[string](f, testConfig())
	defer l.Close()
	loadTwoPages(t, l)

	release := f.block(1)
	defer release()
	if err := l.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snap := waitSnapshot(t, l, "new generation loading", func(s Snapshot[string]) bool {
		return s.Generation == 2 && s.Refresh.IsLoading()
	})
	if !slices.Equal(snap.Items, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("Items after refresh = %v, want [a b c d e]", snap.Items)
	}
	if snap.Network.Status != StatusIdle {
		t.Errorf("Network = %v, want idle for new generation", snap.Network)
	}

	release()
	snap = waitSnapshot(t, l, "refreshed first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	if !slices.Equal(snap.Items, []string{"a", "b", "c"}) {
		t.Errorf("Items = %v, want [a b c]", snap.Items)
	}
	if snap.Exhausted {
		t.Error("Exhausted = true after refresh")
	}
}

func TestListing_RetiredFetchIsDiscarded(t *testing.T) {
	f := newPageFetcher(3, map[int][]string{1: {"a"}, 2: {"stale"}})
	l, _ := NewNetworkListing[string](f, testConfig())
	defer l.Close()

	waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	before := promtest.ToFloat64(StaleResults)

	release := f.block(2)
	l.LoadMore()
	waitSnapshot(t, l, "append loading", func(s Snapshot[string]) bool {
		return s.Network.IsLoading()
	})

	l.Refresh()
	waitSnapshot(t, l, "refreshed first page", func(s Snapshot[string]) bool {
		return s.Generation == 2 && s.Refresh.Status == StatusSuccess
	})

	release()
	eventually(t, "stale result", func() bool {
		return promtest.ToFloat64(StaleResults) > before
	})

	snap := l.Snapshot()
	if !slices.Equal(snap.Items, []string{"a"}) {
		t.Errorf("Items = %v, want [a]", snap.Items)
	}
	if snap.Network.Status != StatusIdle {
		t.Errorf("Network = %v, want idle", snap.Network)
	}
	if l.Factory().Generation() != 2 {
		t.Errorf("Generation() = %d, want 2", l.Factory().Generation())
	}
}

func TestListing_LoadAround(t *testing.T) {
	f := newPageFetcher(3, map[int][]string{1: {"a", "b", "c"}, 2: {"d", "e", "f"}})
	cfg := testConfig()
	cfg.PrefetchDistance = 1
	l, _ := NewNetworkListing[string](f, cfg)
	defer l.Close()

	waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})

	l.LoadAround(0)
	time.Sleep(20 * time.Millisecond)
	if got := len(f.Calls()); got != 1 {
		t.Fatalf("calls after LoadAround(0) = %d, want 1", got)
	}

	l.LoadAround(2)
	eventually(t, "prefetch", func() bool { return len(f.Calls()) == 2 })
}

func TestListing_Subscribe(t *testing.T) {
	f := newTwoPageFetcher()
	l, _ := NewNetworkListing[string](f, testConfig())
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for snap := range l.Subscribe(ctx) {
		if snap.Refresh.Status == StatusSuccess {
			if !slices.Equal(snap.Items, []string{"a", "b", "c"}) {
				t.Errorf("Items = %v, want [a b c]", snap.Items)
			}
			return
		}
	}
	t.Fatal("subscription ended before first page")
}

func TestListing_NotPaged(t *testing.T) {
	var calls int
	var mu sync.Mutex
	l, err := NewNotPagedListing(func(ctx context.Context) ([]string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return []string{"x", "y"}, nil
	}, testConfig())
	if err != nil {
		t.Fatalf("NewNotPagedListing() error = %v", err)
	}
	defer l.Close()

	snap := waitSnapshot(t, l, "load", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	if !snap.Exhausted {
		t.Error("Exhausted = false, want true")
	}

	l.LoadMore()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestListing_ConstructorErrors(t *testing.T) {
	if _, err := NewNetworkListing[string](nil, testConfig()); err == nil {
		t.Error("NewNetworkListing(nil) error = nil")
	}
	if _, err := NewCachedListing[string](newTwoPageFetcher(), nil, testConfig()); err == nil {
		t.Error("NewCachedListing(nil store) error = nil")
	}
	if _, err := NewNotPagedListing[string](nil, testConfig()); err == nil {
		t.Error("NewNotPagedListing(nil) error = nil")
	}
	if _, err := NewNotPagedCachedListing[string](nil, newRecordingStore(), testConfig()); err == nil {
		t.Error("NewNotPagedCachedListing(nil) error = nil")
	}
}

func TestListing_ClosedOperations(t *testing.T) {
	l, _ := NewNetworkListing[string](newTwoPageFetcher(), testConfig())
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ops := map[string]func() error{
		"LoadMore":   l.LoadMore,
		"Retry":      l.Retry,
		"Refresh":    l.Refresh,
		"LoadAround": func() error { return l.LoadAround(0) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrClosed) {
			t.Errorf("%s() error = %v, want ErrClosed", name, err)
		}
	}
}

func TestCachedListing_PublishesStoreBeforeFetch(t *testing.T) {
	f := newTwoPageFetcher()
	release := f.block(1)
	defer release()
	store := newRecordingStore("old1", "old2")

	l, err := NewCachedListing[string](f, store, testConfig())
	if err != nil {
		t.Fatalf("NewCachedListing() error = %v", err)
	}
	defer l.Close()

	waitSnapshot(t, l, "stored items", func(s Snapshot[string]) bool {
		return slices.Equal(s.Items, []string{"old1", "old2"})
	})

	release()
	snap := waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	if !slices.Equal(snap.Items, []string{"a", "b", "c"}) {
		t.Errorf("Items = %v, want [a b c]", snap.Items)
	}
}

func TestCachedListing_ClearsBeforeInitialWrite(t *testing.T) {
	f := newTwoPageFetcher()
	store := newRecordingStore("old")
	l, _ := NewCachedListing[string](f, store, testConfig())
	defer l.Close()
	loadTwoPages(t, l)

	if got := l.Items(); !slices.Equal(got, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("Items = %v, want [a b c d e]", got)
	}

	l.Refresh()
	snap := waitSnapshot(t, l, "refreshed first page", func(s Snapshot[string]) bool {
		return s.Generation == 2 && s.Refresh.Status == StatusSuccess
	})
	if !slices.Equal(snap.Items, []string{"a", "b", "c"}) {
		t.Errorf("Items after refresh = %v, want [a b c]", snap.Items)
	}

	want := []string{"clear", "write:a,b,c", "write:d,e", "clear", "write:a,b,c"}
	if got := store.Ops(); !slices.Equal(got, want) {
		t.Errorf("store ops = %v, want %v", got, want)
	}
}

func TestCachedListing_UsesReplace(t *testing.T) {
	store := replacingStore{newRecordingStore("old")}
	l, _ := NewCachedListing[string](newTwoPageFetcher(), store, testConfig())
	defer l.Close()
	loadTwoPages(t, l)

	want := []string{"replace:a,b,c", "write:d,e"}
	if got := store.Ops(); !slices.Equal(got, want) {
		t.Errorf("store ops = %v, want %v", got, want)
	}
}

func TestCachedListing_FailedFetchLeavesStoreUntouched(t *testing.T) {
	f := newTwoPageFetcher()
	cause := errors.New("503")
	f.failOnce(1, cause)
	store := newRecordingStore("kept")

	l, _ := NewCachedListing[string](f, store, testConfig())
	defer l.Close()

	snap := waitSnapshot(t, l, "initial error", func(s Snapshot[string]) bool {
		return s.Refresh.IsError()
	})
	if !errors.Is(snap.Refresh.Err, cause) {
		t.Errorf("Refresh.Err = %v, want %v", snap.Refresh.Err, cause)
	}
	waitSnapshot(t, l, "stored items", func(s Snapshot[string]) bool {
		return slices.Equal(s.Items, []string{"kept"})
	})
	if ops := store.Ops(); len(ops) != 0 {
		t.Errorf("store ops = %v, want none", ops)
	}
}

func TestCachedListing_FirstEverFailureIsEmpty(t *testing.T) {
	f := newTwoPageFetcher()
	f.failOnce(1, errors.New("offline"))
	l, _ := NewCachedListing[string](f, newRecordingStore(), testConfig())
	defer l.Close()

	snap := waitSnapshot(t, l, "initial error", func(s Snapshot[string]) bool {
		return s.Refresh.IsError()
	})
	if len(snap.Items) != 0 {
		t.Errorf("Items = %v, want empty", snap.Items)
	}
}

func TestCachedListing_StoreWriteFailure(t *testing.T) {
	f := newTwoPageFetcher()
	store := newRecordingStore()
	store.setWriteErr(errors.New("disk full"))

	l, _ := NewCachedListing[string](f, store, testConfig())
	defer l.Close()

	snap := waitSnapshot(t, l, "store error", func(s Snapshot[string]) bool {
		return s.Refresh.IsError()
	})
	if !errors.Is(snap.Refresh.Err, ErrStoreWrite) {
		t.Errorf("Refresh.Err = %v, want ErrStoreWrite", snap.Refresh.Err)
	}

	store.setWriteErr(nil)
	l.Retry()
	snap = waitSnapshot(t, l, "first page", func(s Snapshot[string]) bool {
		return s.Refresh.Status == StatusSuccess
	})
	if got := f.Calls(); !slices.Equal(got, []int{1, 1}) {
		t.Errorf("calls = %v, want [1 1]", got)
	}
	if !slices.Equal(snap.Items, []string{"a", "b", "c"}) {
		t.Errorf("Items = %v, want [a b c]", snap.Items)
	}
}

func TestCachedListing_FailedWriteAfterClearShowsStore(t *testing.T) {
	f := newTwoPageFetcher()
	store := newRecordingStore("x", "y")
	store.setWriteErr(errors.New("disk full"))

	l, _ := NewCachedListing[string](f, store, testConfig())
	defer l.Close()

	snap := waitSnapshot(t, l, "store error", func(s Snapshot[string]) bool {
		return s.Refresh.IsError()
	})
	stored, _ := store.Read(context.Background())
	if len(stored) != 0 {
		t.Fatalf("store = %v, want empty after clear", stored)
	}
	if got := store.Ops(); !slices.Equal(got, []string{"clear", "write-failed"}) {
		t.Errorf("ops = %v, want [clear write-failed]", got)
	}
	if len(snap.Items) != 0 {
		t.Errorf("Items = %v, want the empty store contents", snap.Items)
	}
}

func TestCachedListing_RefreshDoesNotSeed(t *testing.T) {
	f := newTwoPageFetcher()
	store := newRecordingStore()
	l, _ := NewCachedListing[string](f, store, testConfig())
	defer l.Close()
	loadTwoPages(t, l)

	release := f.block(1)
	defer release()
	l.Refresh()
	snap := waitSnapshot(t, l, "new generation", func(s Snapshot[string]) bool {
		return s.Generation == 2
	})
	if items := l.Factory().Current().Items(); len(items) != 0 {
		t.Errorf("data source items = %v, want none in cache mode", items)
	}
	if !slices.Equal(snap.Items, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("Items = %v, want store view [a b c d e]", snap.Items)
	}
}

func TestCachedListing_ManyRefreshesNeverInterleave(t *testing.T) {
	f := newPageFetcher(1, map[int][]string{1: {"a", "b"}})
	store := newRecordingStore()
	l, _ := NewCachedListing[string](f, store, testConfig())
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Refresh()
	}
	eventually(t, "settled", func() bool {
		s := l.Snapshot()
		return s.Generation == 6 && s.Refresh.Status == StatusSuccess
	})

	ops := store.Ops()
	for i, op := range ops {
		if op == "clear" && (i+1 >= len(ops) || ops[i+1] != "write:a,b") {
			t.Fatalf("clear at %d not followed by write: %v", i, ops)
		}
	}
	if got := l.Items(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Items = %v, want [a b]", got)
	}
}

func ExampleNewNetworkListing() {
	fetcher := PageFetcherFunc[string](func(ctx context.Context, page, size int) (ListResponse[string], error) {
		items := []string{fmt.Sprintf("item-%d", page)}
		return PageCountResponse(items, 2), nil
	})

	listing, err := NewNetworkListing[string](fetcher, DefaultConfig())
	if err != nil {
		panic(err)
	}
	defer listing.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for snap := range listing.Subscribe(ctx) {
		if snap.Refresh.Status == StatusSuccess {
			fmt.Println(snap.Items)
			break
		}
	}
	// Output: [item-1]
}
