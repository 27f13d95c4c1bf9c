// Package pagination presents a remotely paginated collection as one growing list.
//
// A Listing turns "load more" signals into page-indexed fetches, tracks the
// load state of the first page (refresh state) and of every following page
// (network state) and can optionally write every fetched page through a Store,
// in which case the store becomes the only read path for the visible items.
//
// Example usage:
//
//	fetcher := pagination.PageFetcherFunc[Order](func(ctx context.Context, page, size int) (pagination.ListResponse[Order], error) {
//		return api.Orders(ctx, page, size)
//	})
//	listing, err := pagination.NewNetworkListing[Order](fetcher, pagination.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer listing.Close()
//
//	for snap := range listing.Subscribe(ctx) {
//		render(snap.Items, snap.Refresh, snap.Network)
//	}
//
// The listing:
//   - Fetches the first page as soon as it is created
//   - Fetches the next page on LoadMore (or LoadAround near the end of the list)
//   - Keeps at most one fetch in flight per data source; extra requests are dropped
//   - Stops fetching once a response reports no further page
//   - Re-issues exactly the failed request on Retry
//   - Replaces its data source on Refresh and ignores results of the retired one
//
// Fetches run on the network executor, cache writes on the storage executor and
// every snapshot update on the main executor, so subscribers observe list and
// load state changes atomically and in order.
package pagination
