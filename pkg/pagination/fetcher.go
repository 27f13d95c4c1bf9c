package pagination

import "context"

// PageFetcher resolves one page of remote data.
// Implementations own their timeouts and should honour ctx cancellation.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page, pageSize int) (ListResponse[T], error)
}

// PageFetcherFunc is a function adapter that implements PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, page, pageSize int) (ListResponse[T], error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, page, pageSize int) (ListResponse[T], error) {
	return f(ctx, page, pageSize)
}

// NotPaged wraps an endpoint that returns its whole collection at once.
// The single response always reports that no further page exists.
func NotPaged[T any](fetch func(ctx context.Context) ([]T, error)) PageFetcher[T] {
	return PageFetcherFunc[T](func(ctx context.Context, _, _ int) (ListResponse[T], error) {
		items, err := fetch(ctx)
		if err != nil {
			return ListResponse[T]{}, err
		}
		return ListResponse[T]{Items: items}, nil
	})
}
