package pagination

// ListResponse is one page of a remote collection plus the metadata needed
// to decide whether another page exists.
type ListResponse[T any] struct {
	// Items are the page's items in remote order.
	Items []T

	// TotalPages is the page count reported by the remote (e.g. X-Pages). Zero when unknown.
	TotalPages int

	// TotalEntities is the item count across all pages. Zero when unknown.
	TotalEntities int

	// HasMore is consulted when neither total is known.
	HasMore bool
}

// PageCountResponse builds a response for endpoints that report a page count.
func PageCountResponse[T any](items []T, totalPages int) ListResponse[T] {
	return ListResponse[T]{Items: items, TotalPages: totalPages}
}

// EntityCountResponse builds a response for endpoints that report an item count.
func EntityCountResponse[T any](items []T, totalEntities int) ListResponse[T] {
	return ListResponse[T]{Items: items, TotalEntities: totalEntities}
}

// HasNext reports whether another page follows a request of size items
// once consumed items (this request included) have been covered. TotalPages
// counts pages of the request's own size. TotalEntities wins over TotalPages,
// which wins over HasMore.
func (r ListResponse[T]) HasNext(consumed, size int) bool {
	switch {
	case r.TotalEntities > 0:
		return consumed < r.TotalEntities
	case r.TotalPages > 0:
		return consumed < r.TotalPages*size
	default:
		return r.HasMore
	}
}
