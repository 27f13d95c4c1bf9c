package pagination

import (
	"errors"
	"fmt"
)

// Error classes carried by LoadError. Match them with errors.Is.
var (
	// ErrFetch indicates the page fetch itself failed.
	ErrFetch = errors.New("page fetch failed")

	// ErrStoreWrite indicates a fetched page could not be written to the store.
	ErrStoreWrite = errors.New("store write failed")

	// ErrClosed is returned by operations on a closed listing.
	ErrClosed = errors.New("listing closed")
)

// LoadError is the cause stored in an error LoadState.
type LoadError struct {
	Kind  Kind
	Page  int
	Class error
	Err   error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s load of page %d: %v: %v", e.Kind, e.Page, e.Class, e.Err)
	}
	return fmt.Sprintf("%s load of page %d: %v", e.Kind, e.Page, e.Class)
}

// Is matches the error class so errors.Is(err, ErrFetch) works.
func (e *LoadError) Is(target error) bool {
	return target == e.Class
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}
