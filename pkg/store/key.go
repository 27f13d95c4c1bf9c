package store

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies the stored items of one listing.
type Key struct {
	// Namespace groups listings of the same kind (e.g., "orders")
	Namespace string

	// Listing names the listing within its namespace (e.g., "open")
	Listing string

	// Params are the request parameters that distinguish listings (e.g., {"region": "10000002"})
	Params map[string]string
}

// String generates a deterministic key string.
// Format: listing:namespace:name:param1=val1:param2=val2
//
// Example:
//
//	listing:orders:open:region=10000002
func (k Key) String() string {
	parts := []string{"listing"}

	if ns := strings.Trim(k.Namespace, ":"); ns != "" {
		parts = append(parts, ns)
	}
	if name := strings.Trim(k.Listing, ":"); name != "" {
		parts = append(parts, name)
	}

	// Sorted for determinism
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params[key]))
		}
	}

	return strings.Join(parts, ":")
}
