// Package store provides the stores cache-mode listings write through to.
//
// Every store keeps the items of exactly one listing, addressed by a Key, in
// insertion order. Writes append, Clear removes the listing's items and
// Replace does both atomically:
//
//   - Memory keeps items in process
//   - Redis keeps items in a Redis list (RPUSH/LRANGE, MULTI/EXEC for Replace)
//   - Postgres keeps items in a table ordered by position
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	key := store.Key{Namespace: "orders", Listing: "open", Params: map[string]string{"region": "10000002"}}
//	orders := store.NewRedis(redisClient, key, store.JSON[Order](), store.DefaultRedisConfig())
//
//	listing, err := pagination.NewCachedListing[Order](fetcher, orders, pagination.DefaultConfig())
//
// # Codecs
//
// Items are encoded with a Codec. JSON uses json-iterator; Zstd wraps another
// codec and compresses every payload:
//
//	codec := store.Zstd(store.JSON[Order]())
//
// # Metrics
//
// The following Prometheus metrics are exported:
//   - listing_store_errors_total{backend,operation}: Failed store operations
//   - listing_store_bytes_written_total{backend}: Encoded payload bytes written
//   - listing_store_items_read_total{backend}: Items returned by reads
package store
