// Package cache provides the session item cache.
//
// The cache holds every catalog item fetched during a session under two keys:
// its numeric id (the primary store) and its lower-cased name (a secondary
// index pointing at the id). Both keys are registered under one lock, so a
// reader never sees an item under one key and not the other.
//
// Features:
//
// - At most one network fetch per item for the lifetime of the cache
// - Concurrent resolves of the same key share one fetch (singleflight)
// - Concurrent resolves of different keys run in parallel
// - No eviction and no invalidation
// - Prometheus metrics for hits, misses and fetch errors
//
// # Basic Usage
//
//	api := catalog.NewAPI(httpClient, catalog.DefaultBaseURL)
//	c := cache.New(api, logger)
//
//	item, err := c.Resolve(ctx, 25)
//	if err != nil {
//		return err
//	}
//
//	// Served from the name index, no request.
//	same, _ := c.ResolveKey(ctx, cache.NameKey("pikachu"))
//
// # Metrics
//
//   - dex_cache_hits_total{key} - Hits by key kind ("id", "name")
//   - dex_cache_misses_total - Misses that led to a fetch
//   - dex_cache_entries - Items currently cached
//   - dex_cache_fetch_errors_total - Failed fetches
package cache
