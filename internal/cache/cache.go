// Package cache holds the process-local caches for derived content:
// rendered markdown keyed by source and highlight theme, and response
// ETags. Everything here is recomputable from the mirrored repository, so
// the caches are bounded LRUs whose entries drop freely and are never
// persisted.
package cache

import lru "github.com/hashicorp/golang-lru/v2"

func mustLRU[K comparable, V any](entries int) *lru.Cache[K, V] {
	c, err := lru.New[K, V](entries)
	if err != nil {
		panic(err)
	}
	return c
}

// SetRenderedCapacity resizes the rendered-content cache to the configured
// entry count. Zero and negative counts keep the compiled-in default.
func SetRenderedCapacity(entries int) {
	if entries > 0 {
		renderedCache.Resize(entries)
	}
}
