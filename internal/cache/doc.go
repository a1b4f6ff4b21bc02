// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cache provides a bounded LRU cache for backend objects that must
// be destroyed explicitly.
//
// Entries pushed out by a newer one, or dropped by Clear, are handed to the
// eviction callback so the owner can release them:
//
//	c := cache.New[key, hal.RenderPipeline](64, func(_ key, p hal.RenderPipeline) {
//		retired = append(retired, p)
//	})
//	p, err := c.GetOrCreate(k, build)
//
// # Thread Safety
//
// Cache is safe for concurrent use. The eviction callback runs with the
// cache lock held and must not call back into the cache.
package cache
