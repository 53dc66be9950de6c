// Package cache provides a generic, thread-safe LRU cache.
//
// The dispatch core uses it to bound per-process state keyed by unbounded
// identifiers: live in-app feeds per user and parsed notification
// templates. An evict callback releases resources held by dropped values:
//
//	feeds := cache.NewLRUCache[string, *feed](10_000)
//	feeds.SetEvictCallback(func(_ string, f *feed) { f.close() })
//	f := feeds.GetOrCreate(userID, newFeed)
package cache
