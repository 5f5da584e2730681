// Package packdir provides a local, append-only pack store: a directory
// of immutable index/data file pairs ("packs") queried as one key-value
// store for content-addressed blobs.
//
// The store keeps an LRU-bounded working set of open pack handles warm,
// rescans the directory with rate limiting when a query misses every known
// pack, and tolerates concurrent external writers: half-written pairs are
// never paired, files vanishing mid-operation are treated as a benign
// race, and corrupt packs are quarantined (or deleted) without failing the
// query that found them.
//
// Basic usage:
//
//	store, _ := packdir.Open("/repo/packs")
//	defer store.Close()
//
//	// Which of these blobs do we still need to fetch?
//	missing, _ := store.GetMissing(packdir.KeySet{
//	    d1: {}, d2: {},
//	})
//
//	// A concurrent process just wrote a pack; skip the debounce once.
//	store.MarkForRefresh()
//	newPacks, _ := store.Refresh()
//
//	// Run an arbitrary query across all known packs.
//	_ = store.RunOnPacks(func(p packdir.Pack) (bool, error) {
//	    ...
//	})
//
// Packs are read through the packfile subpackage by default; any reader
// can be substituted with WithOpener. The generic cache machinery lives in
// the lru subpackage.
package packdir
