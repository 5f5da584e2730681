package packdir

import (
	"iter"

	"github.com/packdir/packdir/lru"
)

// closePack releases a handle evicted from the working-set cache.
var closePack = lru.DisposerFunc[string, Pack](func(_ string, p Pack) {
	_ = p.Close()
})

// workingSet is an LRU-ordered view over the known universe of packs: the
// full set of pack identities plus a strictly bounded subset of open
// handles treated as hot. Iteration favors recently touched packs but
// always visits every known pack, so a cold pack is merely slow to reach,
// never hidden.
//
// Recency tracking is deliberately coarse: only the single most recently
// yielded pack carries a deferred "touch", confirmed when iteration moves
// past it or when the set next changes. A pass that drains without the
// consumer stopping drops the final touch, so a pack that was only glanced
// at is not promoted.
type workingSet struct {
	all map[string]struct{}
	hot *lru.Cache[string, Pack]

	// Deferred touch of the most recently yielded pack. A cold pending
	// handle was opened by the consumer and is not yet owned by the
	// cache.
	pending     string
	pendingPack Pack
	pendingCold bool
	hasPending  bool
}

// newWorkingSet seeds the cache with the first capacity packs of initial,
// which the caller supplies newest-first; surplus handles are closed and
// remembered as identities only.
func newWorkingSet(capacity int, initial []Pack) *workingSet {
	ws := &workingSet{
		all: make(map[string]struct{}),
		hot: lru.New[string, Pack](capacity),
	}
	seed := initial
	if len(seed) > capacity {
		seed = seed[:capacity]
	}
	// Insert oldest first so the newest pack ends up most recently used.
	for i := len(seed) - 1; i >= 0; i-- {
		ws.insert(seed[i])
	}
	for _, p := range initial[len(seed):] {
		ws.all[p.Path()] = struct{}{}
		_ = p.Close()
	}
	return ws
}

func (ws *workingSet) insert(p Pack) {
	ws.all[p.Path()] = struct{}{}
	ws.hot.AddWithDisposer(p.Path(), p, closePack)
}

// add registers p as the most recently touched pack.
func (ws *workingSet) add(p Pack) {
	ws.flushPending()
	ws.insert(p)
}

// remove forgets a pack entirely, closing its cached handle if any.
func (ws *workingSet) remove(path string) {
	delete(ws.all, path)
	ws.hot.Remove(path)
	if ws.hasPending && ws.pending == path {
		ws.dropPending()
	}
}

func (ws *workingSet) known(path string) bool {
	_, ok := ws.all[path]
	return ok
}

func (ws *workingSet) size() int { return len(ws.all) }

func (ws *workingSet) cachedLen() int { return ws.hot.Len() }

// cached returns the open handle for path without touching its recency.
func (ws *workingSet) cached(path string) (Pack, bool) {
	return ws.hot.Peek(path)
}

// paths returns every known pack base path, unordered.
func (ws *workingSet) paths() []string {
	out := make([]string, 0, len(ws.all))
	for path := range ws.all {
		out = append(out, path)
	}
	return out
}

// touched hands over the handle the consumer opened for the pack it was
// just yielded; promotion still waits for the next step.
func (ws *workingSet) touched(path string, p Pack) {
	if ws.hasPending && ws.pending == path {
		ws.pendingPack = p
		ws.pendingCold = true
		return
	}
	ws.insert(p)
}

// packs iterates the working set: hot packs first, most recently used
// first, then every known pack without a cached handle. A nil handle means
// the consumer must open the pack itself and may report it via touched.
// The consumer must drain or abandon the sequence before mutating the set.
func (ws *workingSet) packs() iter.Seq2[string, Pack] {
	return func(yield func(string, Pack) bool) {
		ws.flushPending()
		visited := make(map[string]struct{}, len(ws.all))
		for _, path := range ws.hot.Keys() {
			ws.flushPending()
			if !ws.known(path) {
				continue
			}
			visited[path] = struct{}{}
			// The handle may have been evicted by a touch since the
			// pass started; the consumer reopens it in that case.
			p, _ := ws.hot.Peek(path)
			ws.setPending(path, p)
			if !yield(path, p) {
				return
			}
		}
		for path := range ws.all {
			if _, ok := visited[path]; ok {
				continue
			}
			ws.flushPending()
			if !ws.known(path) {
				continue
			}
			p, _ := ws.hot.Peek(path)
			ws.setPending(path, p)
			if !yield(path, p) {
				return
			}
		}
		ws.dropPending()
	}
}

func (ws *workingSet) setPending(path string, p Pack) {
	ws.pending = path
	ws.pendingPack = p
	ws.pendingCold = false
	ws.hasPending = true
}

// flushPending confirms the deferred touch: a cached pack is promoted to
// most recently used, a cold handle is adopted into the cache.
func (ws *workingSet) flushPending() {
	if !ws.hasPending {
		return
	}
	path, p, cold := ws.pending, ws.pendingPack, ws.pendingCold
	ws.clearPending()
	if cold {
		if ws.known(path) {
			ws.insert(p)
		} else {
			_ = p.Close()
		}
		return
	}
	_, _ = ws.hot.Get(path) // touch if it survived
}

// dropPending discards the deferred touch without promoting anything.
func (ws *workingSet) dropPending() {
	if !ws.hasPending {
		return
	}
	p, cold := ws.pendingPack, ws.pendingCold
	ws.clearPending()
	if cold && p != nil {
		_ = p.Close()
	}
}

func (ws *workingSet) clearPending() {
	ws.pending = ""
	ws.pendingPack = nil
	ws.pendingCold = false
	ws.hasPending = false
}

// close releases every cached handle and any pending cold handle.
func (ws *workingSet) close() {
	ws.dropPending()
	ws.hot.Clear()
}
