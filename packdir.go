package packdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/packdir/packdir/packfile"
)

// Store is the pack store façade: it scans a directory for pack pairs,
// opens them through an Opener, keeps a bounded working set of handles
// warm, and dispatches queries across every known pack.
//
// A Store is long-lived and single-threaded: calls never block on each
// other internally, and callers must not mutate the store while a query
// is in flight. Safety under concurrent external writers comes from
// tolerant reading, not locking.
type Store struct {
	dir           string
	opener        Opener
	ws            *workingSet
	limiter       *rate.Limiter
	force         bool
	deleteCorrupt bool
	log           *logrus.Logger
}

// Open constructs a store over dir and performs one initial refresh, so
// the newest packs already on disk start out warm. Corrupt packs found
// during that first pass are handled by the corruption policy rather than
// failing Open.
func Open(dir string, opts ...Option) (*Store, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Store{
		dir:           dir,
		opener:        options.Opener,
		ws:            newWorkingSet(options.CacheSize, nil),
		limiter:       rate.NewLimiter(rate.Every(options.RefreshInterval), 1),
		deleteCorrupt: options.DeleteCorrupt,
		log:           options.Logger,
	}

	if _, err := s.refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory the store reads from.
func (s *Store) Dir() string { return s.dir }

// Known returns the base paths of every pack the store currently knows,
// sorted for stable output.
func (s *Store) Known() []string {
	paths := s.ws.paths()
	sort.Strings(paths)
	return paths
}

// Close releases every cached pack handle. The store itself needs no
// other teardown.
func (s *Store) Close() error {
	s.ws.close()
	return nil
}

// MarkForRefresh resets the debounce so the very next Refresh bypasses
// rate limiting. Use it when out-of-band knowledge says new data just
// landed.
func (s *Store) MarkForRefresh() { s.force = true }

// Refresh rescans the directory and opens every pack discovered since the
// last scan, newest ending up warmest. Calls within the debounce interval
// are no-ops unless forced via MarkForRefresh. It returns the base paths
// of newly adopted packs, newest first.
func (s *Store) Refresh() ([]string, error) {
	if !s.force && !s.limiter.Allow() {
		return nil, nil
	}
	s.force = false
	return s.refresh()
}

func (s *Store) refresh() ([]string, error) {
	packs, err := ScanDirSorted(s.dir)
	if err != nil {
		return nil, fmt.Errorf("packdir: scan %s: %w", s.dir, err)
	}

	var discovered []string // newest first
	for _, info := range packs {
		if !s.ws.known(info.Path) {
			discovered = append(discovered, info.Path)
		}
	}

	// Insert oldest first: combined with front-insertion in the working
	// set, the freshest pack ends up most recently used.
	var added []string
	for i := len(discovered) - 1; i >= 0; i-- {
		path := discovered[i]
		p, err := s.opener.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // lost a race with a concurrent repack
			}
			s.reportCorrupt(path, err)
			continue
		}
		s.ws.add(p)
		added = append(added, path)
	}
	slices.Reverse(added)
	return added, nil
}

// RunOnPacks runs query against every known pack until it reports done.
// Results equivalent to ErrNotFound are expected misses and are skipped
// silently; any other query or open failure marks the pack bad without
// aborting the pass. On a full miss the store refreshes once and re-runs
// the query against exactly the newly discovered packs. Bad packs are
// resolved by the corruption policy after the passes complete.
func (s *Store) RunOnPacks(query func(Pack) (done bool, err error)) error {
	done, bad := s.runPass(query)
	if !done {
		newPacks, err := s.Refresh()
		if err != nil {
			s.resolveBad(bad)
			return err
		}
		if len(newPacks) > 0 {
			more := s.runPassOn(newPacks, query)
			bad = append(bad, more...)
		}
	}
	s.resolveBad(bad)
	return nil
}

// GetMissing narrows keys by querying each known pack, short-circuiting
// once nothing remains, and returns the keys no pack contains.
func (s *Store) GetMissing(keys KeySet) (KeySet, error) {
	remaining := make(KeySet, len(keys))
	for k := range keys {
		remaining[k] = struct{}{}
	}
	if len(remaining) == 0 {
		return remaining, nil
	}
	err := s.RunOnPacks(func(p Pack) (bool, error) {
		remaining = p.GetMissing(remaining)
		return len(remaining) == 0, nil
	})
	return remaining, err
}

type badPack struct {
	path string
	err  error
}

// runPass walks the whole working set once, opening cold packs on demand.
func (s *Store) runPass(query func(Pack) (bool, error)) (bool, []badPack) {
	var bad []badPack
	var gone []string
	done := false

	for path, p := range s.ws.packs() {
		if p == nil {
			opened, err := s.opener.Open(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					gone = append(gone, path)
					continue
				}
				bad = append(bad, badPack{path, err})
				continue
			}
			s.ws.touched(path, opened)
			p = opened
		}

		stop, err := query(p)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			bad = append(bad, badPack{path, err})
			continue
		}
		if stop {
			done = true
			break
		}
	}

	for _, path := range gone {
		s.ws.remove(path)
	}
	return done, bad
}

// runPassOn re-runs query against exactly the given packs, which Refresh
// just adopted; any already evicted again are reopened for the duration
// of the call.
func (s *Store) runPassOn(paths []string, query func(Pack) (bool, error)) []badPack {
	var bad []badPack
	for _, path := range paths {
		p, cached := s.ws.cached(path)
		if !cached {
			opened, err := s.opener.Open(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					s.ws.remove(path)
					continue
				}
				bad = append(bad, badPack{path, err})
				continue
			}
			p = opened
		}

		stop, err := query(p)
		if !cached {
			_ = p.Close()
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			bad = append(bad, badPack{path, err})
			continue
		}
		if stop {
			break
		}
	}
	return bad
}

// resolveBad applies the corruption policy to every pack a pass deferred.
func (s *Store) resolveBad(bad []badPack) {
	for _, b := range bad {
		s.ws.remove(b.path)
		s.reportCorrupt(b.path, b.err)
	}
}

func (s *Store) reportCorrupt(path string, err error) {
	if s.deleteCorrupt {
		_ = os.Remove(path + packfile.IndexSuffix)
		_ = os.Remove(path + packfile.DataSuffix)
		s.log.WithField("pack", path).WithError(err).Warn("removed corrupt pack")
		return
	}
	s.log.WithField("pack", path).WithError(err).Warn("ignoring corrupt pack")
}
