package packdir

import (
	"os"

	"github.com/opencontainers/go-digest"
)

// KeySet is the query currency of the store: a set of content digests.
type KeySet = map[digest.Digest]struct{}

// ErrNotFound signals a key absent from a pack. It is expected control
// flow: RunOnPacks swallows it and moves on to the next pack. Openers and
// packs should return errors satisfying errors.Is(err, ErrNotFound).
// The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Pack is an open handle onto one index/data sibling pair.
type Pack interface {
	// GetMissing returns the subset of keys not present in this pack.
	GetMissing(keys KeySet) KeySet

	// Path returns the base path shared by the pair.
	Path() string

	// IndexPath returns the path of the index file.
	IndexPath() string

	// DataPath returns the path of the data file.
	DataPath() string

	// Close releases the underlying handles. It must be safe to call
	// more than once.
	Close() error
}

// Opener opens packs by base path. Malformed or unreadable content must
// surface as an error distinguishable from fs.ErrNotExist, which is
// reserved for the benign race of a pack vanishing mid-operation.
type Opener interface {
	Open(path string) (Pack, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Pack, error)

func (f OpenerFunc) Open(path string) (Pack, error) { return f(path) }
