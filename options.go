package packdir

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/packdir/packdir/packfile"
)

const (
	// DefaultCacheSize bounds the number of open pack handles kept warm.
	DefaultCacheSize = 16

	// DefaultRefreshInterval debounces directory rescans.
	DefaultRefreshInterval = time.Second
)

// Options configures a Store.
type Options struct {
	CacheSize       int
	DeleteCorrupt   bool
	RefreshInterval time.Duration
	Opener          Opener
	Logger          *logrus.Logger
}

// Option is a functional option for configuring Open.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		CacheSize:       DefaultCacheSize,
		RefreshInterval: DefaultRefreshInterval,
		Opener:          defaultOpener(),
		Logger:          logrus.StandardLogger(),
	}
}

// WithCacheSize sets how many open pack handles the store keeps warm.
func WithCacheSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.CacheSize = n
		}
	}
}

// WithDeleteCorrupt controls the corruption policy: when enabled, both
// sibling files of a corrupt pack are deleted from disk; otherwise they
// are left in place and the pack is excluded from the store, producing a
// fresh warning on every refresh until it disappears or is repaired.
func WithDeleteCorrupt(enabled bool) Option {
	return func(o *Options) { o.DeleteCorrupt = enabled }
}

// WithRefreshInterval sets the minimum interval between directory
// rescans.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.RefreshInterval = d
		}
	}
}

// WithOpener substitutes the pack-format reader.
func WithOpener(opener Opener) Option {
	return func(o *Options) {
		if opener != nil {
			o.Opener = opener
		}
	}
}

// WithLogger sets the logger used for corrupt-pack warnings.
func WithLogger(log *logrus.Logger) Option {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}

func defaultOpener() Opener {
	return OpenerFunc(func(path string) (Pack, error) {
		p, err := packfile.Open(path)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
