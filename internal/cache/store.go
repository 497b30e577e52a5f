// Package cache persists synthesized declarations by content address.
//
// Entries are written once per key and never invalidated: a changed
// declaration derives a different key. Only fully validated output is
// ever handed to Put.
package cache

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/olehluchkiv/llimpl/internal/config"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/keys"
)

// ErrInvalidKey is returned for keys that are not 64 lowercase hex chars.
var ErrInvalidKey = errors.New("invalid cache key")

// Entry describes one stored declaration.
type Entry struct {
	Key     keys.Key
	Size    int64
	ModTime time.Time
}

// Store is a content-addressed blob store. Implementations must be safe for
// concurrent use, including concurrent Put calls for the same key: the last
// writer wins and readers never observe a partial entry.
type Store interface {
	// Lookup returns ok=false, err=nil when the key is absent.
	Lookup(ctx context.Context, key keys.Key) (blob []byte, ok bool, err error)
	Put(ctx context.Context, key keys.Key, blob []byte) error
	List(ctx context.Context) ([]Entry, error)
	// Remove is a no-op for absent keys.
	Remove(ctx context.Context, key keys.Key) error
	Close() error
}

// Open returns the store selected by cfg.Cache.Backend, rooted at the
// configured cache directory.
func Open(cfg config.Config, moduleRoot string) (Store, error) {
	dir := cfg.CacheDir(moduleRoot)
	switch cfg.Cache.Backend {
	case config.BackendDir, "":
		return NewDirStore(dir)
	case config.BackendSQLite:
		return OpenSQLStore(filepath.Join(dir, "cache.db"))
	default:
		return nil, errkind.Configf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func checkKey(key keys.Key) error {
	if !keys.Valid(string(key)) {
		return errors.Wrapf(ErrInvalidKey, "%q", string(key))
	}
	return nil
}
