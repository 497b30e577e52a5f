package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/olehluchkiv/llimpl/internal/keys"
)

// Ext is the file extension of directory store entries. It is not ".go" so
// a cache placed inside a module is never compiled.
const Ext = ".llimpl"

// DirStore keeps one file per key: <dir>/<key>.llimpl.
type DirStore struct {
	dir string
}

// NewDirStore creates dir if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache directory %s", dir)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *DirStore) Dir() string { return s.dir }

// Path returns the file that holds key.
func (s *DirStore) Path(key keys.Key) string {
	return filepath.Join(s.dir, string(key)+Ext)
}

func (s *DirStore) Lookup(_ context.Context, key keys.Key) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read cache entry %s", key.Short())
	}
	return data, true, nil
}

// Put writes blob to a temporary file in the store directory and renames it
// over the entry, so a crash mid-write leaves either the old entry or none.
func (s *DirStore) Put(_ context.Context, key keys.Key, blob []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+string(key)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp cache file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp cache file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp cache file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp cache file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrap(err, "chmod temp cache file")
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return errors.Wrapf(err, "commit cache entry %s", key.Short())
	}
	committed = true
	return nil
}

func (s *DirStore) List(_ context.Context) ([]Entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list cache directory %s", s.dir)
	}
	var entries []Entry
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, Ext) {
			continue
		}
		k := strings.TrimSuffix(name, Ext)
		if !keys.Valid(k) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		entries = append(entries, Entry{Key: keys.Key(k), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *DirStore) Remove(_ context.Context, key keys.Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove cache entry %s", key.Short())
	}
	return nil
}

func (s *DirStore) Close() error { return nil }
