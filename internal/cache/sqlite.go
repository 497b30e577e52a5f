package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/olehluchkiv/llimpl/internal/keys"
)

const schema = `CREATE TABLE IF NOT EXISTS impl_cache (
	key        TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// SQLStore keeps entries in a single SQLite database, for caches shared
// across many checkouts where one file is easier to move around.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (creating if needed) the database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache directory %s", filepath.Dir(path))
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open cache database %s", path)
	}
	s, err := NewSQLStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and ensures the schema exists.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "create cache schema")
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Lookup(ctx context.Context, key keys.Key) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	var source string
	err := s.db.QueryRowContext(ctx, `SELECT source FROM impl_cache WHERE key = ?`, string(key)).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read cache entry %s", key.Short())
	}
	return []byte(source), true, nil
}

func (s *SQLStore) Put(ctx context.Context, key keys.Key, blob []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO impl_cache (key, source, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET source = excluded.source, created_at = excluded.created_at`,
		string(key), string(blob), time.Now().Unix())
	if err != nil {
		return errors.Wrapf(err, "write cache entry %s", key.Short())
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, length(CAST(source AS BLOB)), created_at FROM impl_cache ORDER BY key`)
	if err != nil {
		return nil, errors.Wrap(err, "list cache entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			k       string
			size    int64
			created int64
		)
		if err := rows.Scan(&k, &size, &created); err != nil {
			return nil, errors.Wrap(err, "scan cache entry")
		}
		entries = append(entries, Entry{Key: keys.Key(k), Size: size, ModTime: time.Unix(created, 0)})
	}
	return entries, errors.Wrap(rows.Err(), "list cache entries")
}

func (s *SQLStore) Remove(ctx context.Context, key keys.Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM impl_cache WHERE key = ?`, string(key)); err != nil {
		return errors.Wrapf(err, "remove cache entry %s", key.Short())
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
