package modelcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS models (
	key        TEXT PRIMARY KEY,
	model_name TEXT NOT NULL,
	model_type TEXT NOT NULL,
	version    TEXT NOT NULL,
	payload    BLOB,
	size       INTEGER NOT NULL DEFAULT 0,
	cached_at  INTEGER NOT NULL,
	last_used  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_models_model_name ON models(model_name);
CREATE INDEX IF NOT EXISTS idx_models_model_type ON models(model_type);
CREATE INDEX IF NOT EXISTS idx_models_last_used ON models(last_used);
`

// Store is a SQLite-backed model cache. The database file and schema are
// created lazily on first access.
type Store struct {
	path string
	now  func() time.Time

	once    sync.Once
	db      *sql.DB
	initErr error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for lastUsed refreshes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store backed by the SQLite file at path.
// Nothing is opened until the first operation.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultPath returns the per-user cache location.
func DefaultPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "cv-editor", "models.db")
	}
	return filepath.Join(os.TempDir(), "cv-editor-models.db")
}

func (s *Store) open() (*sql.DB, error) {
	s.once.Do(func() {
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				s.initErr = &StorageError{Op: "init", Cause: err}
				return
			}
		}
		db, err := sql.Open("sqlite", s.path)
		if err != nil {
			s.initErr = &StorageError{Op: "open", Cause: err}
			return
		}
		db.SetMaxOpenConns(1) // SQLite: single writer
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			s.initErr = &StorageError{Op: "init schema", Cause: err}
			return
		}
		s.db = db
	})
	return s.db, s.initErr
}

// Close releases the database handle if it was opened.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the newest record for modelName/modelType, or nil on a miss.
// A hit refreshes and persists LastUsed.
func (s *Store) Get(ctx context.Context, modelName, modelType string) (*Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	var rec Record
	var key string
	var cachedAt, lastUsed int64
	err = db.QueryRowContext(ctx,
		`SELECT key, model_name, model_type, version, payload, size, cached_at, last_used
		 FROM models WHERE model_name = ? AND model_type = ?
		 ORDER BY cached_at DESC, key DESC LIMIT 1`,
		modelName, modelType,
	).Scan(&key, &rec.ModelName, &rec.ModelType, &rec.Version, &rec.Payload, &rec.Size, &cachedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &StorageError{Op: "get", Cause: err}
	}

	now := s.now()
	if _, err := db.ExecContext(ctx, `UPDATE models SET last_used = ? WHERE key = ?`, now.UnixMilli(), key); err != nil {
		return nil, &StorageError{Op: "touch", Cause: err}
	}
	rec.CachedAt = time.UnixMilli(cachedAt)
	rec.LastUsed = time.UnixMilli(now.UnixMilli())
	return &rec, nil
}

// Save upserts a record by its composite key.
// Zero CachedAt/LastUsed are filled with the current time.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("model cache save: nil record")
	}
	db, err := s.open()
	if err != nil {
		return err
	}

	if rec.Version == "" {
		rec.Version = DefaultVersion
	}
	now := s.now()
	if rec.CachedAt.IsZero() {
		rec.CachedAt = now
	}
	if rec.LastUsed.IsZero() {
		rec.LastUsed = now
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO models (key, model_name, model_type, version, payload, size, cached_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   payload = excluded.payload, size = excluded.size,
		   cached_at = excluded.cached_at, last_used = excluded.last_used`,
		rec.Key(), rec.ModelName, rec.ModelType, rec.Version, rec.Payload, rec.Size,
		rec.CachedAt.UnixMilli(), rec.LastUsed.UnixMilli(),
	)
	if err != nil {
		return &StorageError{Op: "save", Cause: err}
	}
	return nil
}

// Delete removes every version of modelName/modelType and returns how many were removed.
func (s *Store) Delete(ctx context.Context, modelName, modelType string) (int, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM models WHERE model_name = ? AND model_type = ?`, modelName, modelType)
	if err != nil {
		return 0, &StorageError{Op: "delete", Cause: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// List returns every cached record. Payloads are not loaded.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT model_name, model_type, version, size, cached_at, last_used FROM models ORDER BY key`)
	if err != nil {
		return nil, &StorageError{Op: "list", Cause: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var cachedAt, lastUsed int64
		if err := rows.Scan(&rec.ModelName, &rec.ModelType, &rec.Version, &rec.Size, &cachedAt, &lastUsed); err != nil {
			return nil, &StorageError{Op: "list", Cause: err}
		}
		rec.CachedAt = time.UnixMilli(cachedAt)
		rec.LastUsed = time.UnixMilli(lastUsed)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Cause: err}
	}
	return records, nil
}

// TotalSize sums the size of every record.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM models`).Scan(&total); err != nil {
		return 0, &StorageError{Op: "total size", Cause: err}
	}
	return total, nil
}

// Clear removes everything.
func (s *Store) Clear(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM models`); err != nil {
		return &StorageError{Op: "clear", Cause: err}
	}
	return nil
}

// EvictOlderThan deletes every record with now - lastUsed > maxAge.
func (s *Store) EvictOlderThan(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-maxAge).UnixMilli()
	res, err := db.ExecContext(ctx, `DELETE FROM models WHERE last_used < ?`, cutoff)
	if err != nil {
		return 0, &StorageError{Op: "evict", Cause: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
