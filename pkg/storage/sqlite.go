package storage

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/memento/pkg/errs"
)

// SQLiteConfig configures the embedded file-based driver.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" opens an in-process
	// database that does not survive the process.
	Path string `yaml:"path"`
}

// SQLiteStore is an embedded file-based Store backed by database/sql and
// github.com/mattn/go-sqlite3.
type SQLiteStore struct {
	cfg SQLiteConfig
	mu  sync.RWMutex
	db  *sql.DB
}

// NewSQLiteStore creates a SQLiteStore. Connect opens the database file.
func NewSQLiteStore(cfg SQLiteConfig) *SQLiteStore {
	return &SQLiteStore{cfg: cfg}
}

func (s *SQLiteStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := sql.Open("sqlite3", s.cfg.Path)
	if err != nil {
		return errs.Wrap(errs.Backend, err, "open sqlite database").WithComponent("SQLiteStore")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errs.Wrap(errs.Backend, err, "ping sqlite database").WithComponent("SQLiteStore")
	}

	// SQLite serializes writers; a single connection avoids "database is
	// locked" errors under concurrent access from this process.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`); err != nil {
		db.Close()
		return errs.Wrap(errs.Backend, err, "create kv table").WithComponent("SQLiteStore")
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_list (
			key   TEXT NOT NULL,
			idx   INTEGER NOT NULL,
			value BLOB NOT NULL,
			PRIMARY KEY (key, idx)
		)`); err != nil {
		db.Close()
		return errs.Wrap(errs.Backend, err, "create kv_list table").WithComponent("SQLiteStore")
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errs.Wrap(errs.Backend, err, "close sqlite database").WithComponent("SQLiteStore")
	}
	return nil
}

func (s *SQLiteStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errs.New(errs.Backend, "storage not connected").WithComponent("SQLiteStore")
	}
	return s.db, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	var value []byte
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Backend, err, "get key").WithComponent("SQLiteStore")
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errs.Wrap(errs.Backend, err, "set key").WithComponent("SQLiteStore")
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Backend, err, "begin delete transaction").WithComponent("SQLiteStore")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errs.Wrap(errs.Backend, err, "delete key").WithComponent("SQLiteStore")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv_list WHERE key = ?`, key); err != nil {
		return errs.Wrap(errs.Backend, err, "delete list").WithComponent("SQLiteStore")
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Backend, err, "commit delete transaction").WithComponent("SQLiteStore")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	like := escapeLike(prefix) + "%"
	rows, err := db.QueryContext(ctx, `
		SELECT key FROM kv WHERE key LIKE ? ESCAPE '\'
		UNION
		SELECT DISTINCT key FROM kv_list WHERE key LIKE ? ESCAPE '\'
		ORDER BY key ASC`, like, like)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "list keys").WithComponent("SQLiteStore")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.Wrap(errs.Backend, err, "scan key").WithComponent("SQLiteStore")
		}
		keys = append(keys, k)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, key string, item []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO kv_list (key, idx, value)
		VALUES (?, COALESCE((SELECT MAX(idx) + 1 FROM kv_list WHERE key = ?), 0), ?)`,
		key, key, item)
	if err != nil {
		return errs.Wrap(errs.Backend, err, "append item").WithComponent("SQLiteStore")
	}
	return nil
}

func (s *SQLiteStore) GetRange(ctx context.Context, key string, start, count int) ([][]byte, error) {
	if start < 0 || count < 0 {
		return nil, errs.New(errs.Validation, "start and count must be non-negative").WithComponent("SQLiteStore")
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT value FROM kv_list WHERE key = ? ORDER BY idx ASC LIMIT ? OFFSET ?`,
		key, count, start)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "get range").WithComponent("SQLiteStore")
	}
	defer rows.Close()

	items := [][]byte{}
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, errs.Wrap(errs.Backend, err, "scan range item").WithComponent("SQLiteStore")
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\', s[i])
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
