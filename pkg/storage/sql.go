package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/kadirpekel/memento/pkg/errs"
)

// SQLConfig configures a networked SQL-backed driver.
type SQLConfig struct {
	DSN string `yaml:"dsn"`
}

// SQLStore is a networked Store over database/sql, supporting Postgres and
// MySQL as interchangeable dialects behind the same Store contract.
type SQLStore struct {
	driver string
	cfg    SQLConfig
	mu     sync.RWMutex
	db     *sql.DB
}

// NewSQLStore creates a SQLStore for the given database/sql driver name
// ("postgres" or "mysql").
func NewSQLStore(driver string, cfg SQLConfig) *SQLStore {
	return &SQLStore{driver: driver, cfg: cfg}
}

func (s *SQLStore) isPostgres() bool { return s.driver == "postgres" }

func (s *SQLStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := sql.Open(s.driver, s.cfg.DSN)
	if err != nil {
		return errs.Wrap(errs.Backend, err, "open "+s.driver+" database").WithComponent("SQLStore")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errs.Wrap(errs.Backend, err, "ping "+s.driver+" database").WithComponent("SQLStore")
	}

	if _, err := db.ExecContext(ctx, s.ddlKV()); err != nil {
		db.Close()
		return errs.Wrap(errs.Backend, err, "create kv table").WithComponent("SQLStore")
	}
	if _, err := db.ExecContext(ctx, s.ddlKVList()); err != nil {
		db.Close()
		return errs.Wrap(errs.Backend, err, "create kv_list table").WithComponent("SQLStore")
	}

	s.db = db
	return nil
}

func (s *SQLStore) ddlKV() string {
	if s.isPostgres() {
		return `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BYTEA NOT NULL)`
	}
	return `CREATE TABLE IF NOT EXISTS kv (` + "`key`" + ` VARCHAR(512) PRIMARY KEY, value BLOB NOT NULL)`
}

func (s *SQLStore) ddlKVList() string {
	if s.isPostgres() {
		return `CREATE TABLE IF NOT EXISTS kv_list (key TEXT NOT NULL, idx INTEGER NOT NULL, value BYTEA NOT NULL, PRIMARY KEY (key, idx))`
	}
	return `CREATE TABLE IF NOT EXISTS kv_list (` + "`key`" + ` VARCHAR(512) NOT NULL, idx INTEGER NOT NULL, value BLOB NOT NULL, PRIMARY KEY (` + "`key`" + `, idx))`
}

func (s *SQLStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errs.Wrap(errs.Backend, err, "close "+s.driver+" database").WithComponent("SQLStore")
	}
	return nil
}

func (s *SQLStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *SQLStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errs.New(errs.Backend, "storage not connected").WithComponent("SQLStore")
	}
	return s.db, nil
}

// placeholder renders the nth ($1 for postgres, ? for mysql) bind parameter.
func (s *SQLStore) placeholder(n int) string {
	if s.isPostgres() {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	query := fmt.Sprintf(`SELECT value FROM kv WHERE key = %s`, s.placeholder(1))
	var value []byte
	err = db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Backend, err, "get key").WithComponent("SQLStore")
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	var query string
	if s.isPostgres() {
		query = `INSERT INTO kv (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	} else {
		query = "INSERT INTO kv (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
	}
	if _, err := db.ExecContext(ctx, query, key, value); err != nil {
		return errs.Wrap(errs.Backend, err, "set key").WithComponent("SQLStore")
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Backend, err, "begin delete transaction").WithComponent("SQLStore")
	}
	defer tx.Rollback()

	p := s.placeholder(1)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM kv WHERE key = %s`, p), key); err != nil {
		return errs.Wrap(errs.Backend, err, "delete key").WithComponent("SQLStore")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM kv_list WHERE key = %s`, p), key); err != nil {
		return errs.Wrap(errs.Backend, err, "delete list").WithComponent("SQLStore")
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Backend, err, "commit delete transaction").WithComponent("SQLStore")
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, prefix string) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	like := escapeLike(prefix) + "%"
	var query string
	if s.isPostgres() {
		query = `SELECT key FROM kv WHERE key LIKE $1 ESCAPE '\' UNION SELECT DISTINCT key FROM kv_list WHERE key LIKE $2 ESCAPE '\' ORDER BY key ASC`
	} else {
		query = "SELECT `key` FROM kv WHERE `key` LIKE ? ESCAPE '\\\\' UNION SELECT DISTINCT `key` FROM kv_list WHERE `key` LIKE ? ESCAPE '\\\\' ORDER BY `key` ASC"
	}
	rows, err := db.QueryContext(ctx, query, like, like)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "list keys").WithComponent("SQLStore")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.Wrap(errs.Backend, err, "scan key").WithComponent("SQLStore")
		}
		keys = append(keys, k)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, rows.Err()
}

func (s *SQLStore) Append(ctx context.Context, key string, item []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	var query string
	if s.isPostgres() {
		query = `INSERT INTO kv_list (key, idx, value) VALUES ($1, COALESCE((SELECT MAX(idx) + 1 FROM kv_list WHERE key = $2), 0), $3)`
	} else {
		query = "INSERT INTO kv_list (`key`, idx, value) SELECT ?, COALESCE(MAX(idx) + 1, 0), ? FROM kv_list WHERE `key` = ?"
	}
	var execErr error
	if s.isPostgres() {
		_, execErr = db.ExecContext(ctx, query, key, key, item)
	} else {
		_, execErr = db.ExecContext(ctx, query, key, item, key)
	}
	if execErr != nil {
		return errs.Wrap(errs.Backend, execErr, "append item").WithComponent("SQLStore")
	}
	return nil
}

func (s *SQLStore) GetRange(ctx context.Context, key string, start, count int) ([][]byte, error) {
	if start < 0 || count < 0 {
		return nil, errs.New(errs.Validation, "start and count must be non-negative").WithComponent("SQLStore")
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var query string
	if s.isPostgres() {
		query = `SELECT value FROM kv_list WHERE key = $1 ORDER BY idx ASC LIMIT $2 OFFSET $3`
	} else {
		query = "SELECT value FROM kv_list WHERE `key` = ? ORDER BY idx ASC LIMIT ? OFFSET ?"
	}
	rows, err := db.QueryContext(ctx, query, key, count, start)
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "get range").WithComponent("SQLStore")
	}
	defer rows.Close()

	items := [][]byte{}
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, errs.Wrap(errs.Backend, err, "scan range item").WithComponent("SQLStore")
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
