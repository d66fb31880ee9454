package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/kadirpekel/memento/pkg/errs"
)

// RedisConfig configures the networked low-latency driver.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// RedisStore is a networked Store backed by Redis. Single values use plain
// string keys; ordered lists use Redis lists under a "<key>:list" name so a
// key can hold both a value and a list without colliding.
type RedisStore struct {
	cfg RedisConfig
	mu  sync.RWMutex
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore. Connect dials the server.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	return &RedisStore{cfg: cfg}
}

func listKey(key string) string { return key + ":list" }

func (s *RedisStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rdb := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Addr,
		Password: s.cfg.Password,
		DB:       s.cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return errs.Wrap(errs.Backend, err, "ping redis").WithComponent("RedisStore")
	}
	s.rdb = rdb
	return nil
}

func (s *RedisStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rdb == nil {
		return nil
	}
	err := s.rdb.Close()
	s.rdb = nil
	if err != nil {
		return errs.Wrap(errs.Backend, err, "close redis client").WithComponent("RedisStore")
	}
	return nil
}

func (s *RedisStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rdb != nil
}

func (s *RedisStore) client() (*redis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rdb == nil {
		return nil, errs.New(errs.Backend, "storage not connected").WithComponent("RedisStore")
	}
	return s.rdb, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, false, err
	}
	v, err := rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Backend, err, "get key").WithComponent("RedisStore")
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return errs.Wrap(errs.Backend, err, "set key").WithComponent("RedisStore")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	if err := rdb.Del(ctx, key, listKey(key)).Err(); err != nil {
		return errs.Wrap(errs.Backend, err, "delete key").WithComponent("RedisStore")
	}
	return nil
}

// List scans the keyspace for keys matching prefix. It strips the ":list"
// suffix used internally to store ordered lists so callers see one logical
// key regardless of which operation family populated it.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	iter := rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		k = trimListSuffix(k)
		seen[k] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, errs.Wrap(errs.Backend, err, "scan keys").WithComponent("RedisStore")
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func trimListSuffix(k string) string {
	const suffix = ":list"
	if len(k) > len(suffix) && k[len(k)-len(suffix):] == suffix {
		return k[:len(k)-len(suffix)]
	}
	return k
}

func (s *RedisStore) Append(ctx context.Context, key string, item []byte) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	if err := rdb.RPush(ctx, listKey(key), item).Err(); err != nil {
		return errs.Wrap(errs.Backend, err, "append item").WithComponent("RedisStore")
	}
	return nil
}

func (s *RedisStore) GetRange(ctx context.Context, key string, start, count int) ([][]byte, error) {
	if start < 0 || count < 0 {
		return nil, errs.New(errs.Validation, "start and count must be non-negative").WithComponent("RedisStore")
	}
	rdb, err := s.client()
	if err != nil {
		return nil, err
	}

	stop := start + count - 1
	if count == 0 {
		return [][]byte{}, nil
	}
	vals, err := rdb.LRange(ctx, listKey(key), int64(start), int64(stop)).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err, "get range").WithComponent("RedisStore")
	}

	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}
