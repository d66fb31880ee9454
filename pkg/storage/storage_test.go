package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreContract runs the black-box suite every driver must pass against
// a freshly connected, empty Store.
func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx))
	defer store.Disconnect(ctx)
	assert.True(t, store.IsConnected())

	t.Run("get absent key", func(t *testing.T) {
		v, ok, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "greeting", []byte("hello")))
		v, ok, err := store.Get(ctx, "greeting")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("hello"), v)
	})

	t.Run("set is last write wins", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "counter", []byte("1")))
		require.NoError(t, store.Set(ctx, "counter", []byte("2")))
		v, ok, err := store.Get(ctx, "counter")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("2"), v)
	})

	t.Run("list sorted by prefix", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "session:b", []byte("b")))
		require.NoError(t, store.Set(ctx, "session:a", []byte("a")))
		require.NoError(t, store.Set(ctx, "other:c", []byte("c")))

		keys, err := store.List(ctx, "session:")
		require.NoError(t, err)
		assert.Equal(t, []string{"session:a", "session:b"}, keys)
	})

	t.Run("append preserves order and getRange paginates", func(t *testing.T) {
		key := "history:1"
		for _, item := range []string{"one", "two", "three", "four"} {
			require.NoError(t, store.Append(ctx, key, []byte(item)))
		}

		all, err := store.GetRange(ctx, key, 0, 10)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, []byte("one"), all[0])
		assert.Equal(t, []byte("four"), all[3])

		page, err := store.GetRange(ctx, key, 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, []byte("two"), page[0])
		assert.Equal(t, []byte("three"), page[1])
	})

	t.Run("getRange out of range returns empty", func(t *testing.T) {
		items, err := store.GetRange(ctx, "history:1", 100, 5)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("getRange zero count returns empty", func(t *testing.T) {
		items, err := store.GetRange(ctx, "history:1", 0, 0)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("delete removes both value and list", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "doomed", []byte("x")))
		require.NoError(t, store.Append(ctx, "doomed", []byte("y")))

		require.NoError(t, store.Delete(ctx, "doomed"))

		_, ok, err := store.Get(ctx, "doomed")
		require.NoError(t, err)
		assert.False(t, ok)

		items, err := store.GetRange(ctx, "doomed", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestMemoryStoreContract(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreNotConnected(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.Get(context.Background(), "x")
	assert.Error(t, err)
}

func TestSQLiteStoreContract(t *testing.T) {
	path := t.TempDir() + "/store.db"
	testStoreContract(t, NewSQLiteStore(SQLiteConfig{Path: path}))
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store, err := NewStore(nil)
	require.NoError(t, err)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}

func TestNewStoreValidation(t *testing.T) {
	_, err := NewStore(&ProviderConfig{Type: ProviderSQLite})
	assert.Error(t, err)

	_, err = NewStore(&ProviderConfig{Type: "bogus"})
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("primary", NewMemoryStore()))
	assert.Error(t, reg.Register("primary", NewMemoryStore()))

	_, ok := reg.Get("primary")
	assert.True(t, ok)
	assert.Equal(t, []string{"primary"}, reg.List())
}

// TestRedisStoreContract only runs when MEMENTO_TEST_REDIS_ADDR is set,
// since it requires a live Redis server.
func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("MEMENTO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MEMENTO_TEST_REDIS_ADDR not set, skipping live Redis test")
	}
	testStoreContract(t, NewRedisStore(RedisConfig{Addr: addr}))
}
