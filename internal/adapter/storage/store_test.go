package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawmobile/internal/domain"
)

func openStores(t *testing.T) map[string]domain.KVStore {
	t.Helper()
	file, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	mem, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	return map[string]domain.KVStore{
		"memory":        NewMemoryStore(),
		"sqlite":        file,
		"sqlite-memory": mem,
	}
}

func TestKVStoreContract(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "b", "1"))
			require.NoError(t, store.Set(ctx, "a", `[{"id":"x"}]`))
			require.NoError(t, store.Set(ctx, "b", "2"))

			v, ok, err := store.Get(ctx, "b")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2", v)

			v, ok, err = store.Get(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[{"id":"x"}]`, v)

			require.NoError(t, store.Remove(ctx, "b"))
			require.NoError(t, store.Remove(ctx, "b"), "removing a missing key is not an error")
			_, ok, err = store.Get(ctx, "b")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "empty", ""))
			v, ok, err = store.Get(ctx, "empty")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, v)
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "allmightyclaw_message_queue", `[{"id":"1","content":"hi"}]`))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()
	v, ok, err := s2.Get(ctx, "allmightyclaw_message_queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1","content":"hi"}]`, v)
}

func TestSQLiteStore_ClosedReturnsError(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, s.Set(context.Background(), "k", "v"))
}

func TestSecureStore_EncryptsSelectedKeys(t *testing.T) {
	inner := NewMemoryStore()
	s, err := NewSecureStore(inner, "pass", "auth_token")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "auth_token", "secret-token"))
	require.NoError(t, s.Set(ctx, "server_url", "http://h"))

	raw, _, _ := inner.Get(ctx, "auth_token")
	assert.True(t, strings.HasPrefix(raw, "enc:"))
	assert.NotContains(t, raw, "secret-token")

	raw, _, _ = inner.Get(ctx, "server_url")
	assert.Equal(t, "http://h", raw)

	v, ok, err := s.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-token", v)

	v, _, err = s.Get(ctx, "server_url")
	require.NoError(t, err)
	assert.Equal(t, "http://h", v)

	require.NoError(t, s.Remove(ctx, "auth_token"))
	_, ok, err = s.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecureStore_UnsealedKeysPassThrough(t *testing.T) {
	inner := NewMemoryStore()
	s, err := NewSecureStore(inner, "pass", "auth_token")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	// A value that merely looks sealed must come back verbatim when its key
	// is not encrypted.
	require.NoError(t, inner.Set(ctx, "server_name", "enc:not-base64!"))
	v, ok, err := s.Get(ctx, "server_name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "enc:not-base64!", v)

	require.NoError(t, s.Set(ctx, "server_name", "enc:lab"))
	raw, _, _ := inner.Get(ctx, "server_name")
	assert.Equal(t, "enc:lab", raw)
	v, _, err = s.Get(ctx, "server_name")
	require.NoError(t, err)
	assert.Equal(t, "enc:lab", v)
}

func TestSecureStore_WrongPassphrase(t *testing.T) {
	inner := NewMemoryStore()
	ctx := context.Background()

	writer, err := NewSecureStore(inner, "right")
	require.NoError(t, err)
	require.NoError(t, writer.Set(ctx, "k", "v"))

	reader, err := NewSecureStore(inner, "wrong")
	require.NoError(t, err)
	_, _, err = reader.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestSecureStore_EmptyPassphrase(t *testing.T) {
	_, err := NewSecureStore(NewMemoryStore(), "")
	assert.ErrorIs(t, err, domain.ErrEncryption)
}
