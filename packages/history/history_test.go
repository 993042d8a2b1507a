package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &Entry{
		Time:     time.UnixMilli(1700000000000),
		Method:   "POST",
		URL:      "http://localhost:8080/upload",
		Files:    []string{"a.txt", "b.png"},
		Bytes:    1234,
		Status:   201,
		Duration: 45 * time.Millisecond,
		Passed:   true,
	}
	require.NoError(t, store.Record(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	second := &Entry{Method: "POST", URL: "http://localhost:8080/upload", Error: "dial tcp: connection refused"}
	require.NoError(t, store.Record(ctx, second))
	assert.False(t, second.Time.IsZero())

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, "dial tcp: connection refused", entries[0].Error)
	assert.False(t, entries[0].Passed)
	assert.Empty(t, entries[0].Files)

	got := entries[1]
	assert.Equal(t, []string{"a.txt", "b.png"}, got.Files)
	assert.Equal(t, int64(1234), got.Bytes)
	assert.Equal(t, 201, got.Status)
	assert.Equal(t, 45*time.Millisecond, got.Duration)
	assert.True(t, got.Passed)
	assert.True(t, got.Time.Equal(first.Time))
}

func TestStore_ListLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &Entry{Method: "POST", URL: "http://x/", Status: 200 + i}))
	}

	entries, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 204, entries[0].Status)
	assert.Equal(t, 203, entries[1].Status)
}

func TestStore_Clear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, &Entry{Method: "POST", URL: "http://x/"}))
	require.NoError(t, store.Record(ctx, &Entry{Method: "POST", URL: "http://x/"}))

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_DSNForms(t *testing.T) {
	dir := t.TempDir()
	for _, dsn := range []string{"sqlite://" + filepath.Join(dir, "a.db"), "sqlite:" + filepath.Join(dir, "b.db")} {
		store, err := Open(dsn)
		require.NoError(t, err, dsn)
		assert.Equal(t, filepath.Dir(store.Path()), dir)
		store.Close()
	}

	_, err := Open("  ")
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "history.db", filepath.Base(DefaultPath()))
}
