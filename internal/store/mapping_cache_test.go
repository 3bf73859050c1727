package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *MappingCache {
	t.Helper()
	cache, err := NewMappingCache(filepath.Join(t.TempDir(), "standard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestMappingCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	fp := Fingerprint([]string{"姓名", "入职日期"})

	_, ok, err := cache.Lookup(fp)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(fp, `SELECT "姓名" FROM df`))

	code, ok, err := cache.Lookup(fp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `SELECT "姓名" FROM df`, code)
}

// Store is append-only: a corrected transformation becomes a new row and
// Lookup returns the newest one.
func TestMappingCacheAppendOnly(t *testing.T) {
	cache := newTestCache(t)
	fp := Fingerprint([]string{"姓名"})

	require.NoError(t, cache.Store(fp, "SELECT 1"))
	require.NoError(t, cache.Store(fp, "SELECT 2"))

	n, err := cache.Count(fp)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	code, ok, err := cache.Lookup(fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SELECT 2", code)
}

func TestMappingCacheLookupAllNewestFirst(t *testing.T) {
	cache := newTestCache(t)
	fp := Fingerprint([]string{"x"})

	require.NoError(t, cache.Store(fp, "SELECT 1"))
	require.NoError(t, cache.Store(fp, "SELECT 2"))
	require.NoError(t, cache.Store(fp, "SELECT 3"))

	all, err := cache.LookupAll(fp)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 3", "SELECT 2", "SELECT 1"}, all)
}

func TestMappingCachePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "standard.db")
	fp := Fingerprint([]string{"a", "b"})

	cache, err := NewMappingCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Store(fp, "SELECT 1"))
	require.NoError(t, cache.Close())

	reopened, err := NewMappingCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	code, ok, err := reopened.Lookup(fp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "SELECT 1", code)
}
