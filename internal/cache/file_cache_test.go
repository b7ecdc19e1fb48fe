package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sceneList struct {
	IDs []string `json:"ids"`
}

func TestFileCacheRoundTrip(t *testing.T) {
	fc := NewFileCache[sceneList](filepath.Join(t.TempDir(), "catalog"), 0)
	key := fc.GenerateKey("sentinel-2-l2a", "2024-01-01..2024-01-31", 10.0)

	_, ok := fc.Get(key)
	assert.False(t, ok)

	require.NoError(t, fc.Set(key, sceneList{IDs: []string{"a", "b"}}))
	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got.IDs)
}

func TestFileCacheKeysDiffer(t *testing.T) {
	fc := NewFileCache[int](t.TempDir(), 0)
	assert.Equal(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 1))
	assert.NotEqual(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 2))
}

func TestFileCacheExpires(t *testing.T) {
	fc := NewFileCache[int](t.TempDir(), time.Hour)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc.now = func() time.Time { return start }
	require.NoError(t, fc.Set("k", 7))

	fc.now = func() time.Time { return start.Add(30 * time.Minute) }
	v, ok := fc.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	fc.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, ok = fc.Get("k")
	assert.False(t, ok)
}

func TestFileCacheRejectsTamperedEntry(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache[int](dir, 0)
	require.NoError(t, fc.Set("k", 7))

	path := filepath.Join(dir, "k.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := []byte(string(raw[:len(`{"data":`)]) + "8" + string(raw[len(`{"data":7`):]))
	require.NoError(t, os.WriteFile(path, tampered, 0644))

	_, ok := fc.Get("k")
	assert.False(t, ok)
}
