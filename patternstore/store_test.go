package patternstore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return s
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}

func TestLoadEmptyDirectory(t *testing.T) {
	s := newTestStore(t)

	eng, patterns := s.Load()
	assert.Nil(t, eng)
	assert.Empty(t, patterns)
}

func TestUpdateAndReload(t *testing.T) {
	s := newTestStore(t)

	eng, patterns, err := s.Update(nil, []string{"foo", "bar"}, nil)
	require.NoError(t, err)
	require.NotNil(t, eng)
	assert.ElementsMatch(t, []string{"foo", "bar"}, patterns)
	eng.Close()

	// Disk now holds both artifacts.
	listData, err := os.ReadFile(filepath.Join(s.dir, ListFile))
	require.NoError(t, err)
	lines := strings.Fields(string(listData))
	assert.ElementsMatch(t, []string{"foo", "bar"}, lines)

	_, err = os.Stat(filepath.Join(s.dir, CacheFile))
	require.NoError(t, err)

	// Restart path restores the same set.
	eng2, patterns2 := s.Load()
	require.NotNil(t, eng2)
	defer eng2.Close()
	assert.Equal(t, patterns, patterns2)

	m, err := eng2.Scan([]byte("a foo b"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "foo", m.Pattern)
}

func TestUpdateSetAlgebra(t *testing.T) {
	s := newTestStore(t)

	_, patterns, err := s.Update([]string{"a", "b"}, []string{"b", "c"}, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, patterns)

	// Repeating the same delta is idempotent.
	_, again, err := s.Update(patterns, []string{"b", "c"}, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, patterns, again)
}

func TestUpdateNoOpDeltaKeepsDisk(t *testing.T) {
	s := newTestStore(t)

	eng, patterns, err := s.Update(nil, []string{"x", "y"}, nil)
	require.NoError(t, err)
	eng.Close()

	before, err := os.ReadFile(filepath.Join(s.dir, ListFile))
	require.NoError(t, err)

	eng2, patterns2, err := s.Update(patterns, nil, nil)
	require.NoError(t, err)
	defer eng2.Close()
	assert.Equal(t, patterns, patterns2)

	after, err := os.ReadFile(filepath.Join(s.dir, ListFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateToEmptySet(t *testing.T) {
	s := newTestStore(t)

	eng, patterns, err := s.Update(nil, []string{"only"}, nil)
	require.NoError(t, err)
	eng.Close()

	eng2, patterns2, err := s.Update(patterns, nil, []string{"only"})
	require.NoError(t, err)
	assert.Nil(t, eng2)
	assert.Empty(t, patterns2)

	// The empty list persists and the cache is gone, so a restart does
	// not resurrect cleared patterns.
	listData, err := os.ReadFile(filepath.Join(s.dir, ListFile))
	require.NoError(t, err)
	assert.Empty(t, listData)

	_, err = os.Stat(filepath.Join(s.dir, CacheFile))
	assert.True(t, os.IsNotExist(err))

	eng3, patterns3 := s.Load()
	assert.Nil(t, eng3)
	assert.Empty(t, patterns3)
}

func TestUpdateRejectsBadPatternAtomically(t *testing.T) {
	s := newTestStore(t)

	eng, patterns, err := s.Update(nil, []string{"good"}, nil)
	require.NoError(t, err)
	eng.Close()

	_, _, err = s.Update(patterns, []string{"broke[n"}, nil)
	require.Error(t, err)

	// Disk state is untouched by the failed update.
	eng2, patterns2 := s.Load()
	require.NotNil(t, eng2)
	defer eng2.Close()
	assert.Equal(t, []string{"good"}, patterns2)
}

func TestLoadCorruptCacheFallsBack(t *testing.T) {
	s := newTestStore(t)

	eng, _, err := s.Update(nil, []string{"foo"}, nil)
	require.NoError(t, err)
	eng.Close()

	require.NoError(t, os.WriteFile(filepath.Join(s.dir, CacheFile), []byte("garbage"), 0o644))

	eng2, patterns := s.Load()
	require.NotNil(t, eng2)
	defer eng2.Close()
	assert.Equal(t, []string{"foo"}, patterns)

	m, err := eng2.Scan([]byte("foo"))
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestLoadStaleCacheRecompiles(t *testing.T) {
	s := newTestStore(t)

	eng, _, err := s.Update(nil, []string{"old"}, nil)
	require.NoError(t, err)
	eng.Close()

	// Rewrite the list behind the cache's back.
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, ListFile), []byte("new\n"), 0o644))

	eng2, patterns := s.Load()
	require.NotNil(t, eng2)
	defer eng2.Close()
	assert.Equal(t, []string{"new"}, patterns)
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "target")

	require.NoError(t, atomicWrite(path, []byte("content")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	// No temp files remain.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "target", entries[0].Name())

	// Overwrite replaces the full content.
	require.NoError(t, atomicWrite(path, []byte("replaced")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), data)
}

func TestApplyDelta(t *testing.T) {
	got := applyDelta([]string{"a", "b"}, []string{"c", "b"}, []string{"a", "zzz"})
	assert.Equal(t, []string{"b", "c"}, got)

	assert.Empty(t, applyDelta(nil, nil, nil))
	assert.Equal(t, []string{"x"}, applyDelta(nil, []string{"x", "x"}, nil))
}
