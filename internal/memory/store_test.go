package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morispolanco/criba/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "memory.json"), logging.Nop())
	require.NoError(t, err)
	return s
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore("", logging.Nop())
	assert.Error(t, err)
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.Get("local").IsEmpty())
	assert.True(t, s.Get("local").LastUpdated.IsZero())
}

func TestStore_MergePersistsAndReloads(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	mem, err := s.Merge("local", []string{"Es chef"}, []string{"Respuestas breves"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Es chef"}, mem.Facts)
	assert.Equal(t, fixed, mem.LastUpdated)

	_, err = s.Merge("otro", []string{"Estudia física"}, nil)
	require.NoError(t, err)

	reopened, err := NewStore(s.Path(), logging.Nop())
	require.NoError(t, err)
	got := reopened.Get("local")
	assert.Equal(t, []string{"Es chef"}, got.Facts)
	assert.Equal(t, []string{"Respuestas breves"}, got.Preferences)
	assert.True(t, fixed.Equal(got.LastUpdated))
	assert.Equal(t, []string{"Estudia física"}, reopened.Get("otro").Facts)
}

func TestStore_MergeWithoutNewEntriesDoesNotWrite(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Merge("local", []string{"Es chef"}, nil)
	require.NoError(t, err)
	before := s.Get("local").LastUpdated

	s.now = func() time.Time { return before.Add(time.Hour) }
	mem, err := s.Merge("local", []string{"ES CHEF"}, nil)
	require.NoError(t, err)
	assert.Equal(t, before, mem.LastUpdated)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Merge("local", []string{"a"}, nil)
	require.NoError(t, err)

	m := s.Get("local")
	m.Facts[0] = "mutado"
	assert.Equal(t, "a", s.Get("local").Facts[0])
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Merge("local", []string{"a"}, []string{"b"})
	require.NoError(t, err)
	_, err = s.Merge("otro", []string{"c"}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Clear("local"))
	require.NoError(t, s.Clear("nadie"))
	assert.True(t, s.Get("local").IsEmpty())

	reopened, err := NewStore(s.Path(), logging.Nop())
	require.NoError(t, err)
	assert.True(t, reopened.Get("local").IsEmpty())
	assert.Equal(t, []string{"c"}, reopened.Get("otro").Facts)
}

func TestStore_ReloadEnforcesCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	blob := `[{"profile":"local","facts":["a","a","b","c","d","e","f","g","h","i","j","k","l","m"],"preferences":[]}]`
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o600))

	s, err := NewStore(path, logging.Nop())
	require.NoError(t, err)
	facts := s.Get("local").Facts
	assert.Len(t, facts, MaxEntries)
	assert.Equal(t, "m", facts[len(facts)-1])
}

func TestStore_EmptyAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	s, err := NewStore(empty, logging.Nop())
	require.NoError(t, err)
	assert.True(t, s.Get("local").IsEmpty())

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{oops"), 0o600))
	_, err = NewStore(corrupt, logging.Nop())
	assert.Error(t, err)
}
