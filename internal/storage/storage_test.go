package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/audit-dashboard-tui/internal/db"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestMemory(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("k", "v"))
	v, ok, _ := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, map[string]string{"k": "v"}, m.Snapshot())

	require.NoError(t, m.Remove("k"))
	_, ok, _ = m.Get("k")
	assert.False(t, ok)
}

func TestUnavailable(t *testing.T) {
	var s Store = Unavailable{}
	_, _, err := s.Get("k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Set("k", "v"), ErrUnavailable)

	custom := errors.New("quota exceeded")
	assert.ErrorIs(t, Unavailable{Err: custom}.Remove("k"), custom)
}

func TestSafe_FallsBackToMemory(t *testing.T) {
	s := NewSafe("session", Unavailable{})

	_, ok := s.Get("adt:auto_login_attempted")
	assert.False(t, ok)
	assert.True(t, s.Degraded())

	s.Set("adt:auto_login_attempted", "1")
	v, ok := s.Get("adt:auto_login_attempted")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	s.Remove("adt:auto_login_attempted")
	_, ok = s.Get("adt:auto_login_attempted")
	assert.False(t, ok)
}

func TestSafe_ReadsEarlierRuns(t *testing.T) {
	primary := NewMemory()
	require.NoError(t, primary.Set("adt:login_hint", "rina@example.com"))

	s := NewSafe("local", primary)
	v, ok := s.Get("adt:login_hint")
	assert.True(t, ok)
	assert.Equal(t, "rina@example.com", v)
	assert.False(t, s.Degraded())

	s.Remove("adt:login_hint")
	_, ok = primary.Get("adt:login_hint")
	assert.False(t, ok)
}

// failingRemove keeps values but cannot delete them.
type failingRemove struct{ *Memory }

func (failingRemove) Remove(string) error { return ErrUnavailable }

func TestSafe_RemoveWinsOverStalePrimary(t *testing.T) {
	primary := failingRemove{NewMemory()}
	require.NoError(t, primary.Set("k", "stale"))

	s := NewSafe("local", primary)
	s.Remove("k")

	_, ok := s.Get("k")
	assert.False(t, ok)
	assert.True(t, s.Degraded())

	s.Set("k", "fresh")
	v, _ := s.Get("k")
	assert.Equal(t, "fresh", v)
}

func TestLocal(t *testing.T) {
	database := newTestDB(t)
	local := NewLocal(database)

	_, ok, err := local.Get("adt:login_hint")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, local.Set("adt:login_hint", "rina@example.com"))

	// A second handle on the same database sees the value, like a later run.
	v, ok, err := NewLocal(database).Get("adt:login_hint")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rina@example.com", v)

	require.NoError(t, local.Remove("adt:login_hint"))
	_, ok, _ = local.Get("adt:login_hint")
	assert.False(t, ok)
}

func TestSession_Scoped(t *testing.T) {
	database := newTestDB(t)
	first := NewSession(database, "tty-1")
	other := NewSession(database, "tty-2")

	require.NoError(t, first.Set("adt:auto_login_attempted", "1"))

	_, ok, err := other.Get("adt:auto_login_attempted")
	require.NoError(t, err)
	assert.False(t, ok, "a new terminal starts with a clean session scope")

	restored := NewSession(database, "tty-1")
	v, ok, err := restored.Get("adt:auto_login_attempted")
	require.NoError(t, err)
	assert.True(t, ok, "a restored terminal session resurrects the flag")
	assert.Equal(t, "1", v)
	assert.Equal(t, "tty-1", restored.ID())

	require.NoError(t, restored.Clear())
	_, ok, _ = first.Get("adt:auto_login_attempted")
	assert.False(t, ok)
}

func TestStores_ClosedDatabaseFails(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.Close())

	_, _, err := NewLocal(database).Get("k")
	assert.Error(t, err)

	s := NewSafe("local", NewLocal(database))
	s.Set("k", "v")
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.True(t, s.Degraded())
}

func TestResolveSessionID(t *testing.T) {
	for _, name := range terminalSessionVars {
		t.Setenv(name, "")
	}

	assert.Equal(t, "explicit", ResolveSessionID("explicit"))
	assert.Contains(t, ResolveSessionID(""), "ppid:")

	t.Setenv("TMUX_PANE", "%3")
	assert.Equal(t, "TMUX_PANE:%3", ResolveSessionID(""))

	t.Setenv("TERM_SESSION_ID", "w0t0p0")
	assert.Equal(t, "TERM_SESSION_ID:w0t0p0", ResolveSessionID(""))
}
