package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keybowd/internal/keypad"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "colors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "sub", "nested", "colors.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestPing(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "colors.db"))
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestSaveAndLoadColors(t *testing.T) {
	s := openTest(t)

	colors, err := s.LoadColors()
	require.NoError(t, err)
	assert.Empty(t, colors)

	require.NoError(t, s.SaveColor(0, keypad.Color{R: 255}))
	require.NoError(t, s.SaveColor(2, keypad.Color{G: 1, B: 2}))
	require.NoError(t, s.SaveColor(0, keypad.Color{B: 7}))

	colors, err = s.LoadColors()
	require.NoError(t, err)
	assert.Equal(t, map[int]keypad.Color{
		0: {B: 7},
		2: {G: 1, B: 2},
	}, colors)

	ts, err := s.UpdatedAt(0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)

	_, err = s.UpdatedAt(1)
	assert.Error(t, err)

	require.NoError(t, s.Reset())
	colors, err = s.LoadColors()
	require.NoError(t, err)
	assert.Empty(t, colors)
}

func TestColorsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colors.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveColor(1, keypad.Color{R: 1, G: 2, B: 3}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	colors, err := s.LoadColors()
	require.NoError(t, err)
	assert.Equal(t, keypad.Color{R: 1, G: 2, B: 3}, colors[1])
}

func TestMigrations(t *testing.T) {
	s := openTest(t)

	status, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, status.LatestVersion, status.CurrentVersion)
	assert.Empty(t, status.Pending)

	// Running again is a no-op.
	require.NoError(t, MigrateDB(s.db))

	require.NoError(t, RollbackMigration(s.db))
	status, err = s.Status()
	require.NoError(t, err)
	assert.Equal(t, status.LatestVersion-1, status.CurrentVersion)
	require.Len(t, status.Pending, 1)

	require.NoError(t, MigrateDB(s.db))
	require.NoError(t, s.SaveColor(0, keypad.Color{R: 9}))
}

func TestKeypadRestoresFromStore(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveColor(2, keypad.Color{R: 0x12, G: 0x34, B: 0x56}))

	cfg := keypad.DefaultConfig()
	cfg.Implementation = keypad.Dummy
	cfg.Store = s

	kp, err := keypad.New(cfg)
	require.NoError(t, err)
	defer kp.Close()

	k, err := kp.Key(2)
	require.NoError(t, err)
	assert.Equal(t, "123456", k.ColorCode())

	require.NoError(t, kp.LEDOff(2))
	colors, err := s.LoadColors()
	require.NoError(t, err)
	assert.False(t, colors[2].IsLit())
}
