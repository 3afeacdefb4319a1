package keypad

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keybowd/internal/clock"
)

type memStore struct {
	mu     sync.Mutex
	colors map[int]Color
	saves  int
	err    error
}

func newMemStore() *memStore {
	return &memStore{colors: make(map[int]Color)}
}

func (s *memStore) LoadColors() (map[int]Color, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[int]Color, len(s.colors))
	for k, v := range s.colors {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) SaveColor(index int, c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors[index] = c
	s.saves++
	return nil
}

type failingDriver struct {
	*MemoryDriver
}

func (failingDriver) Initialize(Layout) error {
	return errors.New("no such device")
}

func newTestKeypad(t *testing.T, store ColorStore) (*Keypad, *MemoryDriver) {
	t.Helper()
	driver := NewMemoryDriver()
	cfg := testConfig(clock.NewVirtual(time.Unix(0, 0)))
	cfg.Driver = driver
	cfg.Store = store

	kp, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { kp.Close() })
	return kp, driver
}

func TestNewErrors(t *testing.T) {
	cfg := testConfig(clock.Real{})
	cfg.Implementation = Dummy
	cfg.KeyCount = 5
	_, err := New(cfg)
	assert.True(t, errors.Is(err, ErrUnsupportedLayout))

	cfg = testConfig(clock.Real{})
	driver := failingDriver{NewMemoryDriver()}
	cfg.Driver = driver
	_, err = New(cfg)
	assert.True(t, errors.Is(err, ErrDeviceUnavailable))
	assert.True(t, driver.Closed(), "driver released after failed construction")

	cfg = testConfig(clock.Real{})
	cfg.Implementation = Implementation(7)
	_, err = New(cfg)
	assert.Error(t, err)

	store := newMemStore()
	store.err = errors.New("disk gone")
	cfg = testConfig(clock.Real{})
	cfg.Implementation = Dummy
	cfg.Store = store
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNewImplementations(t *testing.T) {
	for _, impl := range []Implementation{Simulated, Dummy} {
		cfg := testConfig(clock.Real{})
		cfg.Implementation = impl
		cfg.KeyCount = 12

		kp, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, impl, kp.Implementation())
		assert.Equal(t, LayoutStandard, kp.Layout())
		assert.Len(t, kp.Keys(), 12)
		require.NoError(t, kp.Close())
	}
}

func TestKeypadPollUpdatesRegistry(t *testing.T) {
	driver := NewMemoryDriver()
	cfg := testConfig(clock.Real{})
	cfg.Driver = driver
	cfg.PollInterval = time.Millisecond

	kp, err := New(cfg)
	require.NoError(t, err)
	defer kp.Close()

	driver.Press(1)
	tr, err := kp.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Transition{Key: 1, Pressed: true}, tr)

	k, err := kp.Key(1)
	require.NoError(t, err)
	assert.True(t, k.Pressed)
	assert.Equal(t, uint64(1), cfg.Metrics.Presses.Value())

	require.NoError(t, kp.Close())
	assert.True(t, driver.Closed())
	_, err = kp.Poll(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
	assert.NoError(t, kp.Close())
}

func TestKeypadPollUnknownKey(t *testing.T) {
	cfg := testConfig(clock.NewVirtual(time.Unix(0, 0)))
	cfg.Implementation = Simulated
	cfg.Script = []string{"down 3"}

	kp, err := New(cfg)
	require.NoError(t, err)
	defer kp.Close()

	_, err = kp.Poll(context.Background())
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestLEDOperations(t *testing.T) {
	store := newMemStore()
	kp, driver := newTestKeypad(t, store)

	require.NoError(t, kp.LEDOn(0, "ff0000"))
	assert.Equal(t, Color{R: 255}, driver.Shown(0))
	assert.Equal(t, Color{R: 255}, store.colors[0])

	k, err := kp.Key(0)
	require.NoError(t, err)
	assert.Equal(t, "ff0000", k.ColorCode())

	require.NoError(t, kp.LEDOff(0))
	assert.False(t, driver.Shown(0).IsLit())

	assert.True(t, errors.Is(kp.LEDOn(0, "red"), ErrInvalidColor))
	assert.True(t, errors.Is(kp.LEDOn(4, "ff0000"), ErrUnknownKey))
}

func TestLEDToggle(t *testing.T) {
	kp, driver := newTestKeypad(t, nil)

	err := kp.LEDToggle(1, "")
	assert.True(t, errors.Is(err, ErrMissingColor))

	require.NoError(t, kp.LEDToggle(1, "00ff00"))
	assert.Equal(t, Color{G: 255}, driver.Shown(1))

	// Turning off needs no colour.
	require.NoError(t, kp.LEDToggle(1, ""))
	assert.Equal(t, Off, driver.Shown(1))
}

func TestAllLEDsOffAndClear(t *testing.T) {
	store := newMemStore()
	kp, driver := newTestKeypad(t, store)

	for i := 0; i < 3; i++ {
		require.NoError(t, kp.SetLED(i, Color{B: 9}))
	}
	require.NoError(t, kp.AllLEDsOff())
	for i, k := range kp.Keys() {
		assert.False(t, k.IsLit(), "key %d", i)
		assert.Equal(t, Off, driver.Shown(i))
	}

	require.NoError(t, kp.SetLED(2, Color{R: 1}))
	require.NoError(t, kp.Clear())
	assert.False(t, kp.Keys()[2].IsLit())
	assert.Equal(t, Off, driver.Shown(2))
	assert.Equal(t, Off, store.colors[2])
}

func TestRestoreColors(t *testing.T) {
	store := newMemStore()
	store.colors[1] = Color{R: 1, G: 2, B: 3}
	store.colors[9] = Color{R: 9}

	kp, driver := newTestKeypad(t, store)
	k, err := kp.Key(1)
	require.NoError(t, err)
	assert.Equal(t, "010203", k.ColorCode())
	assert.Equal(t, Color{R: 1, G: 2, B: 3}, driver.Shown(1))
}

func TestApply(t *testing.T) {
	kp, driver := newTestKeypad(t, nil)
	ctx := context.Background()

	on, err := NewLEDCommand(0, LEDOn, 0, 0, 255, 1)
	require.NoError(t, err)
	require.NoError(t, kp.Apply(ctx, on))
	assert.Equal(t, Color{B: 255}, driver.Shown(0))

	flushes := driver.Flushes()
	blink, err := NewLEDCommand(0, LEDBlink, 255, 255, 255, 3)
	require.NoError(t, err)
	require.NoError(t, kp.Apply(ctx, blink))
	assert.Equal(t, Color{B: 255}, driver.Shown(0), "blink restores previous colour")
	assert.Equal(t, flushes+7, driver.Flushes())

	off, err := NewLEDCommand(0, LEDOff, 0, 0, 0, 1)
	require.NoError(t, err)
	require.NoError(t, kp.Apply(ctx, off))
	assert.Equal(t, Off, driver.Shown(0))

	assert.True(t, errors.Is(kp.Apply(ctx, LEDCommand{Op: LEDOperation(0)}), ErrInvalidLEDCommand))
}

func TestApplyBlinkCancelledRestores(t *testing.T) {
	kp, driver := newTestKeypad(t, nil)
	require.NoError(t, kp.SetLED(1, Color{R: 10}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blink, err := NewLEDCommand(1, LEDBlink, 255, 255, 255, 2)
	require.NoError(t, err)
	err = kp.Apply(ctx, blink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Color{R: 10}, driver.Shown(1))
}

// closingClock closes the keypad and fails, so a blink cannot restore.
type closingClock struct {
	clock.Clock
	kp *Keypad
}

func (c *closingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.kp.Close()
	return context.Canceled
}

func TestApplyBlinkReportsFailedRestore(t *testing.T) {
	clk := &closingClock{Clock: clock.NewVirtual(time.Unix(0, 0))}
	cfg := testConfig(clk)
	cfg.Driver = NewMemoryDriver()
	kp, err := New(cfg)
	require.NoError(t, err)
	clk.kp = kp

	blink, err := NewLEDCommand(0, LEDBlink, 255, 0, 0, 1)
	require.NoError(t, err)
	err = kp.Apply(context.Background(), blink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShowOnScriptCompletion(t *testing.T) {
	cfg := testConfig(clock.NewVirtual(time.Unix(0, 0)))
	cfg.Implementation = Simulated

	kp, err := New(cfg)
	require.NoError(t, err)
	defer kp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = kp.Poll(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, kp.Source().(*ScriptedSource).Exhausted())
}

func TestLEDAfterClose(t *testing.T) {
	kp, _ := newTestKeypad(t, nil)
	assert.False(t, kp.Closed())
	require.NoError(t, kp.Close())
	assert.True(t, kp.Closed())
	assert.True(t, errors.Is(kp.LEDOff(0), ErrClosed))
}
