package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[keypad]\nimplementation = \"dummy\"\n")

	l := NewLoader(path)
	defer l.Close()

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "dummy", cfg.Keypad.Implementation)
	assert.Same(t, cfg, l.Config())
}

func TestLoaderLoadInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[keypad]\nkey_count = 12\nmailbox_size = 0\n")
	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoaderSetLogger(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[logging]\nlevel = \"info\"\n")

	l := NewLoader(path)
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	l.SetLogger(nil)

	require.NoError(t, os.WriteFile(path, []byte("[keypad]\nkey_count = 5\n"), 0o600))
	l.Reload()

	assert.Contains(t, buf.String(), `"msg":"config reload rejected"`)
	assert.Equal(t, "info", l.Config().Logging.Level)
}

func TestLoaderReload(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[logging]\nlevel = \"info\"\n")

	l := NewLoader(path)
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)

	var gotOld, gotNew *Config
	l.OnChange(func(old, new *Config) { gotOld, gotNew = old, new })

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0644))
	l.Reload()

	require.NotNil(t, gotNew)
	assert.Equal(t, "info", gotOld.Logging.Level)
	assert.Equal(t, "debug", gotNew.Logging.Level)
	assert.Equal(t, "debug", l.Config().Logging.Level)

	// An invalid file keeps the previous config and reports an error.
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0644))
	l.Reload()
	assert.Equal(t, "debug", l.Config().Logging.Level)
	select {
	case err := <-l.Errors():
		assert.Error(t, err)
	default:
		t.Fatal("expected reload error")
	}
}

func TestLoaderWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "gestures:\n  listen_for: [single]\n")

	l := NewLoader(path)
	l.debounce = 10 * time.Millisecond
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 16)
	l.OnChange(func(_, new *Config) {
		select {
		case changed <- new:
		default:
		}
	})
	require.NoError(t, l.Watch())

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("gestures:\n  listen_for: [single, hold]\n"), 0644))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if len(cfg.Gestures.ListenFor) == 2 {
				assert.Equal(t, []string{"single", "hold"}, cfg.Gestures.ListenFor)
				return
			}
		case <-timeout:
			t.Fatal("config change not observed")
		}
	}
}
