// Package config handles configuration loading, validation and hot reload
// for keybowd.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"keybowd/internal/gesture"
	"keybowd/internal/keypad"
	"keybowd/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	Keypad   KeypadConfig  `toml:"keypad" json:"keypad" yaml:"keypad"`
	Gestures GestureConfig `toml:"gestures" json:"gestures" yaml:"gestures"`
	Storage  StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Metrics  MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
	Logging  LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// KeypadConfig selects the event source and describes the device.
type KeypadConfig struct {
	// Implementation is "keybow", "simulated" or "dummy".
	Implementation string `toml:"implementation" json:"implementation" yaml:"implementation"`

	// KeyCount must match a physical layout: 3 or 12.
	KeyCount int `toml:"key_count" json:"key_count" yaml:"key_count"`

	// Script is replayed by the simulated implementation.
	Script []string `toml:"script" json:"script" yaml:"script"`

	// ScriptPath names a script file. It takes precedence over Script.
	ScriptPath string `toml:"script_path" json:"script_path" yaml:"script_path"`

	// InputDevice is an evdev path. When empty the device is found by InputName.
	InputDevice string `toml:"input_device" json:"input_device" yaml:"input_device"`
	InputName   string `toml:"input_name" json:"input_name" yaml:"input_name"`

	// Keymap lists one evdev key code name per key index.
	Keymap []string `toml:"keymap" json:"keymap" yaml:"keymap"`

	// Grab takes exclusive access to the input device.
	Grab bool `toml:"grab" json:"grab" yaml:"grab"`

	// SPIDevice drives the APA102 indicator chain. Empty disables indicators.
	SPIDevice  string `toml:"spi_device" json:"spi_device" yaml:"spi_device"`
	SPISpeedHz int    `toml:"spi_speed_hz" json:"spi_speed_hz" yaml:"spi_speed_hz"`
	Brightness int    `toml:"brightness" json:"brightness" yaml:"brightness"`

	// PollHz is how often the hardware mailbox is checked.
	PollHz      int `toml:"poll_hz" json:"poll_hz" yaml:"poll_hz"`
	MailboxSize int `toml:"mailbox_size" json:"mailbox_size" yaml:"mailbox_size"`

	BlinkIntervalMs int `toml:"blink_interval_ms" json:"blink_interval_ms" yaml:"blink_interval_ms"`
}

// GestureConfig configures classification.
type GestureConfig struct {
	// ListenFor is the interest set: any of "single", "hold", "double".
	ListenFor []string `toml:"listen_for" json:"listen_for" yaml:"listen_for"`

	HoldThresholdMs  int `toml:"hold_threshold_ms" json:"hold_threshold_ms" yaml:"hold_threshold_ms"`
	TimelineCapacity int `toml:"timeline_capacity" json:"timeline_capacity" yaml:"timeline_capacity"`
}

// StorageConfig configures indicator colour persistence.
type StorageConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, file or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration for a mini keypad with SINGLE
// gestures, no persistence and no metrics endpoint.
func DefaultConfig() *Config {
	dev := keypad.DefaultDeviceConfig()

	return &Config{
		Version: Version,
		Keypad: KeypadConfig{
			Implementation:  keypad.Keybow.String(),
			KeyCount:        keypad.DefaultKeyCount,
			InputName:       dev.InputName,
			Grab:            dev.Grab,
			SPIDevice:       dev.SPIDevice,
			SPISpeedHz:      dev.SPISpeedHz,
			Brightness:      dev.Brightness,
			PollHz:          int(time.Second / keypad.DefaultPollInterval),
			MailboxSize:     keypad.DefaultMailboxSize,
			BlinkIntervalMs: int(keypad.DefaultBlinkInterval / time.Millisecond),
		},
		Gestures: GestureConfig{
			ListenFor:        []string{"single"},
			HoldThresholdMs:  int(gesture.DefaultHoldThreshold / time.Millisecond),
			TimelineCapacity: gesture.DefaultTimelineCapacity,
		},
		Storage: StorageConfig{
			Enabled: false,
			Path:    filepath.Join(DataDir(), "keybowd.db"),
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(DataDir(), "keybowd.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// The format is chosen by extension (.toml, .json, .yaml, .yml); other
// extensions are decoded as TOML. Environment overrides are applied last.
// Load does not validate; see Validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := cfg.ApplyEnvOverrides(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	format := FormatForPath(path)
	if err := ValidateDocument(data, format); err != nil {
		return nil, err
	}
	if err := decode(data, format, cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FormatForPath returns "toml", "json" or "yaml" for a config file path.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

func decode(data []byte, format string, cfg *Config) error {
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// Save writes cfg to path as TOML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# keybowd configuration\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the configuration, ignoring warnings.
func (c *Config) Validate() error {
	if errs := ValidateConfig(c).Errors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Keypad.Script = append([]string(nil), c.Keypad.Script...)
	clone.Keypad.Keymap = append([]string(nil), c.Keypad.Keymap...)
	clone.Gestures.ListenFor = append([]string(nil), c.Gestures.ListenFor...)
	return &clone
}

// Interest returns the configured interest set.
func (c *Config) Interest() (gesture.InterestSet, error) {
	return gesture.ParseInterestSet(c.Gestures.ListenFor)
}

// HoldThreshold returns the configured hold threshold.
func (c *Config) HoldThreshold() time.Duration {
	return time.Duration(c.Gestures.HoldThresholdMs) * time.Millisecond
}

// LoadScript returns the replay script: the contents of ScriptPath when
// set, otherwise the inline Script.
func (c *Config) LoadScript() ([]string, error) {
	if c.Keypad.ScriptPath == "" {
		return append([]string(nil), c.Keypad.Script...), nil
	}
	f, err := os.Open(c.Keypad.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return keypad.ReadScript(f)
}

// KeypadConfig converts the keypad section. Store, Logger, Metrics and
// Clock are left for the caller.
func (c *Config) KeypadConfig() (*keypad.Config, error) {
	impl, err := keypad.ParseImplementation(c.Keypad.Implementation)
	if err != nil {
		return nil, err
	}

	kc := keypad.DefaultConfig()
	kc.Implementation = impl
	kc.KeyCount = c.Keypad.KeyCount
	kc.Device = keypad.DeviceConfig{
		InputDevice: c.Keypad.InputDevice,
		InputName:   c.Keypad.InputName,
		Keymap:      append([]string(nil), c.Keypad.Keymap...),
		Grab:        c.Keypad.Grab,
		SPIDevice:   c.Keypad.SPIDevice,
		SPISpeedHz:  c.Keypad.SPISpeedHz,
		Brightness:  c.Keypad.Brightness,
	}
	if c.Keypad.PollHz > 0 {
		kc.PollInterval = time.Second / time.Duration(c.Keypad.PollHz)
	}
	kc.MailboxSize = c.Keypad.MailboxSize
	kc.BlinkInterval = time.Duration(c.Keypad.BlinkIntervalMs) * time.Millisecond

	if impl == keypad.Simulated {
		if kc.Script, err = c.LoadScript(); err != nil {
			return nil, err
		}
	}
	return kc, nil
}

// LoggingConfig converts the logging section.
func (c *Config) LoggingConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	lc.MaxSize = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAge = c.Logging.MaxAgeDays
	lc.Compress = c.Logging.Compress
	return lc, nil
}
