package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides applies KEYBOWD_* environment variables. Numeric
// variables that do not parse are reported and left unapplied.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidationErrors

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name, field string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: name + " is not an integer: " + v})
			return
		}
		*dst = n
	}
	flag := func(name, field string, dst *bool) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: name + " is not a boolean: " + v})
			return
		}
		*dst = b
	}

	// Keypad
	str("KEYBOWD_IMPLEMENTATION", &c.Keypad.Implementation)
	num("KEYBOWD_KEY_COUNT", "keypad.key_count", &c.Keypad.KeyCount)
	str("KEYBOWD_SCRIPT_PATH", &c.Keypad.ScriptPath)
	str("KEYBOWD_INPUT_DEVICE", &c.Keypad.InputDevice)
	str("KEYBOWD_SPI_DEVICE", &c.Keypad.SPIDevice)

	// Gestures
	if v := os.Getenv("KEYBOWD_LISTEN_FOR"); v != "" {
		c.Gestures.ListenFor = splitList(v)
	}
	num("KEYBOWD_HOLD_THRESHOLD_MS", "gestures.hold_threshold_ms", &c.Gestures.HoldThresholdMs)

	// Storage
	flag("KEYBOWD_STORAGE_ENABLED", "storage.enabled", &c.Storage.Enabled)
	str("KEYBOWD_STORAGE_PATH", &c.Storage.Path)

	// Metrics
	flag("KEYBOWD_METRICS_ENABLED", "metrics.enabled", &c.Metrics.Enabled)
	str("KEYBOWD_METRICS_ADDR", &c.Metrics.ListenAddr)

	// Logging
	str("KEYBOWD_LOG_LEVEL", &c.Logging.Level)
	str("KEYBOWD_LOG_FORMAT", &c.Logging.Format)
	str("KEYBOWD_LOG_OUTPUT", &c.Logging.Output)
	str("KEYBOWD_LOG_PATH", &c.Logging.FilePath)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
