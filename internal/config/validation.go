package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"keybowd/internal/gesture"
	"keybowd/internal/keypad"
	"keybowd/internal/logging"
)

// ErrInvalidConfig is returned when a config document fails schema validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
	Warning bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	return e.Warning
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var out ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			out = append(out, err)
		}
	}
	return out
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var out ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			out = append(out, err)
		}
	}
	return out
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// ValidateConfig reports every problem with c, warnings included.
func ValidateConfig(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version != Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateKeypad(&c.Keypad)...)
	errs = append(errs, validateGestures(&c.Gestures)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	return errs
}

func validateKeypad(k *KeypadConfig) ValidationErrors {
	var errs ValidationErrors

	impl, err := keypad.ParseImplementation(k.Implementation)
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   "keypad.implementation",
			Message: fmt.Sprintf("invalid implementation: %q (valid: keybow, simulated, dummy)", k.Implementation),
		})
	}

	if _, err := keypad.LayoutForKeyCount(k.KeyCount); err != nil {
		errs = append(errs, ValidationError{
			Field:   "keypad.key_count",
			Message: fmt.Sprintf("unsupported key count %d (valid: 3, 12)", k.KeyCount),
		})
	}

	if len(k.Script) > 0 {
		if _, err := keypad.ParseScript(k.Script); err != nil {
			errs = append(errs, ValidationError{Field: "keypad.script", Message: err.Error()})
		}
	}
	if impl != keypad.Simulated && (len(k.Script) > 0 || k.ScriptPath != "") {
		errs = append(errs, ValidationError{
			Field:   "keypad.script",
			Message: "script is only used by the simulated implementation",
			Warning: true,
		})
	}
	if impl == keypad.Simulated && err == nil && len(k.Script) == 0 && k.ScriptPath == "" {
		errs = append(errs, ValidationError{
			Field:   "keypad.script",
			Message: "simulated keypad has an empty script",
			Warning: true,
		})
	}

	if len(k.Keymap) > 0 && len(k.Keymap) != k.KeyCount {
		errs = append(errs, ValidationError{
			Field:   "keypad.keymap",
			Message: fmt.Sprintf("keymap has %d entries for %d keys", len(k.Keymap), k.KeyCount),
		})
	}

	if k.SPIDevice != "" && k.SPISpeedHz <= 0 {
		errs = append(errs, ValidationError{
			Field:   "keypad.spi_speed_hz",
			Message: "spi speed must be positive when an spi device is set",
		})
	}
	if k.Brightness < 0 || k.Brightness > 31 {
		errs = append(errs, RangeError("keypad.brightness", 0, 31))
	}
	if k.PollHz < 1 || k.PollHz > 1000 {
		errs = append(errs, RangeError("keypad.poll_hz", 1, 1000))
	}
	if k.MailboxSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "keypad.mailbox_size",
			Message: "mailbox size must be at least 1",
		})
	}
	if k.BlinkIntervalMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "keypad.blink_interval_ms",
			Message: "blink interval must be at least 1 ms",
		})
	}
	return errs
}

func validateGestures(g *GestureConfig) ValidationErrors {
	var errs ValidationErrors

	set, err := gesture.ParseInterestSet(g.ListenFor)
	if err != nil {
		errs = append(errs, ValidationError{Field: "gestures.listen_for", Message: err.Error()})
	} else if set.Has(gesture.Double) {
		errs = append(errs, ValidationError{
			Field:   "gestures.listen_for",
			Message: "double is reserved and never produced",
			Warning: true,
		})
	}

	if g.HoldThresholdMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "gestures.hold_threshold_ms",
			Message: "hold threshold must be at least 1 ms",
		})
	}
	if g.TimelineCapacity < 1 {
		errs = append(errs, ValidationError{
			Field:   "gestures.timeline_capacity",
			Message: "timeline capacity must be at least 1",
		})
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if s.Enabled && s.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "path is required when storage is enabled",
		})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors
	if !m.Enabled {
		return errs
	}
	if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen_addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.ListenAddr, err),
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}
	return errs
}
