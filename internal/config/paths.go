package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the keybowd data directory. KEYBOWD_DATA_DIR overrides
// the platform default.
func DataDir() string {
	if dir := os.Getenv("KEYBOWD_DATA_DIR"); dir != "" {
		return dir
	}

	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "keybowd")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "keybowd")
		}
		return filepath.Join(home, ".local", "share", "keybowd")
	}
}

// ConfigDir returns the directory searched for config files.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Preferences", "keybowd")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "keybowd")
		}
		return filepath.Join(home, ".config", "keybowd")
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// SupportedConfigFormats lists the recognised config file extensions.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns the first config file found in the current
// directory, ConfigDir or /etc/keybowd, or "" when there is none.
func FindConfigFile() string {
	for _, dir := range []string{".", ConfigDir(), "/etc/keybowd"} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
