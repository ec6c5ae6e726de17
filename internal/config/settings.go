package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Environment variables read by LoadSettings
const (
	EnvDir        = "KITTY_DIR"
	EnvIterations = "KITTY_ITERATIONS"
	EnvNoKeyring  = "KITTY_NO_KEYRING"
	EnvPassword   = "KITTY_PASSWORD"
)

// Settings are per-user defaults for the CLI
type Settings struct {
	Dir          string `toml:"dir"`           // repository directory name
	Iterations   int    `toml:"iterations"`    // PBKDF2 iterations for new repositories
	UseKeyring   bool   `toml:"use_keyring"`   // consult the OS keyring for passwords
	ContextLines int    `toml:"context_lines"` // diff context when --context is given
	Backup       bool   `toml:"backup"`        // restore backs up the live file by default
}

// DefaultSettings returns built-in defaults
func DefaultSettings() Settings {
	return Settings{
		Dir:          ".kitty",
		Iterations:   210000,
		UseKeyring:   true,
		ContextLines: 3,
		Backup:       true,
	}
}

// UserSettingsPath returns $XDG_CONFIG_HOME/kitty/config.toml or the
// platform equivalent.
func UserSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "kitty", "config.toml"), nil
}

// LoadSettings layers defaults, the user file at path (if it exists) and
// environment overrides. Later sources win.
func LoadSettings(path string, getenv func(string) string) (Settings, error) {
	s := DefaultSettings()

	if path != "" && fileExists(path) {
		if err := LoadTOML(path, &s); err != nil {
			return s, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if v := getenv(EnvDir); v != "" {
		s.Dir = v
	}
	if v := getenv(EnvIterations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid %s: %q", EnvIterations, v)
		}
		s.Iterations = n
	}
	if v := getenv(EnvNoKeyring); v != "" {
		if off, err := strconv.ParseBool(v); err == nil && off {
			s.UseKeyring = false
		}
	}

	if s.Dir == "" {
		return s, fmt.Errorf("repository directory name must not be empty")
	}
	if s.ContextLines < 0 {
		s.ContextLines = 0
	}
	return s, nil
}
