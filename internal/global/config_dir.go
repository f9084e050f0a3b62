package global

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigDir returns ~/.config/deepcode.
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("DEEPCODE_CONFIG_DIR")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "deepcode"), nil
}

// DefaultDBPath returns the sqlite file inside dir unless DEEPCODE_DB_PATH
// overrides it.
func DefaultDBPath(dir string) string {
	if override := strings.TrimSpace(os.Getenv("DEEPCODE_DB_PATH")); override != "" {
		return override
	}
	return filepath.Join(dir, "deepcode.db")
}
