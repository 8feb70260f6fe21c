// Package xdg provides XDG Base Directory Specification compliant paths
package xdg

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the XDG config directory for simplej
// Priority: XDG_CONFIG_HOME > ~/.config/simplej
func ConfigDir() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "simplej"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "simplej"), nil
}
