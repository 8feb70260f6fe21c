package config

import (
	"os"
	"path/filepath"

	"simplej/internal/constants"
	"simplej/internal/xdg"
)

// GlobalConfigPath returns the user-level defaults file. It uses the same
// schema as simplej.toml; project files override anything it sets.
func GlobalConfigPath() (string, error) {
	configDir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, constants.GlobalConfigFileName), nil
}

// applyGlobal decodes the user-level defaults over cfg when the file exists
func applyGlobal(cfg *ProjectConfig) error {
	path, err := GlobalConfigPath()
	if err != nil {
		// No home directory means no user defaults
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return decodeFile(path, cfg)
}
