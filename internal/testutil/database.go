package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"simplej/internal/config"
	"simplej/internal/state"
)

// SetupProject creates a project directory holding configContent as
// simplej.toml and returns the loaded config. User-level defaults are
// isolated in a temporary XDG_CONFIG_HOME.
func SetupProject(t *testing.T, configContent string) *config.ProjectConfig {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := filepath.Join(t.TempDir(), "demo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create project dir: %v", err)
	}
	if configContent != "" {
		if err := os.WriteFile(filepath.Join(dir, "simplej.toml"), []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// SetupTestStore opens the state store of a project directory and closes
// it when the test ends
func SetupTestStore(t *testing.T, dir string) *state.Store {
	t.Helper()

	store, err := state.Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Failed to open state store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// WriteFile writes content to dir/name, creating parent directories
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}
