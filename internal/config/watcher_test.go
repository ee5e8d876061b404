package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestWatcher_ReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.yaml")
	writeConfig(t, path, "session:\n  max_turns: 5\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 4)
	w.OnReload(func(cfg *Config) { reloaded <- cfg })

	require.NoError(t, w.Start(context.Background()))

	writeConfig(t, path, "session:\n  max_turns: 9\n")

	select {
	case cfg := <-reloaded:
		if cfg.Session.MaxTurns != 9 {
			t.Errorf("reloaded max_turns = %d, want 9", cfg.Session.MaxTurns)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed after write")
	}
}

func TestWatcher_InvalidConfigKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.yaml")
	writeConfig(t, path, "session:\n  max_turns: 5\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 4)
	w.OnReload(func(cfg *Config) { reloaded <- cfg })

	require.NoError(t, w.Start(context.Background()))

	// A config that fails validation must not reach subscribers.
	writeConfig(t, path, "session:\n  max_turns: 0\n")

	select {
	case cfg := <-reloaded:
		t.Errorf("invalid config was delivered: max_turns=%d", cfg.Session.MaxTurns)
	case <-time.After(1 * time.Second):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.yaml")
	writeConfig(t, path, "session:\n  max_turns: 5\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 4)
	w.OnReload(func(cfg *Config) { reloaded <- cfg })

	require.NoError(t, w.Start(context.Background()))

	writeConfig(t, filepath.Join(dir, "unrelated.yaml"), "x: 1\n")

	select {
	case <-reloaded:
		t.Error("reload fired for an unrelated file")
	case <-time.After(1 * time.Second):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	writeConfig(t, path, "session:\n  max_turns: 5\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}
