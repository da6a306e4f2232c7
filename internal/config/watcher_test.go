package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsDynamicSettings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "[security]\nblocked_patterns = [\"/.git\"]\n")

	reloaded := make(chan Config, 4)
	w := NewWatcher(path, Default(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)), func(cfg Config) {
		reloaded <- cfg
	})
	w.Delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[security]\nblocked_patterns = [\"/.git\", \"/wp-login.php\"]\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, []string{"/.git", "/wp-login.php"}, cfg.Dynamic().BlockedPatterns)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcherKeepsConfigOnInvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "this is not toml = = =")

	called := false
	w := NewWatcher(path, Default(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)), func(Config) {
		called = true
	})
	w.reload()

	assert.False(t, called)
}

func TestWatcherReloadStartsFromBase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "[cors]\ntrusted_origins = [\"https://censo.example\"]\n[security]\nblocked_patterns = [\"/.git\"]\n")

	// what the running process loaded at startup
	loaded := Default()
	fc, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, ApplyFile(&loaded, fc, nil))
	require.Equal(t, []string{"/.git"}, loaded.Security.BlockedPatterns)

	var got Config
	w := NewWatcher(path, Default(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)), func(cfg Config) {
		got = cfg
	})

	// blocked_patterns removed, trusted_origins emptied
	writeFile(t, dir, "[cors]\ntrusted_origins = []\n")
	w.reload()

	assert.Equal(t, DefaultBlockedPatterns, got.Security.BlockedPatterns)
	assert.Empty(t, got.CORS.TrustedOrigins)
}

func TestWatcherKeepsChangedFlags(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "[cors]\ntrusted_origins = [\"https://file.example\"]\n")

	base := Default()
	base.CORS.TrustedOrigins = []string{"https://flag.example"}

	var got Config
	w := NewWatcher(path, base, map[string]bool{"cors-trusted-origins": true}, slog.New(slog.NewTextHandler(io.Discard, nil)), func(cfg Config) {
		got = cfg
	})
	w.reload()

	assert.Equal(t, []string{"https://flag.example"}, got.CORS.TrustedOrigins)
}
