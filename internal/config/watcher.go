package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes and hands the new
// configuration to a callback. Only the Dynamic part is meant to be applied
// by the callback; the rest needs a restart.
type Watcher struct {
	path     string
	base     Config
	changed  map[string]bool
	logger   *slog.Logger
	onChange func(Config)

	// Delay debounces bursts of writes from editors.
	Delay time.Duration

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher returns a watcher for path. base is the configuration each reload
// starts from: defaults with the command line flags applied, before the file or
// environment. changed lists the flags given on the command line.
func NewWatcher(path string, base Config, changed map[string]bool, logger *slog.Logger, onChange func(Config)) *Watcher {
	return &Watcher{
		path:     path,
		base:     base,
		changed:  changed,
		logger:   logger,
		onChange: onChange,
		Delay:    200 * time.Millisecond,
	}
}

// Run watches the directory holding the config file until ctx is cancelled.
// Watching the directory survives editors that replace the file on save.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}
	name := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.Delay, w.reload)
}

// reload rebuilds the configuration. A file that fails to parse or validate is
// logged and the running configuration is kept.
func (w *Watcher) reload() {
	cfg := w.base
	cfg.CORS.TrustedOrigins = slices.Clone(w.base.CORS.TrustedOrigins)
	cfg.Security.BlockedPatterns = slices.Clone(w.base.Security.BlockedPatterns)
	cfg.Security.TrustedProxies = slices.Clone(w.base.Security.TrustedProxies)

	fc, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	if err := ApplyFile(&cfg, fc, w.changed); err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	if err := ApplyEnv(&cfg, w.changed); err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}

	w.logger.Info("config reloaded", "path", w.path)
	w.onChange(cfg)
}
