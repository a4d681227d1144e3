package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/preston-bernstein/seller-notification-service/internal/logging"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes on disk and reports
// configurations that differ from the last one seen.
type Watcher struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration

	mu   sync.Mutex
	last Config
}

// NewWatcher returns a watcher for path. initial is the configuration already in use.
func NewWatcher(path string, initial Config, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		logger:   logger,
		debounce: defaultDebounce,
		last:     initial,
	}
}

// Watch blocks until ctx is done. Editors often emit several events per save, so
// reloads are debounced. onChange runs on the watch goroutine.
func (w *Watcher) Watch(ctx context.Context, onChange func(Config)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory so atomic rename-on-save is seen.
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("config watcher add %s: %w", dir, err)
	}
	logging.Debug(w.logger, "config watcher started", slog.String("path", w.path))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(w.logger, "config watcher error", "error", err)
		case <-fire:
			fire = nil
			w.Reload(onChange)
		}
	}
}

// Reload reads the file once and calls onChange when the result is valid and differs
// from the last configuration. It reports whether onChange ran.
func (w *Watcher) Reload(onChange func(Config)) bool {
	cfg, err := LoadFile(w.path)
	if err != nil {
		logging.Warn(w.logger, "config reload failed", slog.String("path", w.path), "error", err)
		return false
	}

	w.mu.Lock()
	if cfg == w.last {
		w.mu.Unlock()
		logging.Debug(w.logger, "config unchanged", slog.String("path", w.path))
		return false
	}
	w.last = cfg
	w.mu.Unlock()

	logging.Info(w.logger, "config reloaded",
		slog.String("path", w.path),
		slog.Duration(logging.FieldInterval, cfg.Poller.Interval),
	)
	if onChange != nil {
		onChange(cfg)
	}
	return true
}
