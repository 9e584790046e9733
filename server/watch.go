package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDelay collapses the bursts of events editors emit for one save.
const watchDelay = 100 * time.Millisecond

// Watch calls reload after every change of the file at path, until ctx is
// canceled. A failed reload is logged and the watch goes on, so the
// schema in use stays the last one that loaded.
func Watch(ctx context.Context, path string, logger *slog.Logger, reload func() error) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("server: watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("server: watch %s: %w", path, err)
	}
	defer w.Close()
	// Watch the directory: editors replace files by renaming over them.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("server: watch %s: %w", path, err)
	}
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDelay)
			} else {
				timer.Reset(watchDelay)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("invql: watch error", "path", path, "error", err)
		case <-fire:
			fire = nil
			if err := reload(); err != nil {
				logger.Error("invql: reload failed, keeping the current schema", "path", path, "error", err)
				continue
			}
			logger.Info("invql: schema reloaded", "path", path)
		}
	}
}
