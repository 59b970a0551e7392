package config

import (
	"chatrelay/pkg/logger"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits for a burst of file events to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the config file whenever it changes and passes the new
// configuration to onChange. It blocks until ctx is cancelled.
//
// The directory holding the file is watched rather than the file itself so
// that editors replacing the file through a rename are noticed. Invalid
// configurations are logged and skipped.
func Watch(ctx context.Context, configPath string, debounce time.Duration, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("could not resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("could not watch config directory: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		cfg, err := Load(abs)
		if err != nil {
			logger.Warn(ctx, "could not reload config", zap.String("path", abs), zap.Error(err))

			return
		}
		logger.Info(ctx, "config reloaded", zap.String("path", abs))
		onChange(cfg)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	logger.Info(ctx, "watching config file", zap.String("path", abs))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logger.Debug(ctx, "config file event", zap.Stringer("op", event.Op))

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "config watcher error", zap.Error(err))
		}
	}
}
