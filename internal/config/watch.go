package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the config file whenever it is written and passes every
// valid result to apply. Invalid reloads are logged and skipped. Watch returns
// once the watcher is running; it stops when ctx ends.
func (c *Config) Watch(ctx context.Context, logger *zap.Logger, apply func(*Config)) error {
	if c.Path == "" {
		return errors.New("config was not loaded from a file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	// watch the directory, else the watch is lost when the file is replaced
	target := filepath.Clean(c.Path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("error adding config dir to watcher: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("config watch error", zap.Error(err))
			case e, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != target || !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
					continue
				}
				next, err := c.Reload()
				if err == nil {
					err = next.Validate()
				}
				if err != nil {
					logger.Error("error reloading config", zap.String("path", target), zap.Error(err))
					continue
				}
				logger.Info("config file updated", zap.String("path", target))
				apply(next)
			}
		}
	}()
	return nil
}
