package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file whenever it changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher starts watching the directory holding path. Editors often save
// through a rename, so the directory is watched rather than the file itself.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		if cerr := fw.Close(); cerr != nil {
			_ = cerr
		}
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}
	return &Watcher{path: filepath.Clean(path), watcher: fw, logger: logger}, nil
}

// Run calls onChange with each successfully reloaded config until ctx is
// cancelled. A config that fails to load is logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(FileConfig)) error {
	defer func() {
		if cerr := w.watcher.Close(); cerr != nil {
			_ = cerr
		}
	}()
	w.logger.Info("watching config", "path", w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(w.path)
			if err != nil {
				w.logger.Error("config reload failed, keeping previous config", "path", w.path, "err", err)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path)
			onChange(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", "err", err)
		}
	}
}

// Watch is NewWatcher followed by Run.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(FileConfig)) error {
	w, err := NewWatcher(path, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx, onChange)
}
