package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/utils"
)

// DefaultWatchDelay collapses the burst of events a single editor save produces.
const DefaultWatchDelay = 250 * time.Millisecond

// Watcher rereads a scene file whenever it changes.
type Watcher struct {
	path    string
	logger  logging.Logger
	watcher *fsnotify.Watcher
	workers *utils.StoppableWorkers
}

// Watch calls onChange with the freshly read scene, or the read error, after path changes and
// has been quiet for delay. The directory is watched rather than the file so that editors
// replacing the file by rename are noticed.
func Watch(path string, delay time.Duration, logger logging.Logger, onChange func(*Scene, error)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "watching %q", path), fsw.Close())
	}
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	w := &Watcher{
		path:    abs,
		logger:  logger,
		watcher: fsw,
		workers: utils.NewStoppableWorkers(context.Background()),
	}
	debounced := debounce.New(delay)
	w.workers.Add(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				debounced(func() {
					if ctx.Err() != nil {
						return
					}
					scene, err := Read(ctx, w.path, logger)
					if err != nil {
						logger.Warnw("cannot reload scene", "path", w.path, "error", err)
					} else {
						logger.Infow("scene reloaded", "path", w.path)
					}
					onChange(scene, err)
				})
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warnw("scene watcher error", "error", err)
			}
		}
	})
	return w, nil
}

// Path is the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching. onChange is not called after Close returns, except by a reload that
// was already running.
func (w *Watcher) Close() error {
	w.workers.Stop()
	return w.watcher.Close()
}
