package config

import (
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"jepsengo/internal/logging"
)

// Watcher holds the most recently loaded Harness and reloads it when its
// backing file changes on disk. Reloading only replaces the snapshot
// Current returns; it never reaches into a run already under way, since
// the orchestrator takes its own copy of Current() at run start.
type Watcher struct {
	logger  *slog.Logger
	path    string
	current atomic.Pointer[Harness]
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewWatcher loads path and starts watching it for changes. If the
// filesystem watch cannot be established, NewWatcher still returns a
// usable Watcher serving the initial snapshot; it just won't reload.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	h, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:   path,
		logger: logging.Default(logger).With("component", "config"),
	}
	w.current.Store(&h)

	if err := w.start(); err != nil {
		w.logger.Warn("fsnotify start failed, hot-reload disabled", "error", err)
	}
	return w, nil
}

// Current returns the most recently loaded Harness.
func (w *Watcher) Current() Harness {
	return *w.current.Load()
}

func (w *Watcher) start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw
	w.stop = make(chan struct{})

	go func() {
		defer fw.Close()
		for {
			select {
			case <-w.stop:
				return
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "error", err)
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.reload()
			}
		}
	}()
	return nil
}

func (w *Watcher) reload() {
	h, err := Load(w.path)
	if err != nil {
		w.logger.Warn("reload config failed, keeping previous snapshot", "error", err)
		return
	}
	w.current.Store(&h)
	w.logger.Info("config reloaded", "path", w.path)
}

// Close stops the filesystem watch. Safe to call on a Watcher whose
// watch never started.
func (w *Watcher) Close() {
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}
