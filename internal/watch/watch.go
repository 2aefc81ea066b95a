// Package watch triggers a rescan when recordings appear in, change in or
// disappear from a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maauso/audiotoolbox/internal/recording"
)

// DefaultDebounce is the quiet period after the last event before rescanning.
const DefaultDebounce = 2 * time.Second

// RescanFunc refreshes the registry.
type RescanFunc func(ctx context.Context) error

// Watcher coalesces filesystem events on one directory into rescans.
type Watcher struct {
	dir      string
	rescan   RescanFunc
	debounce time.Duration
	retry    func(error) bool
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithRetry schedules another rescan after a failure that retry accepts,
// for example while a task holds the engine.
func WithRetry(retry func(error) bool) Option {
	return func(w *Watcher) {
		w.retry = retry
	}
}

// WithLogger sets the watcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a Watcher over dir.
func New(dir string, rescan RescanFunc, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		rescan:   rescan,
		debounce: DefaultDebounce,
		retry:    func(error) bool { return false },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", slog.String("dir", w.dir), slog.Duration("debounce", w.debounce))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if relevant(ev) {
				w.logger.Debug("directory changed", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		case <-timer.C:
			if err := w.rescan(ctx); err != nil {
				if w.retry(err) {
					timer.Reset(w.debounce)
					continue
				}
				w.logger.Warn("rescan failed", slog.String("dir", w.dir), slog.String("error", err.Error()))
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !recording.IsMediaPath(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
