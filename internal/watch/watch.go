// Package watch reports changes to individual source files, coalescing
// bursts of filesystem events into one notification.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Handler receives the files that changed during one debounce window,
// sorted and without duplicates.
type Handler func(paths []string)

// Watcher watches a set of files. Editors often save by renaming a temporary
// file over the original, so the parent directory is watched and events are
// filtered by name.
type Watcher struct {
	fs     *fsnotify.Watcher
	delay  time.Duration
	logger *log.Logger

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
}

// New creates a Watcher that waits delay after the last event before
// notifying. A nil logger selects log.Default().
func New(delay time.Duration, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		fs:     fw,
		delay:  delay,
		logger: logger,
		files:  make(map[string]bool),
		dirs:   make(map[string]bool),
	}, nil
}

// Add starts watching the file at path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	return nil
}

// Run delivers debounced changes to h until ctx is done. h runs on the
// Run goroutine, so a slow handler delays the next notification.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	var (
		pending = make(map[string]bool)
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			fire = nil
			h(paths)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[filepath.Clean(ev.Name)]
}

// Close stops watching. A running Run returns.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
