package classification

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits for a burst of file
// events to settle before rebuilding.
const defaultDebounce = 500 * time.Millisecond

// Watcher rebuilds the outline when files in its directory change and
// installs the result in a Holder. A rebuild that fails leaves the
// previous registry in place.
type Watcher struct {
	dir      string
	pattern  string
	holder   *Holder
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
	load     func(ctx context.Context) (*Registry, error)

	// reloadMu serialises rebuilds so the last one to start is the last
	// one installed.
	reloadMu sync.Mutex

	mu       sync.Mutex
	timer    *time.Timer
	reloaded chan struct{}
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(dir, pattern string, holder *Holder, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		dir:      dir,
		pattern:  pattern,
		holder:   holder,
		logger:   logger,
		debounce: defaultDebounce,
		watcher:  fsw,
		reloaded: make(chan struct{}, 1),
	}
	w.load = func(ctx context.Context) (*Registry, error) {
		return Load(ctx, w.dir, w.pattern, w.logger)
	}
	return w, nil
}

// SetDebounce overrides the settle delay; used by tests.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Reloaded signals after each successful rebuild.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

// Start adds watches on the outline directory tree and processes events
// until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Outline watcher started", "dir", w.dir, "debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						w.logger.Warn("Failed to watch new outline directory", "path", event.Name, "error", err)
					}
				}
			}
			w.schedule(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Outline watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
}

func (w *Watcher) reload(ctx context.Context) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	reg, err := w.load(ctx)
	if err != nil {
		w.logger.Error("Outline reload failed; keeping previous outline", "dir", w.dir, "error", err)
		return
	}
	w.holder.Swap(reg)
	w.logger.Info("Outline reloaded", "dir", w.dir, "nodes", reg.Size())
	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}
