package extension

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reloading an extension. Editors tend to write in bursts.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads extensions when their files change on disk.
//
// It watches the manager's search paths and maps each filesystem event
// back to an extension name: a changed file under dir/<ext>/... or a
// changed <ext>.lua triggers a debounced reload of <ext>.
type Watcher struct {
	mu sync.Mutex

	manager *Manager
	watcher *fsnotify.Watcher

	debounce time.Duration
	logger   *slog.Logger

	// Pending reload timers by extension name. Guarded by mu.
	pending map[string]*time.Timer

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the reload debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the logger for watcher messages.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher over the manager's search paths.
// Search paths that do not exist are skipped. The watcher starts
// processing events immediately.
func NewWatcher(manager *Manager, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		manager:  manager,
		watcher:  fsw,
		debounce: DefaultDebounce,
		logger:   manager.logger,
		pending:  make(map[string]*time.Timer),
		closeCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	for _, path := range manager.Loader().Paths() {
		if err := w.watchTree(path); err != nil {
			w.logger.Warn("failed to watch extension path",
				"path", path,
				"error", err)
		}
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// watchTree watches a directory and its immediate extension
// subdirectories. Missing paths are skipped silently.
func (w *Watcher) watchTree(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := w.watcher.Add(absPath); err != nil {
		return err
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.watcher.Add(filepath.Join(absPath, entry.Name())); err != nil {
				w.logger.Warn("failed to watch extension directory",
					"path", filepath.Join(absPath, entry.Name()),
					"error", err)
			}
		}
	}
	return nil
}

// Close stops the watcher and cancels pending reloads.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)

	for name, timer := range w.pending {
		timer.Stop()
		delete(w.pending, name)
	}
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.watcher.Close()
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("extension watcher error", "error", err)
		}
	}
}

// handleEvent maps a filesystem event to an extension and schedules a
// debounced reload.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	// New extension directory: start watching it.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
		}
	}

	name, ok := w.extensionForPath(event.Name)
	if !ok {
		return
	}

	w.scheduleReload(name)
}

// extensionForPath maps a changed path back to an extension name.
func (w *Watcher) extensionForPath(path string) (string, bool) {
	for _, base := range w.manager.Loader().Paths() {
		absBase, err := filepath.Abs(base)
		if err != nil {
			continue
		}

		rel, err := filepath.Rel(absBase, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}

		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) == 1 {
			// Single-file extension: name.lua in the search path.
			if filepath.Ext(parts[0]) == ".lua" {
				return strings.TrimSuffix(parts[0], ".lua"), true
			}
			return "", false
		}
		// Directory extension: first path component is the name.
		return parts[0], true
	}
	return "", false
}

// scheduleReload arms (or re-arms) the debounce timer for an extension.
func (w *Watcher) scheduleReload(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if timer, ok := w.pending[name]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.pending[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, name)
		closed := w.closed
		w.mu.Unlock()

		if closed {
			return
		}
		w.reload(name)
	})
}

// reload reloads a loaded extension, or loads a newly discovered one.
func (w *Watcher) reload(name string) {
	ctx := context.Background()

	if _, loaded := w.manager.Get(name); loaded {
		if err := w.manager.Reload(ctx, name); err != nil {
			w.logger.Warn("failed to reload extension",
				"extension", name,
				"error", err)
			return
		}
		w.logger.Info("extension reloaded", "extension", name)
		return
	}

	if _, err := w.manager.Load(ctx, name); err != nil {
		w.logger.Warn("failed to load new extension",
			"extension", name,
			"error", err)
		return
	}
	w.logger.Info("extension loaded", "extension", name)
}
