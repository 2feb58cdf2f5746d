// Package watch observes the managed documents directory and reports
// out-of-band changes so the session can mark its index stale.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher watches the documents directory for changes.
type Watcher struct {
	root     string
	onChange func(names []string)

	// debounce holds pending file events so bursts collapse into one
	// callback
	debounce     map[string]fsnotify.Op
	debounceMu   sync.Mutex
	debounceTime time.Duration
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceTime sets the debounce duration for batching events.
func WithDebounceTime(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTime = d
	}
}

// New creates a watcher over the documents directory. onChange receives the
// names of changed files after each debounce window.
func New(root string, onChange func(names []string), opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:         absRoot,
		onChange:     onChange,
		debounce:     make(map[string]fsnotify.Op),
		debounceTime: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching. Blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.root); err != nil {
		return err
	}

	log.Info("Watching documents directory", "root", w.root)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

// handleEvent queues a single file system event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.debounceMu.Lock()
	w.debounce[name] = event.Op
	w.debounceMu.Unlock()
}

// processDebounced flushes queued events periodically.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushDebounced()
		}
	}
}

// flushDebounced reports all pending events in one callback.
func (w *Watcher) flushDebounced() {
	w.debounceMu.Lock()
	if len(w.debounce) == 0 {
		w.debounceMu.Unlock()
		return
	}

	names := make([]string, 0, len(w.debounce))
	for name := range w.debounce {
		names = append(names, name)
	}
	w.debounce = make(map[string]fsnotify.Op)
	w.debounceMu.Unlock()

	log.Debug("Documents changed on disk", "count", len(names))
	w.onChange(names)
}
