// Package watcher provides a recursive filesystem watch over one or more
// base directories, coalescing write/create events per sessionId with a
// configurable debounce before invoking a callback.
package watcher

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// ActivityFunc is invoked once, after debounce, when a session's JSONL
// file changes.
type ActivityFunc func(sessionID string)

// Watcher recursively watches a set of base directories for changes to
// "<uuid>.jsonl" session files.
type Watcher struct {
	fs         *fsnotify.Watcher
	debounce   time.Duration
	onActivity ActivityFunc
	logger     *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Watcher. debounce <= 0 defaults to 1000ms.
func New(debounce time.Duration, onActivity ActivityFunc, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 1000 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:         fw,
		debounce:   debounce,
		onActivity: onActivity,
		logger:     logger,
		timers:     make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	return w, nil
}

// WatchBasePaths recursively adds watches under every base path. A
// non-existent base path is logged and skipped; it never fails the whole
// call.
func (w *Watcher) WatchBasePaths(basePaths []string) {
	for _, base := range basePaths {
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable subtrees, keep walking siblings
			}
			if d.IsDir() {
				if addErr := w.fs.Add(path); addErr != nil {
					w.logger.Warn("watcher: failed to watch directory", "path", path, "error", addErr)
				}
			}
			return nil
		})
		if err != nil {
			w.logger.Warn("watcher: base path unavailable", "path", base, "error", err)
		}
	}
}

// Run processes fsnotify events until Stop is called. Intended to be run
// in its own goroutine.
func (w *Watcher) Run() {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	sessionID, ok := sessionIDFromPath(event.Name)
	if !ok {
		return
	}
	w.scheduleActivity(sessionID)
}

func (w *Watcher) scheduleActivity(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, exists := w.timers[sessionID]; exists {
		t.Stop()
	}
	w.timers[sessionID] = time.AfterFunc(w.debounce, func() {
		w.onActivity(sessionID)
	})
}

// Stop clears every pending debounce timer and closes the underlying
// fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.done)

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	w.fs.Close()
	w.wg.Wait()
}

// sessionIDFromPath extracts the sessionId from a "<uuid>.jsonl" file
// path, reporting false for any other filename.
func sessionIDFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".jsonl") {
		return "", false
	}
	stem := strings.TrimSuffix(name, ".jsonl")
	if stem != strings.ToLower(stem) {
		return "", false
	}
	if _, err := uuid.Parse(stem); err != nil {
		return "", false
	}
	return stem, true
}
