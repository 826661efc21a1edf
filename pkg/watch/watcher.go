// Package watch re-runs the check when source files or the manifest change.
package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/akak/unused-dep/pkg/config"
	"github.com/akak/unused-dep/pkg/syntax"
)

// DefaultDebounce is how long a path must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a directory tree and reports batches of changed paths.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	path      string
	manifest  string
	callback  func(changed []string)
	out       io.Writer
	mu        sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a watcher for the tree rooted at path. The manifest
// named by cfg is resolved against the working directory.
func NewWatcher(path string, cfg *config.Config, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	manifest, err := filepath.Abs(cfg.Manifest.Path)
	if err != nil {
		manifest = cfg.Manifest.Path
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		path:      path,
		manifest:  manifest,
		out:       os.Stderr,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function called with each batch of changed paths.
// Batches are delivered one at a time.
func (w *Watcher) SetCallback(cb func(changed []string)) {
	w.callback = cb
}

// SetOutput redirects status messages.
func (w *Watcher) SetOutput(out io.Writer) {
	w.out = out
}

// Start watches until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path); err != nil {
		return err
	}
	// The manifest may live outside the watched tree.
	_ = w.fsWatcher.Add(filepath.Dir(w.manifest))

	cyan := color.New(color.FgCyan)
	cyan.Fprintf(w.out, "Watching %d directories for changes in %s...\n", len(w.WatchedFiles()), w.path)
	cyan.Fprintln(w.out, "Press Ctrl+C to stop")

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			color.New(color.FgRed).Fprintf(w.out, "Watch error: %v\n", err)
		}
	}
}

// addTree watches root and every non-excluded directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.excludedDir(info.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) excludedDir(name string) bool {
	for _, excluded := range w.config.Exclude.Dirs {
		if name == excluded {
			return true
		}
	}
	return false
}

// Relevant reports whether a change to path can alter the result: the
// manifest itself, or a supported source file that is not excluded.
func (w *Watcher) Relevant(path string) bool {
	if abs, err := filepath.Abs(path); err == nil && abs == w.manifest {
		return true
	}
	if w.config.ShouldExclude(path) {
		return false
	}
	return syntax.DetectLanguage(path) != syntax.LangUnknown
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.excludedDir(info.Name()) {
				_ = w.addTree(path)
			}
			return
		}
	}

	if !w.Relevant(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending delivers the paths that have been quiet for the debounce
// period as one sorted batch.
func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if len(ready) == 0 || w.callback == nil {
		return
	}
	sort.Strings(ready)

	for _, path := range ready {
		rel, err := filepath.Rel(w.path, path)
		if err != nil {
			rel = path
		}
		color.New(color.FgYellow).Fprintf(w.out, "File changed: %s\n", rel)
	}
	w.callback(ready)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedFiles returns the watched directories.
func (w *Watcher) WatchedFiles() []string {
	return w.fsWatcher.WatchList()
}
