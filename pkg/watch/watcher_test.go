package watch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akak/unused-dep/pkg/config"
)

func newTestWatcher(t *testing.T, dir string, debounce time.Duration) *Watcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Manifest.Path = filepath.Join(dir, "package.json")

	w, err := NewWatcher(dir, cfg, debounce)
	require.NoError(t, err)
	w.SetOutput(io.Discard)
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default debounce", 0, DefaultDebounce},
		{"custom debounce", time.Second, time.Second},
		{"negative debounce defaults", -time.Second, DefaultDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(t, tmpDir, tt.debounce)
			assert.NotNil(t, w.fsWatcher)
			assert.NotNil(t, w.pending)
			assert.Equal(t, tt.want, w.debounce)
			assert.Equal(t, filepath.Join(tmpDir, "package.json"), w.manifest)
		})
	}
}

func TestWatcher_Relevant(t *testing.T) {
	tmpDir := t.TempDir()
	w := newTestWatcher(t, tmpDir, time.Second)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"typescript source", filepath.Join(tmpDir, "src", "app.ts"), true},
		{"tsx source", filepath.Join(tmpDir, "src", "view.tsx"), true},
		{"javascript source", filepath.Join(tmpDir, "lib", "a.js"), true},
		{"manifest", filepath.Join(tmpDir, "package.json"), true},
		{"other json", filepath.Join(tmpDir, "tsconfig.json"), false},
		{"markdown", filepath.Join(tmpDir, "README.md"), false},
		{"node_modules", filepath.Join(tmpDir, "node_modules", "x", "index.js"), false},
		{"declaration file", filepath.Join(tmpDir, "src", "types.d.ts"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Relevant(tt.path))
		})
	}
}

func TestWatcher_handleEvent(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		event       fsnotify.Event
		wantPending bool
	}{
		{"write", fsnotify.Event{Name: filepath.Join(tmpDir, "a.ts"), Op: fsnotify.Write}, true},
		{"create", fsnotify.Event{Name: filepath.Join(tmpDir, "b.ts"), Op: fsnotify.Create}, true},
		{"remove", fsnotify.Event{Name: filepath.Join(tmpDir, "c.ts"), Op: fsnotify.Remove}, true},
		{"rename", fsnotify.Event{Name: filepath.Join(tmpDir, "d.ts"), Op: fsnotify.Rename}, true},
		{"chmod ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "e.ts"), Op: fsnotify.Chmod}, false},
		{"unsupported file ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "f.txt"), Op: fsnotify.Write}, false},
		{"manifest write", fsnotify.Event{Name: filepath.Join(tmpDir, "package.json"), Op: fsnotify.Write}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(t, tmpDir, time.Second)
			w.handleEvent(tt.event)

			w.mu.Lock()
			_, ok := w.pending[tt.event.Name]
			w.mu.Unlock()
			assert.Equal(t, tt.wantPending, ok)
		})
	}
}

func TestWatcher_processPending(t *testing.T) {
	tmpDir := t.TempDir()
	w := newTestWatcher(t, tmpDir, 10*time.Millisecond)

	var got [][]string
	w.SetCallback(func(changed []string) { got = append(got, changed) })

	old := time.Now().Add(-time.Second)
	w.pending[filepath.Join(tmpDir, "b.ts")] = old
	w.pending[filepath.Join(tmpDir, "a.ts")] = old
	w.pending[filepath.Join(tmpDir, "fresh.ts")] = time.Now().Add(time.Hour)

	w.processPending()

	require.Len(t, got, 1, "ready paths are delivered as one batch")
	assert.Equal(t, []string{filepath.Join(tmpDir, "a.ts"), filepath.Join(tmpDir, "b.ts")}, got[0])
	assert.Len(t, w.pending, 1, "paths inside the debounce window stay pending")

	w.processPending()
	assert.Len(t, got, 1, "nothing new is ready")
}

func TestWatcher_processPending_NoCallback(t *testing.T) {
	tmpDir := t.TempDir()
	w := newTestWatcher(t, tmpDir, 10*time.Millisecond)
	w.pending[filepath.Join(tmpDir, "a.ts")] = time.Now().Add(-time.Second)

	w.processPending()

	assert.Empty(t, w.pending)
}

func TestWatcher_Start_Context(t *testing.T) {
	tmpDir := t.TempDir()
	w := newTestWatcher(t, tmpDir, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(time.Second):
		t.Error("Start() did not return after context cancellation")
	}
}

func TestWatcher_Start_FileChange(t *testing.T) {
	tmpDir := t.TempDir()
	w := newTestWatcher(t, tmpDir, 50*time.Millisecond)

	var (
		mu      sync.Mutex
		batches [][]string
	)
	w.SetCallback(func(changed []string) {
		mu.Lock()
		batches = append(batches, changed)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(tmpDir, "app.ts")
	require.NoError(t, os.WriteFile(testFile, []byte(`import "react";`), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, b := range batches {
			for _, p := range b {
				if p == testFile {
					return true
				}
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_Start_ExcludedDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "node_modules", "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "src"), 0755))

	w := newTestWatcher(t, tmpDir, 50*time.Millisecond)
	var out bytes.Buffer
	w.SetOutput(&out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	assert.Eventually(t, func() bool {
		return len(w.WatchedFiles()) > 0
	}, time.Second, 10*time.Millisecond)

	for _, dir := range w.WatchedFiles() {
		assert.NotContains(t, dir, "node_modules")
	}
}

func TestWatcher_ConcurrentHandleEvent(t *testing.T) {
	tmpDir := t.TempDir()
	w := newTestWatcher(t, tmpDir, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.handleEvent(fsnotify.Event{
				Name: filepath.Join(tmpDir, "f"+string(rune('a'+i))+".ts"),
				Op:   fsnotify.Write,
			})
		}(i)
	}
	wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.pending, 20)
}
