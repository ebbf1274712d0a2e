package loader

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of writes from editors and copy tools.
const DefaultDebounce = 300 * time.Millisecond

// Watcher invalidates a cache entry when its source file changes on disk.
// It watches the parent directory so replace-by-rename is seen too.
type Watcher struct {
	cache    *Cache
	path     string
	debounce time.Duration
	onChange func(path string)

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for path. onChange, if set, runs after each
// debounced invalidation.
func NewWatcher(cache *Cache, path string, debounce time.Duration, onChange func(string)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrap(err, "watcher: resolve path")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{cache: cache, path: abs, debounce: debounce, onChange: onChange}, nil
}

// Start begins watching. It returns immediately; events are handled until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watcher: create")
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return eris.Wrapf(err, "watcher: watch %s", filepath.Dir(w.path))
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true
	go w.run(ctx, fsw, w.done)

	zap.L().Info("watching source file", zap.String("path", w.path))
	return nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	fsw, done := w.fsw, w.done
	w.mu.Unlock()

	_ = fsw.Close()
	<-done
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = fsw.Close()
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			zap.L().Warn("watcher error", zap.String("path", w.path), zap.Error(err))
		case <-timer.C:
			w.cache.Invalidate(w.path)
			zap.L().Info("source changed, cache invalidated", zap.String("path", w.path))
			if w.onChange != nil {
				w.onChange(w.path)
			}
		}
	}
}
