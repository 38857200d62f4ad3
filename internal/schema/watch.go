package schema

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spire-dev/spire/pkg/log"
)

// DefaultDebounce is how long Watch waits after the last change.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reruns a callback when schema files in a directory change.
type Watcher struct {
	dir      string
	delay    time.Duration
	logger   log.Logger
	onChange func()

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for dir. A non-positive delay uses
// DefaultDebounce.
func NewWatcher(dir string, delay time.Duration, logger log.Logger, onChange func()) *Watcher {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{dir: dir, delay: delay, logger: logger, onChange: onChange}
}

// Run watches until ctx ends. Bursts of events within the debounce delay
// trigger one callback.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching schema", log.String("dir", w.dir))

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("schema watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.onChange)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
