package changes

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/StbLinux/Fody/pkg/logger"
)

// Watcher watches weaver assemblies and configuration files and invokes
// a callback once events settle. Used by the watch command to re-weave
// after a weaver package upgrade or a configuration edit.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   logger.Logger
	settling time.Duration

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// NewWatcher creates a new fsnotify-based watcher
func NewWatcher(log logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  w,
		logger:   log,
		settling: 500 * time.Millisecond,
		pending:  make(map[string]bool),
	}, nil
}

// SetSettlingDelay overrides the delay before changes are reported
func (w *Watcher) SetSettlingDelay(d time.Duration) {
	w.mu.Lock()
	w.settling = d
	w.mu.Unlock()
}

// Watch registers the files and starts delivering settled change batches
// to the callback until the context is cancelled. fsnotify watches the
// containing directories so that replace-by-rename, the common way build
// tools update assemblies, is still observed.
func (w *Watcher) Watch(ctx context.Context, files []string, callback func(changed []string)) error {
	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		watched[filepath.Clean(f)] = true
		dirs[filepath.Dir(f)] = true
	}

	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go w.processEvents(ctx, watched, callback)

	w.logger.Info(fmt.Sprintf("Watching %d file(s) across %d directories", len(files), len(dirs)))
	return nil
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context, watched map[string]bool, callback func([]string)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.recordPending(event.Name, callback)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", logger.WithField("error", err))
		}
	}
}

func (w *Watcher) recordPending(name string, callback func([]string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = true

	// Restart the settling timer; bursts of events collapse into one
	// callback invocation.
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settling, func() {
		w.mu.Lock()
		changed := make([]string, 0, len(w.pending))
		for f := range w.pending {
			changed = append(changed, f)
		}
		w.pending = make(map[string]bool)
		w.mu.Unlock()

		if len(changed) > 0 {
			callback(changed)
		}
	})
}
