package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mediacompress/internal/logging"
)

// DefaultSettleDelay coalesces bursts of create events into one wake-up.
const DefaultSettleDelay = 2 * time.Second

// Watcher signals when new files appear in the input directories so the
// daemon can wake before its poll interval elapses. It never decides what to
// process; the next scan does.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	wake    chan struct{}
	settle  time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher registers every existing directory in dirs. Directories that
// cannot be watched are logged and left to polling.
func NewWatcher(dirs []string, settle time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	w := &Watcher{
		watcher: fw,
		logger:  logging.NewComponentLogger(logger, "watcher"),
		wake:    make(chan struct{}, 1),
		settle:  settle,
	}
	watched := 0
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logging.WarnWithContext(w.logger, "input directory not watched; relying on polling", "watch_add_failed",
				logging.String("input_dir", dir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "new files are picked up at the next poll instead of immediately"),
			)
			continue
		}
		watched++
	}
	w.logger.Debug("watcher started", logging.Int("watched_dirs", watched))
	return w, nil
}

// Wake delivers at most one pending signal at a time.
func (w *Watcher) Wake() <-chan struct{} {
	if w == nil {
		return nil
	}
	return w.wake
}

// Run forwards filesystem events until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug("input event", logging.String(logging.FieldFile, filepath.Base(event.Name)), logging.String("op", event.Op.String()))
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watcher error", "watcher_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some wake-ups may be missed until the next poll"),
			)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.signal)
}

func (w *Watcher) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close releases the watcher. It is only needed when Run is never called.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
