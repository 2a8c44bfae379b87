package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceWindow collapses bursts of filesystem events into one refresh.
const DebounceWindow = 200 * time.Millisecond

// Watcher turns filesystem events under the partition directories into
// coalesced change notifications.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan struct{}
}

// NewWatcher watches every directory in dirs that exists. Missing ones are
// skipped.
func NewWatcher(dirs []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			slog.Debug("Failed to watch directory", "path", dir, "error", err)
		}
	}
	return &Watcher{watcher: fw, changes: make(chan struct{}, 1)}, nil
}

// Changes delivers at most one pending notification at a time. It is closed
// when Run returns.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run pumps events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if debounce == nil {
				debounce = time.After(DebounceWindow)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Debug("Watcher error", "error", err)
		case <-debounce:
			debounce = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
