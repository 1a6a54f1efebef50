package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"webdock/internal/workerutil"
)

// reloadDebounce coalesces the burst of filesystem events an editor save
// produces (write + chmod + rename) into one reload.
const reloadDebounce = 200 * time.Millisecond

// Watch starts a background worker that reloads the store when its backing
// file is edited externally. The watcher observes the parent directory, not
// the file itself: atomic saves replace the file by rename, which would
// otherwise detach a file-level watch.
func (st *Store) Watch(ctx context.Context, wg *sync.WaitGroup) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(st.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	workerutil.Supervise(ctx, "settings-watcher", wg, func(ctx context.Context) {
		defer watcher.Close()
		st.watchLoop(ctx, watcher)
	}, workerutil.Policy{
		ShuttingDown: func() bool { return ctx.Err() != nil },
	})

	slog.Debug("[DEBUG-SETTINGS] watching settings directory", "dir", dir)
	return nil
}

func (st *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounce *time.Timer
	var debounceC <-chan time.Time

	target := filepath.Clean(st.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
				debounceC = debounce.C
			} else {
				debounce.Reset(reloadDebounce)
			}

		case <-debounceC:
			debounce = nil
			debounceC = nil
			if err := st.Reload(); err != nil {
				slog.Warn("[WARN-SETTINGS] reload after external edit failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("[WARN-SETTINGS] settings watcher error", "error", err)
		}
	}
}
