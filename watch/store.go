package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// storeDebounceInterval coalesces the bursts of fsnotify events a single
// logical write produces (temp file, rename, chmod).
const storeDebounceInterval = 100 * time.Millisecond

// StoreWatcher watches the conversation data directory for external
// modification (sync clients, manual edits) and tells subscribers to
// re-sync. It deliberately carries no payload: the store is re-read on
// receipt.
type StoreWatcher struct {
	*BaseWatcher
	dir     string
	watcher *fsnotify.Watcher

	timerMu sync.Mutex
	timer   *time.Timer
}

func NewStoreWatcher(dir string) *StoreWatcher {
	return &StoreWatcher{
		BaseWatcher: NewBaseWatcher("st"),
		dir:         dir,
	}
}

func (w *StoreWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	go w.eventLoop()
	slog.Info("store watcher started", "dir", w.dir)
	return nil
}

func (w *StoreWatcher) Stop() {
	w.Cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.timerMu.Unlock()

	slog.Info("store watcher stopped")
}

// Subscribe registers a subscriber for store change notifications.
func (w *StoreWatcher) Subscribe(notifier Notifier) string {
	id := w.GenerateID()
	w.AddSubscription(&Subscription{ID: id, Notifier: notifier})
	return id
}

func (w *StoreWatcher) eventLoop() {
	for {
		select {
		case <-w.Context().Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", "error", err)
		}
	}
}

func (w *StoreWatcher) handleEvent(event fsnotify.Event) {
	// Atomic writes land as create+rename of temp files; chmod is noise.
	if event.Op == fsnotify.Chmod {
		return
	}

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(storeDebounceInterval, w.notifyChanged)
	w.timerMu.Unlock()
}

func (w *StoreWatcher) notifyChanged() {
	// The timer may fire after Stop.
	if w.Context().Err() != nil {
		return
	}

	n := w.NotifyAll("store.changed", func(sub *Subscription) any {
		return map[string]any{"id": sub.ID}
	})
	slog.Debug("notified store change", "subscribers", n)
}
