package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreWatcher_NotifiesOnFileChange(t *testing.T) {
	dir := t.TempDir()
	w := NewStoreWatcher(dir)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(w.Stop)

	n := newCaptureNotifier()
	subID := w.Subscribe(n)

	if err := os.WriteFile(filepath.Join(dir, "c1.json"), []byte(`{"id":"c1"}`), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case notif := <-n.ch:
		if notif.Method != "store.changed" {
			t.Errorf("unexpected method %q", notif.Method)
		}
		params := notif.Params.(map[string]any)
		if params["id"] != subID {
			t.Errorf("expected subscription id %q, got %v", subID, params["id"])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestStoreWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	w := NewStoreWatcher(dir)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)

	n := newCaptureNotifier()
	w.Subscribe(n)

	// A burst of writes inside the debounce interval coalesces into one
	// notification.
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, "c1.json")
		if err := os.WriteFile(path, []byte(`{"id":"c1"}`), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-n.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification received")
	}

	select {
	case <-n.ch:
		t.Error("expected a single coalesced notification")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStoreWatcher_StartFailsOnMissingDir(t *testing.T) {
	w := NewStoreWatcher(filepath.Join(t.TempDir(), "missing"))
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error for missing directory")
	}
}
