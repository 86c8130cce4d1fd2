package watch

import (
	"context"
	"strings"
	"testing"
)

type captureNotifier struct {
	ch chan Notification
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan Notification, 16)}
}

func (n *captureNotifier) Notify(ctx context.Context, notif Notification) error {
	n.ch <- notif
	return nil
}

func TestBaseWatcher_AddRemoveSubscription(t *testing.T) {
	b := NewBaseWatcher("test")

	sub := &Subscription{ID: "test_1"}
	b.AddSubscription(sub)

	if !b.HasSubscriptions() {
		t.Error("expected HasSubscriptions to be true")
	}

	removed := b.RemoveSubscription("test_1")
	if removed == nil {
		t.Fatal("expected removed subscription")
	}
	if removed.ID != "test_1" {
		t.Errorf("expected ID test_1, got %s", removed.ID)
	}

	if b.HasSubscriptions() {
		t.Error("expected HasSubscriptions to be false")
	}

	if removed := b.RemoveSubscription("nonexistent"); removed != nil {
		t.Error("expected nil for non-existent subscription")
	}
}

func TestBaseWatcher_GenerateID(t *testing.T) {
	b := NewBaseWatcher("cl")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := b.GenerateID()
		if !strings.HasPrefix(id, "cl_") {
			t.Fatalf("expected prefix cl_, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestBaseWatcher_NotifyAll(t *testing.T) {
	b := NewBaseWatcher("test")

	n1 := newCaptureNotifier()
	n2 := newCaptureNotifier()
	b.AddSubscription(&Subscription{ID: "a", Notifier: n1})
	b.AddSubscription(&Subscription{ID: "b", Notifier: n2})

	count := b.NotifyAll("thing.changed", func(sub *Subscription) any {
		return map[string]string{"id": sub.ID}
	})
	if count != 2 {
		t.Errorf("expected 2 notified, got %d", count)
	}

	for _, n := range []*captureNotifier{n1, n2} {
		got := <-n.ch
		if got.Method != "thing.changed" {
			t.Errorf("expected method thing.changed, got %q", got.Method)
		}
	}
}
