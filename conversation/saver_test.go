package conversation

import (
	"context"
	"testing"
	"time"
)

func TestSaverLastWriteWins(t *testing.T) {
	gw := &fakeGateway{}
	s := newSaver(context.Background(), gw, 30*time.Millisecond)

	for i := 1; i <= 3; i++ {
		s.Schedule(&Conversation{ID: "c1", Title: string(rune('0' + i))})
	}

	waitFor(t, func() bool { return gw.saveCount() == 1 }, "save never fired")
	if got := gw.lastSave().Title; got != "3" {
		t.Errorf("expected latest snapshot persisted, got title %q", got)
	}
}

func TestSaverCancel(t *testing.T) {
	gw := &fakeGateway{}
	s := newSaver(context.Background(), gw, 20*time.Millisecond)

	s.Schedule(&Conversation{ID: "c1"})
	s.Cancel("other") // wrong id, write stays armed
	s.Cancel("c1")

	time.Sleep(60 * time.Millisecond)
	if gw.saveCount() != 0 {
		t.Errorf("expected cancelled write to be dropped, got %d saves", gw.saveCount())
	}

	// Cancelling with nothing pending is a no-op.
	s.Cancel("c1")
}

func TestSaverFlush(t *testing.T) {
	gw := &fakeGateway{}
	s := newSaver(context.Background(), gw, 10*time.Second)

	s.Schedule(&Conversation{ID: "c1"})
	s.Flush()

	if gw.saveCount() != 1 {
		t.Fatalf("expected flush to write immediately, got %d saves", gw.saveCount())
	}

	// Flush with nothing pending writes nothing.
	s.Flush()
	if gw.saveCount() != 1 {
		t.Errorf("expected no extra writes, got %d", gw.saveCount())
	}
}
