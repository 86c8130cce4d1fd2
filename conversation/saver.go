package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSaveDelay is the quiet period the saver waits for before writing.
const DefaultSaveDelay = 500 * time.Millisecond

// saver coalesces rapid successive mutations of a conversation into a single
// gateway write after a quiet period. It holds at most one outstanding timer:
// each Schedule call cancels the previous one and arms a new timer with the
// latest snapshot (last-write-wins, not a queue).
type saver struct {
	gateway Gateway
	delay   time.Duration
	ctx     context.Context

	mu      sync.Mutex
	timer   *time.Timer
	pending *Conversation
}

func newSaver(ctx context.Context, gateway Gateway, delay time.Duration) *saver {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &saver{gateway: gateway, delay: delay, ctx: ctx}
}

// Schedule arms the quiet-period timer for snapshot, replacing any pending
// write. The snapshot must not be mutated after the call.
func (s *saver) Schedule(snapshot *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = snapshot
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *saver) fire() {
	s.mu.Lock()
	snapshot := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	// A Cancel or Flush may have raced the timer firing.
	if snapshot == nil {
		return
	}
	s.save(snapshot)
}

// Cancel drops the pending write if it is for conversation id.
// Cancelling when nothing is pending is a no-op.
func (s *saver) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.ID != id {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.pending = nil
}

// Flush performs the pending write immediately, if any.
func (s *saver) Flush() {
	s.mu.Lock()
	snapshot := s.pending
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.mu.Unlock()

	if snapshot == nil {
		return
	}
	s.save(snapshot)
}

// save writes the snapshot through the gateway. Failures are logged and not
// retried: the in-memory state is still correct, only durability lags.
func (s *saver) save(snapshot *Conversation) {
	if err := s.gateway.SaveConversation(s.ctx, snapshot); err != nil {
		if s.ctx.Err() != nil {
			return // shutting down, don't log
		}
		slog.Error("debounced save failed", "conversationId", snapshot.ID, "error", err)
	}
}
