package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillspace/server/notify"
)

// pendingDelete is a soft-deleted conversation waiting out its undo window.
// The snapshot is what undo restores; index is its original list position.
// While an entry exists the conversation is absent from the live list: an id
// lives in the list, the registry, or nowhere, never in two places at once.
type pendingDelete struct {
	snapshot *Conversation
	index    int
	timer    *time.Timer
}

// DeleteConversation soft-deletes the conversation: it leaves the list
// immediately, and the backend delete fires only after the undo window
// elapses without an UndoDelete call. Returns false when id is not in the
// list.
func (m *Manager) DeleteConversation(id string) bool {
	m.mu.Lock()

	// A second delete for the same id supersedes the first countdown.
	var prev *pendingDelete
	if p, ok := m.pending[id]; ok {
		p.timer.Stop()
		delete(m.pending, id)
		prev = p
	}

	idx := -1
	for i, c := range m.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		if prev == nil {
			m.mu.Unlock()
			return false
		}
		// Already soft-deleted: restart the countdown on the captured
		// snapshot rather than dropping it, or the backend record would
		// never be removed.
		m.armDeleteLocked(id, prev)
		m.mu.Unlock()
		return true
	}

	entry := &pendingDelete{snapshot: m.conversations[idx], index: idx}
	m.conversations = append(m.conversations[:idx], m.conversations[idx+1:]...)

	// Drop any queued debounced save so it cannot resurrect the record
	// while the countdown runs.
	m.saver.Cancel(id)

	if len(m.conversations) == 0 {
		m.synthesizeLocked()
	} else if m.activeID == id {
		m.activeID = m.conversations[0].ID
	}

	m.armDeleteLocked(id, entry)
	m.emitLocked(ChangeEvent{Op: OperationDelete, Conversation: Conversation{ID: id}})
	m.mu.Unlock()

	m.sink.Notify(notify.Notification{
		Kind:     notify.KindSuccess,
		Title:    "Conversation deleted",
		Undo:     func() { m.UndoDelete(id) },
		Duration: m.undoWindow,
	})
	return true
}

// armDeleteLocked registers entry and starts its countdown. Caller holds mu.
func (m *Manager) armDeleteLocked(id string, entry *pendingDelete) {
	entry.timer = time.AfterFunc(m.undoWindow, func() {
		m.expireDelete(id, entry)
	})
	m.pending[id] = entry
}

// UndoDelete cancels a pending soft delete and restores the captured
// snapshot at its original list position. Returns false when no delete is
// pending for id (already expired, or never deleted).
func (m *Manager) UndoDelete(id string) bool {
	m.mu.Lock()
	entry, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	entry.timer.Stop()
	delete(m.pending, id)

	idx := entry.index
	if idx > len(m.conversations) {
		idx = len(m.conversations)
	}
	m.conversations = append(m.conversations[:idx],
		append([]*Conversation{entry.snapshot}, m.conversations[idx:]...)...)
	m.activeID = id
	m.emitLocked(ChangeEvent{Op: OperationCreate, Conversation: *entry.snapshot.Clone()})
	m.mu.Unlock()

	m.sink.Notify(notify.Notification{
		Kind:  notify.KindSuccess,
		Title: "Conversation restored",
	})
	slog.Info("soft delete undone", "conversationId", id)
	return true
}

// expireDelete runs when the undo window elapses. The registry lookup under
// the mutex makes it mutually exclusive with UndoDelete: whichever removes
// the entry first wins, so a backend delete never follows a successful undo.
func (m *Manager) expireDelete(id string, entry *pendingDelete) {
	m.mu.Lock()
	cur, ok := m.pending[id]
	if !ok || cur != entry {
		m.mu.Unlock()
		return
	}
	delete(m.pending, id)
	m.mu.Unlock()

	m.enqueue(m.backendDeleteOp(id))
}

func (m *Manager) backendDeleteOp(id string) func(ctx context.Context) {
	return func(ctx context.Context) {
		if err := m.gateway.DeleteConversation(ctx, id); err != nil {
			slog.Error("backend delete failed", "conversationId", id, "error", err)
			return
		}
		slog.Info("conversation deleted", "conversationId", id)
	}
}
