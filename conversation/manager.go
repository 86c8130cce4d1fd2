// Package conversation owns the chat session lifecycle: the authoritative
// in-memory conversation list, the active-session pointer, debounced
// persistence, and soft delete with a time-boxed undo window.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quillspace/server/notify"
)

// Config tunes the manager's timers. Zero values select the defaults.
type Config struct {
	SaveDelay  time.Duration // quiet period before a debounced save
	UndoWindow time.Duration // how long a soft delete can be undone
}

// DefaultUndoWindow is how long a deleted conversation can be restored
// before the backend record is actually removed.
const DefaultUndoWindow = 5 * time.Second

// opQueueSize bounds the background writer queue. Immediate gateway calls
// (create, rename, pin, reorder, expired deletes) are serialized through it
// so the backend observes them in issue order.
const opQueueSize = 128

// CreateOptions carries the optional workspace associations for a new
// conversation. All fields are opaque to the core.
type CreateOptions struct {
	SpaceID      string
	SpaceName    string
	SystemPrompt string
}

// MetaUpdate is a partial update of a conversation's associations.
// Nil fields are left unchanged.
type MetaUpdate struct {
	SpaceID      *string
	SpaceName    *string
	SystemPrompt *string
}

// Manager is the conversation lifecycle manager. All mutations of the
// conversation list go through it; no other component touches the list.
// Construct one per process (or per test) and call Initialize once.
type Manager struct {
	gateway    Gateway
	sink       notify.Sink
	undoWindow time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	saver  *saver

	qmu     sync.Mutex
	ops     chan func(ctx context.Context)
	qClosed bool
	qDone   chan struct{}

	mu            sync.Mutex
	initialized   bool
	closed        bool
	conversations []*Conversation
	activeID      string
	pending       map[string]*pendingDelete
	listener      ChangeListener
}

// NewManager builds a manager around the given persistence gateway and
// notification sink. A nil sink discards notifications.
func NewManager(gateway Gateway, sink notify.Sink, cfg Config) *Manager {
	if sink == nil {
		sink = notify.Nop()
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = DefaultUndoWindow
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		gateway:    gateway,
		sink:       sink,
		undoWindow: cfg.UndoWindow,
		ctx:        ctx,
		cancel:     cancel,
		saver:      newSaver(ctx, gateway, cfg.SaveDelay),
		ops:        make(chan func(ctx context.Context), opQueueSize),
		qDone:      make(chan struct{}),
		pending:    make(map[string]*pendingDelete),
	}
	go m.opLoop()
	return m
}

// SetOnChangeListener registers the listener for list change events.
// The listener is invoked while the manager holds its mutex and must not
// block.
func (m *Manager) SetOnChangeListener(l ChangeListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Initialize loads persisted conversations and activates the first entry.
// On an empty or failing load it synthesizes one fresh conversation so the
// list is never empty. Runs at most once per manager.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.mu.Unlock()

	loaded, err := m.gateway.LoadConversations(ctx)
	if err != nil {
		slog.Warn("conversation load failed, starting fresh", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(loaded) == 0 {
		m.synthesizeLocked()
		return
	}

	m.conversations = make([]*Conversation, 0, len(loaded))
	for i := range loaded {
		c := loaded[i]
		m.conversations = append(m.conversations, &c)
	}
	m.activeID = m.conversations[0].ID
	slog.Info("conversations loaded", "count", len(loaded), "activeId", m.activeID)
}

// CreateConversation builds a fresh conversation, prepends it to the list,
// makes it active, and persists it immediately. Returns the new id.
func (m *Manager) CreateConversation(opts CreateOptions) string {
	m.mu.Lock()
	c := m.newConversationLocked(opts)
	snapshot := c.Clone()
	m.mu.Unlock()

	m.enqueue(func(ctx context.Context) {
		if err := m.gateway.SaveConversation(ctx, snapshot); err != nil {
			slog.Error("failed to persist new conversation", "conversationId", snapshot.ID, "error", err)
		}
	})
	return c.ID
}

// SwitchConversation sets the active conversation pointer. Callers are
// expected to pass a known id; existence is not validated and nothing is
// persisted.
func (m *Manager) SwitchConversation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = id
}

// AppendMessage appends a message to the active conversation. A missing
// message id or timestamp is filled in.
func (m *Manager) AppendMessage(msg Message) {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.UpdateActiveMessages(func(old []Message) []Message {
		return append(old, msg)
	})
}

// UpdateActiveMessages is the single choke-point through which message
// content changes. It applies updater to the active conversation's message
// list, stamps UpdatedAt, derives the title once the first user message
// arrives, and schedules a debounced save.
func (m *Manager) UpdateActiveMessages(updater func(old []Message) []Message) {
	m.mu.Lock()
	c := m.findLocked(m.activeID)
	if c == nil {
		m.mu.Unlock()
		return
	}

	old := append([]Message(nil), c.Messages...)
	c.Messages = updater(old)
	c.UpdatedAt = time.Now()

	if c.Title == DefaultTitle && len(c.Messages) > 0 {
		if t := DeriveTitle(c.Messages); t != DefaultTitle {
			c.Title = t
		}
	}

	snapshot := c.Clone()
	m.emitLocked(ChangeEvent{Op: OperationUpdate, Conversation: *snapshot})
	m.mu.Unlock()

	m.saver.Schedule(snapshot)
}

// RenameConversation updates the title in place and issues an immediate
// rename to the gateway. Renaming bypasses the debounce: it is a deliberate,
// infrequent action.
func (m *Manager) RenameConversation(id, title string) error {
	m.mu.Lock()
	c := m.findLocked(id)
	if c == nil {
		m.mu.Unlock()
		return ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	m.emitLocked(ChangeEvent{Op: OperationUpdate, Conversation: *c.Clone()})
	m.mu.Unlock()

	m.enqueue(func(ctx context.Context) {
		if err := m.gateway.RenameConversation(ctx, id, title); err != nil {
			slog.Error("rename failed", "conversationId", id, "error", err)
		}
	})
	m.sink.Notify(notify.Notification{
		Kind:  notify.KindSuccess,
		Title: "Conversation renamed",
	})
	return nil
}

// PinConversation toggles the pin flag and returns the new value. The value
// is computed from the current in-memory state, so rapid double invocation
// toggles twice rather than racing on a stale value, and the gateway sees
// the values in order. Callers report the returned value rather than
// re-reading, which could observe a later toggle.
func (m *Manager) PinConversation(id string) (bool, error) {
	m.mu.Lock()
	c := m.findLocked(id)
	if c == nil {
		m.mu.Unlock()
		return false, ErrNotFound
	}
	c.Pinned = !c.Pinned
	pinned := c.Pinned
	c.UpdatedAt = time.Now()
	m.emitLocked(ChangeEvent{Op: OperationUpdate, Conversation: *c.Clone()})
	m.mu.Unlock()

	m.enqueue(func(ctx context.Context) {
		if err := m.gateway.PinConversation(ctx, id, pinned); err != nil {
			slog.Error("pin update failed", "conversationId", id, "pinned", pinned, "error", err)
		}
	})

	title := "Conversation pinned"
	if !pinned {
		title = "Conversation unpinned"
	}
	m.sink.Notify(notify.Notification{Kind: notify.KindSuccess, Title: title})
	return pinned, nil
}

// ReorderConversations rearranges the list to match ids. Unknown ids are
// ignored; conversations missing from ids keep their relative order at the
// end. Every entry is re-persisted since reordering has no incremental
// representation in the gateway model.
func (m *Manager) ReorderConversations(ids []string) {
	m.mu.Lock()
	byID := make(map[string]*Conversation, len(m.conversations))
	for _, c := range m.conversations {
		byID[c.ID] = c
	}

	reordered := make([]*Conversation, 0, len(m.conversations))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			reordered = append(reordered, c)
			delete(byID, id)
		}
	}
	for _, c := range m.conversations {
		if _, left := byID[c.ID]; left {
			reordered = append(reordered, c)
		}
	}
	m.conversations = reordered

	snapshots := make([]*Conversation, len(reordered))
	for i, c := range reordered {
		snapshots[i] = c.Clone()
	}
	m.emitLocked(ChangeEvent{Op: OperationReorder})
	m.mu.Unlock()

	m.enqueue(func(ctx context.Context) {
		for _, s := range snapshots {
			if err := m.gateway.SaveConversation(ctx, s); err != nil {
				slog.Error("reorder save failed", "conversationId", s.ID, "error", err)
			}
		}
	})
}

// UpdateConversationMeta merges the non-nil fields of meta into the
// conversation's associations and schedules a debounced save.
func (m *Manager) UpdateConversationMeta(id string, meta MetaUpdate) error {
	m.mu.Lock()
	c := m.findLocked(id)
	if c == nil {
		m.mu.Unlock()
		return ErrNotFound
	}
	if meta.SpaceID != nil {
		c.SpaceID = *meta.SpaceID
	}
	if meta.SpaceName != nil {
		c.SpaceName = *meta.SpaceName
	}
	if meta.SystemPrompt != nil {
		c.SystemPrompt = *meta.SystemPrompt
	}
	c.UpdatedAt = time.Now()

	snapshot := c.Clone()
	m.emitLocked(ChangeEvent{Op: OperationUpdate, Conversation: *snapshot})
	m.mu.Unlock()

	m.saver.Schedule(snapshot)
	return nil
}

// UndoWindow reports how long soft deletes stay undoable.
func (m *Manager) UndoWindow() time.Duration {
	return m.undoWindow
}

// ActiveID returns the id of the active conversation.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Active returns a copy of the active conversation.
func (m *Manager) Active() (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findLocked(m.activeID)
	if c == nil {
		return Conversation{}, false
	}
	return *c.Clone(), true
}

// Get returns a copy of the conversation with the given id.
func (m *Manager) Get(id string) (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findLocked(id)
	if c == nil {
		return Conversation{}, false
	}
	return *c.Clone(), true
}

// List returns copies of all conversations in display order.
func (m *Manager) List() []Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Conversation, len(m.conversations))
	for i, c := range m.conversations {
		out[i] = *c.Clone()
	}
	return out
}

// Summaries returns the listing view of all conversations in display order.
func (m *Manager) Summaries() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, len(m.conversations))
	for i, c := range m.conversations {
		out[i] = c.Summarize()
	}
	return out
}

// Close flushes the pending debounced save, executes any soft deletes whose
// undo window is still open, and stops the background writer. The manager
// must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	expired := make([]string, 0, len(m.pending))
	for id, e := range m.pending {
		e.timer.Stop()
		expired = append(expired, id)
	}
	m.pending = make(map[string]*pendingDelete)
	m.mu.Unlock()

	m.saver.Flush()
	for _, id := range expired {
		m.enqueue(m.backendDeleteOp(id))
	}

	m.qmu.Lock()
	m.qClosed = true
	close(m.ops)
	m.qmu.Unlock()
	<-m.qDone

	m.cancel()
}

// enqueue hands op to the background writer, preserving issue order. After
// Close has drained the queue, ops run inline so nothing is lost.
func (m *Manager) enqueue(op func(ctx context.Context)) {
	m.qmu.Lock()
	if m.qClosed {
		m.qmu.Unlock()
		op(context.Background())
		return
	}
	m.ops <- op
	m.qmu.Unlock()
}

func (m *Manager) opLoop() {
	defer close(m.qDone)
	for op := range m.ops {
		op(m.ctx)
	}
}

// findLocked returns the live conversation for id, or nil. Caller holds mu.
func (m *Manager) findLocked(id string) *Conversation {
	if id == "" {
		return nil
	}
	for _, c := range m.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// newConversationLocked builds a fresh conversation, prepends it, and makes
// it active. Caller holds mu and is responsible for persisting the result.
func (m *Manager) newConversationLocked(opts CreateOptions) *Conversation {
	now := time.Now()
	c := &Conversation{
		ID:           NewID(),
		Title:        DefaultTitle,
		Messages:     []Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
		SpaceID:      opts.SpaceID,
		SpaceName:    opts.SpaceName,
		SystemPrompt: opts.SystemPrompt,
	}
	m.conversations = append([]*Conversation{c}, m.conversations...)
	m.activeID = c.ID
	m.emitLocked(ChangeEvent{Op: OperationCreate, Conversation: *c.Clone()})
	return c
}

// synthesizeLocked creates and persists the fallback conversation used when
// the list would otherwise be empty. Caller holds mu.
func (m *Manager) synthesizeLocked() {
	c := m.newConversationLocked(CreateOptions{})
	snapshot := c.Clone()
	m.enqueueAsync(func(ctx context.Context) {
		if err := m.gateway.SaveConversation(ctx, snapshot); err != nil {
			slog.Error("failed to persist synthesized conversation", "conversationId", snapshot.ID, "error", err)
		}
	})
	slog.Info("synthesized fresh conversation", "conversationId", c.ID)
}

// enqueueAsync enqueues without blocking; used under mu where a full queue
// must not deadlock the manager.
func (m *Manager) enqueueAsync(op func(ctx context.Context)) {
	go m.enqueue(op)
}

func (m *Manager) emitLocked(ev ChangeEvent) {
	if m.listener != nil {
		m.listener.OnConversationChange(ev)
	}
}
