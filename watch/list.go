package watch

import (
	"log/slog"

	"github.com/quillspace/server/conversation"
)

// ConversationSource is the slice of the lifecycle manager the list watcher
// needs: the current listing and a change-event hook.
type ConversationSource interface {
	Summaries() []conversation.Summary
	ActiveID() string
	SetOnChangeListener(l conversation.ChangeListener)
}

// ListWatcher notifies subscribers when the conversation list changes.
// Change events arrive on a buffered channel because the manager emits them
// while holding its mutex; network I/O must not run there.
type ListWatcher struct {
	*BaseWatcher
	source  ConversationSource
	eventCh chan conversation.ChangeEvent
}

func NewListWatcher(source ConversationSource) *ListWatcher {
	w := &ListWatcher{
		BaseWatcher: NewBaseWatcher("cl"),
		source:      source,
		eventCh:     make(chan conversation.ChangeEvent, 64),
	}
	source.SetOnChangeListener(w)
	return w
}

func (w *ListWatcher) Start() {
	go w.eventLoop()
	slog.Info("conversation list watcher started")
}

func (w *ListWatcher) Stop() {
	w.Cancel()
	slog.Info("conversation list watcher stopped")
}

func (w *ListWatcher) eventLoop() {
	for {
		select {
		case <-w.Context().Done():
			return
		case event := <-w.eventCh:
			w.notifyChange(event)
		}
	}
}

type listChangedParams struct {
	ID             string                `json:"id"`
	Operation      string                `json:"operation"`
	Conversation   *conversation.Summary `json:"conversation,omitempty"`
	ConversationID string                `json:"conversationId,omitempty"`
	ActiveID       string                `json:"activeId"`
}

func (w *ListWatcher) notifyChange(event conversation.ChangeEvent) {
	if !w.HasSubscriptions() {
		return
	}

	activeID := w.source.ActiveID()
	w.NotifyAll("conversation.list.changed", func(sub *Subscription) any {
		params := listChangedParams{
			ID:        sub.ID,
			Operation: string(event.Op),
			ActiveID:  activeID,
		}
		switch event.Op {
		case conversation.OperationDelete:
			params.ConversationID = event.Conversation.ID
		case conversation.OperationReorder:
			// Subscribers re-read the full list on reorder.
		default:
			s := event.Conversation.Summarize()
			params.Conversation = &s
		}
		return params
	})

	slog.Debug("notified conversation list change", "operation", event.Op)
}

// Subscribe registers a subscriber and returns the subscription id along
// with the current listing. The subscription is added before the list is
// read so no event between the two is missed.
func (w *ListWatcher) Subscribe(notifier Notifier) (string, []conversation.Summary) {
	id := w.GenerateID()
	w.AddSubscription(&Subscription{ID: id, Notifier: notifier})
	return id, w.source.Summaries()
}

// OnConversationChange implements conversation.ChangeListener. It is called
// under the manager's mutex and must not block: events are queued for async
// processing, and dropped with a warning if the buffer is ever full.
func (w *ListWatcher) OnConversationChange(event conversation.ChangeEvent) {
	if w.Context().Err() != nil {
		return
	}

	select {
	case w.eventCh <- event:
	default:
		slog.Warn("conversation list change event dropped (buffer full)", "operation", event.Op)
	}
}
