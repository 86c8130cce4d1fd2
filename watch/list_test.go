package watch

import (
	"testing"
	"time"

	"github.com/quillspace/server/conversation"
)

type fakeSource struct {
	summaries []conversation.Summary
	activeID  string
	listener  conversation.ChangeListener
}

func (f *fakeSource) Summaries() []conversation.Summary { return f.summaries }
func (f *fakeSource) ActiveID() string                  { return f.activeID }
func (f *fakeSource) SetOnChangeListener(l conversation.ChangeListener) {
	f.listener = l
}

func TestListWatcher_SubscribeReturnsCurrentList(t *testing.T) {
	src := &fakeSource{
		summaries: []conversation.Summary{{ID: "c1"}, {ID: "c2"}},
		activeID:  "c1",
	}
	w := NewListWatcher(src)
	w.Start()
	t.Cleanup(w.Stop)

	if src.listener == nil {
		t.Fatal("expected watcher to register itself as change listener")
	}

	id, list := w.Subscribe(newCaptureNotifier())
	if id == "" {
		t.Error("expected a subscription id")
	}
	if len(list) != 2 {
		t.Errorf("expected current list, got %d entries", len(list))
	}
}

func TestListWatcher_PropagatesEvents(t *testing.T) {
	src := &fakeSource{activeID: "c1"}
	w := NewListWatcher(src)
	w.Start()
	t.Cleanup(w.Stop)

	n := newCaptureNotifier()
	subID, _ := w.Subscribe(n)

	src.listener.OnConversationChange(conversation.ChangeEvent{
		Op:           conversation.OperationCreate,
		Conversation: conversation.Conversation{ID: "c9", Title: "fresh"},
	})

	select {
	case notif := <-n.ch:
		if notif.Method != "conversation.list.changed" {
			t.Errorf("unexpected method %q", notif.Method)
		}
		params, ok := notif.Params.(listChangedParams)
		if !ok {
			t.Fatalf("unexpected params type %T", notif.Params)
		}
		if params.ID != subID {
			t.Errorf("expected subscription id %q, got %q", subID, params.ID)
		}
		if params.Operation != "create" || params.Conversation == nil || params.Conversation.ID != "c9" {
			t.Errorf("unexpected params: %+v", params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestListWatcher_DeleteCarriesOnlyID(t *testing.T) {
	src := &fakeSource{activeID: "c1"}
	w := NewListWatcher(src)
	w.Start()
	t.Cleanup(w.Stop)

	n := newCaptureNotifier()
	w.Subscribe(n)

	src.listener.OnConversationChange(conversation.ChangeEvent{
		Op:           conversation.OperationDelete,
		Conversation: conversation.Conversation{ID: "gone"},
	})

	select {
	case notif := <-n.ch:
		params := notif.Params.(listChangedParams)
		if params.ConversationID != "gone" {
			t.Errorf("expected conversationId gone, got %q", params.ConversationID)
		}
		if params.Conversation != nil {
			t.Error("delete events must not carry a conversation payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestListWatcher_DropsEventsAfterStop(t *testing.T) {
	src := &fakeSource{}
	w := NewListWatcher(src)
	w.Start()
	w.Stop()

	// Must not block or panic after stop.
	src.listener.OnConversationChange(conversation.ChangeEvent{Op: conversation.OperationUpdate})
}
