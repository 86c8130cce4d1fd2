package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillspace/server/conversation"
	"github.com/quillspace/server/store"
)

// newTestHandler seeds the store with the given titles and builds a manager
// that adopts them, so the handlers serve the manager's live state.
func newTestHandler(t *testing.T, titles ...string) (*ConversationHandler, *conversation.Manager, []string) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ids := make([]string, 0, len(titles))
	base := time.Now()
	for i, title := range titles {
		c := conversation.Conversation{
			ID:        conversation.NewID(),
			Title:     title,
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := fs.SaveConversation(context.Background(), &c); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID)
	}

	m := conversation.NewManager(fs, nil, conversation.Config{UndoWindow: time.Minute})
	t.Cleanup(m.Close)
	m.Initialize(context.Background())

	return NewConversationHandler(m), m, ids
}

func TestConversationHandler_List(t *testing.T) {
	handler, _, _ := newTestHandler(t, "First", "Second")

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()

	handler.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Conversations []conversation.Summary `json:"conversations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Conversations) != 2 {
		t.Errorf("expected 2 conversations, got %d", len(resp.Conversations))
	}
}

func TestConversationHandler_Get(t *testing.T) {
	handler, _, ids := newTestHandler(t, "First")

	mux := http.NewServeMux()
	handler.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+ids[0], nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var c conversation.Conversation
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if c.ID != ids[0] {
		t.Errorf("expected id %s, got %s", ids[0], c.ID)
	}
}

func TestConversationHandler_Get_NotFound(t *testing.T) {
	handler, _, _ := newTestHandler(t, "First")

	mux := http.NewServeMux()
	handler.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/missing", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

// A soft-deleted conversation must disappear from the read surface
// immediately, even while the backing file still exists during the undo
// window.
func TestConversationHandler_SoftDeleteHiddenImmediately(t *testing.T) {
	handler, m, ids := newTestHandler(t, "First", "Second")

	if !m.DeleteConversation(ids[0]) {
		t.Fatal("delete failed")
	}

	mux := http.NewServeMux()
	handler.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+ids[0], nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for soft-deleted conversation, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp struct {
		Conversations []conversation.Summary `json:"conversations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, s := range resp.Conversations {
		if s.ID == ids[0] {
			t.Error("soft-deleted conversation still listed")
		}
	}
}
