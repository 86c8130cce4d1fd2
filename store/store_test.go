package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillspace/server/conversation"
)

var bg = context.Background()

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func save(t *testing.T, s *FileStore, c conversation.Conversation) {
	t.Helper()
	if err := s.SaveConversation(bg, &c); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Millisecond)
	save(t, s, conversation.Conversation{
		ID:        "c1",
		Title:     "research",
		CreatedAt: now,
		UpdatedAt: now,
		SpaceID:   "sp1",
		SpaceName: "Papers",
		Messages: []conversation.Message{
			{ID: "m1", Role: conversation.RoleUser, Content: "hello", Timestamp: now},
			{ID: "m2", Role: conversation.RoleAssistant, Content: "hi", Timestamp: now},
		},
	})

	loaded, err := s.LoadConversations(bg)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(loaded))
	}

	c := loaded[0]
	if c.Title != "research" || c.SpaceID != "sp1" || c.SpaceName != "Papers" {
		t.Errorf("fields lost in round trip: %+v", c)
	}
	if len(c.Messages) != 2 || c.Messages[0].Content != "hello" || c.Messages[1].Role != conversation.RoleAssistant {
		t.Errorf("messages lost in round trip: %+v", c.Messages)
	}
}

func TestLoadOrdering(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	save(t, s, conversation.Conversation{ID: "old", UpdatedAt: base.Add(-2 * time.Hour)})
	save(t, s, conversation.Conversation{ID: "new", UpdatedAt: base})
	save(t, s, conversation.Conversation{ID: "pinned", UpdatedAt: base.Add(-1 * time.Hour), Pinned: true})

	loaded, err := s.LoadConversations(bg)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(loaded))
	}
	if loaded[0].ID != "pinned" {
		t.Errorf("expected pinned entry first, got %q", loaded[0].ID)
	}
	if loaded[1].ID != "new" || loaded[2].ID != "old" {
		t.Errorf("expected MRU order after pinned, got %q %q", loaded[1].ID, loaded[2].ID)
	}
}

func TestLoadSkipsInvalidFiles(t *testing.T) {
	s := newTestStore(t)
	save(t, s, conversation.Conversation{ID: "good"})

	if err := os.WriteFile(filepath.Join(s.Dir(), "junk.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.LoadConversations(bg)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].ID != "good" {
		t.Errorf("expected only valid documents, got %+v", loaded)
	}
}

func TestSaveIsUpsert(t *testing.T) {
	s := newTestStore(t)
	save(t, s, conversation.Conversation{ID: "c1", Title: "v1"})
	save(t, s, conversation.Conversation{ID: "c1", Title: "v2"})

	loaded, _ := s.LoadConversations(bg)
	if len(loaded) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(loaded))
	}
	if loaded[0].Title != "v2" {
		t.Errorf("expected latest version, got %q", loaded[0].Title)
	}
}

func TestRenameConversation(t *testing.T) {
	s := newTestStore(t)
	save(t, s, conversation.Conversation{ID: "c1", Title: "before"})

	if err := s.RenameConversation(bg, "c1", "after"); err != nil {
		t.Fatal(err)
	}
	loaded, _ := s.LoadConversations(bg)
	if loaded[0].Title != "after" {
		t.Errorf("expected renamed title, got %q", loaded[0].Title)
	}

	if err := s.RenameConversation(bg, "missing", "x"); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPinConversation(t *testing.T) {
	s := newTestStore(t)
	save(t, s, conversation.Conversation{ID: "c1"})

	if err := s.PinConversation(bg, "c1", true); err != nil {
		t.Fatal(err)
	}
	loaded, _ := s.LoadConversations(bg)
	if !loaded[0].Pinned {
		t.Error("expected pinned flag set")
	}

	if err := s.PinConversation(bg, "missing", true); !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteConversation(t *testing.T) {
	s := newTestStore(t)
	save(t, s, conversation.Conversation{ID: "c1"})

	if err := s.DeleteConversation(bg, "c1"); err != nil {
		t.Fatal(err)
	}
	loaded, _ := s.LoadConversations(bg)
	if len(loaded) != 0 {
		t.Errorf("expected empty store, got %d", len(loaded))
	}

	// Deleting an absent record is not an error.
	if err := s.DeleteConversation(bg, "c1"); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
}
