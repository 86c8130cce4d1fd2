// Package store persists conversations as one JSON document per conversation
// under the data directory. It implements conversation.Gateway.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quillspace/server/conversation"
)

// FileStore implements conversation.Gateway using file system storage.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a FileStore rooted at dataDir/conversations.
func NewFileStore(dataDir string) (*FileStore, error) {
	dir := filepath.Join(dataDir, "conversations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the conversation documents. Watchers use
// it to observe external modification.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// LoadConversations reads every conversation document. Unreadable or invalid
// files are skipped. The result is ordered pinned-first, then most recently
// updated.
func (s *FileStore) LoadConversations(ctx context.Context) ([]conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation directory: %w", err)
	}

	conversations := make([]conversation.Conversation, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue // Skip unreadable files
		}

		var c conversation.Conversation
		if err := json.Unmarshal(data, &c); err != nil || c.ID == "" {
			continue // Skip invalid files
		}
		conversations = append(conversations, c)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		if conversations[i].Pinned != conversations[j].Pinned {
			return conversations[i].Pinned
		}
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations, nil
}

// SaveConversation writes the full conversation document. Upsert keyed by ID.
func (s *FileStore) SaveConversation(ctx context.Context, c *conversation.Conversation) error {
	if c.ID == "" {
		return errors.New("conversation id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(c)
}

// RenameConversation updates the stored title for id.
func (s *FileStore) RenameConversation(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read(id)
	if err != nil {
		return err
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return s.write(c)
}

// DeleteConversation removes the stored document. Deleting an absent record
// is not an error.
func (s *FileStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// PinConversation updates the stored pin flag for id.
func (s *FileStore) PinConversation(ctx context.Context, id string, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read(id)
	if err != nil {
		return err
	}
	c.Pinned = pinned
	c.UpdatedAt = time.Now()
	return s.write(c)
}

// read loads one document. Caller must hold mu.
func (s *FileStore) read(id string) (*conversation.Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var c conversation.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &c, nil
}

// write stores one document atomically: write to a temp file, then rename.
// Caller must hold mu.
func (s *FileStore) write(c *conversation.Conversation) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, c.ID+"-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, s.path(c.ID))
}

var _ conversation.Gateway = (*FileStore)(nil)
