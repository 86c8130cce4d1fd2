package conversation

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("conversation not found")

// DefaultTitle is the sentinel title given to a conversation at creation.
// It is replaced exactly once by an auto-derived title when the first user
// message arrives, unless the user renames the conversation first.
const DefaultTitle = "New Chat"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid returns true if the role is a known valid role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is a single entry in a conversation's history. Artifacts and
// SearchResults are opaque payloads produced by backend panels; the core
// passes them through unmodified.
type Message struct {
	ID            string          `json:"id"`
	Role          Role            `json:"role"`
	Content       string          `json:"content"`
	Timestamp     time.Time       `json:"timestamp"`
	Artifacts     json.RawMessage `json:"artifacts,omitempty"`
	SearchResults json.RawMessage `json:"search_results,omitempty"`
}

// Conversation is a persisted chat thread. Messages are append-only and
// ordered by insertion; UpdatedAt is refreshed on every mutation.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Pinned       bool      `json:"pinned"`
	SpaceID      string    `json:"space_id,omitempty"`
	SpaceName    string    `json:"space_name,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
}

// Clone returns a copy with its own message slice, safe to hand to
// asynchronous writers while the original keeps mutating.
func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.Messages != nil {
		out.Messages = append([]Message(nil), c.Messages...)
	}
	return &out
}

// Summary is a lightweight representation for listing in the UI.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Pinned    bool      `json:"pinned"`
	SpaceID   string    `json:"space_id,omitempty"`
	SpaceName string    `json:"space_name,omitempty"`
	Messages  int       `json:"messages"`
}

// Summarize builds the listing view of a conversation.
func (c *Conversation) Summarize() Summary {
	return Summary{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Pinned:    c.Pinned,
		SpaceID:   c.SpaceID,
		SpaceName: c.SpaceName,
		Messages:  len(c.Messages),
	}
}

// Operation represents the type of change to the conversation list.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationUpdate  Operation = "update"
	OperationDelete  Operation = "delete"
	OperationReorder Operation = "reorder"
)

// ChangeEvent represents a change to the conversation list.
// For create/update: Conversation is fully populated.
// For delete: only Conversation.ID is valid.
// For reorder: Conversation is zero; subscribers should re-read the list.
type ChangeEvent struct {
	Op           Operation
	Conversation Conversation
}

// ChangeListener receives notifications when the conversation list changes.
// Implementations must not block: listeners are invoked while the manager
// holds its mutex.
type ChangeListener interface {
	OnConversationChange(event ChangeEvent)
}
