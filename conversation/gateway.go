package conversation

import "context"

// Gateway is the abstract persistence boundary the manager calls to durably
// store and retrieve conversations. Implementations may be slow or failing;
// the manager never blocks user-facing operations on a Gateway call.
type Gateway interface {
	// LoadConversations returns all persisted conversations in
	// most-recently-used order. Ordering is the gateway's responsibility.
	LoadConversations(ctx context.Context) ([]Conversation, error)

	// SaveConversation persists all fields of the conversation.
	// It is an idempotent upsert keyed by ID.
	SaveConversation(ctx context.Context, c *Conversation) error

	// RenameConversation updates the stored title for id.
	RenameConversation(ctx context.Context, id, title string) error

	// DeleteConversation removes the stored record for id.
	// Deleting an absent record is not an error.
	DeleteConversation(ctx context.Context, id string) error

	// PinConversation updates the stored pin flag for id.
	PinConversation(ctx context.Context, id string, pinned bool) error
}
