// Package rpc defines JSON-RPC 2.0 wire format types for WebSocket
// communication. These types represent the params and result structures for
// all RPC methods.
package rpc

import (
	"encoding/json"

	"github.com/quillspace/server/conversation"
)

// Client → Server

type AuthParams struct {
	Token string `json:"token"`
}

type AuthResult struct {
	Version        string `json:"version"`
	Title          string `json:"title"`
	ActiveID       string `json:"active_id"`
	UndoWindowMsec int64  `json:"undo_window_msec"`
}

// Conversation management

type ConversationCreateParams struct {
	SpaceID      string `json:"space_id,omitempty"`
	SpaceName    string `json:"space_name,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type ConversationCreateResult struct {
	Conversation conversation.Summary `json:"conversation"`
}

type ConversationSwitchParams struct {
	ConversationID string `json:"conversation_id"`
}

type ConversationGetParams struct {
	ConversationID string `json:"conversation_id"`
}

type ConversationGetResult struct {
	Conversation conversation.Conversation `json:"conversation"`
}

type MessageParams struct {
	Role          string          `json:"role"`
	Content       string          `json:"content"`
	Artifacts     json.RawMessage `json:"artifacts,omitempty"`
	SearchResults json.RawMessage `json:"search_results,omitempty"`
}

type ConversationRenameParams struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

type ConversationDeleteParams struct {
	ConversationID string `json:"conversation_id"`
}

type ConversationUndoParams struct {
	ConversationID string `json:"conversation_id"`
}

type ConversationPinParams struct {
	ConversationID string `json:"conversation_id"`
}

type ConversationPinResult struct {
	Pinned bool `json:"pinned"`
}

type ConversationReorderParams struct {
	ConversationIDs []string `json:"conversation_ids"`
}

type ConversationMetaParams struct {
	ConversationID string  `json:"conversation_id"`
	SpaceID        *string `json:"space_id,omitempty"`
	SpaceName      *string `json:"space_name,omitempty"`
	SystemPrompt   *string `json:"system_prompt,omitempty"`
}

// Subscriptions

type SubscribeResult struct {
	ID string `json:"id"`
}

type ConversationListSubscribeResult struct {
	ID            string                 `json:"id"`
	Conversations []conversation.Summary `json:"conversations"`
	ActiveID      string                 `json:"active_id"`
}

// Server → Client notifications

// Notice is a toast pushed to the client. When UndoToken is set the client
// should offer an undo affordance for DurationMsec and call notice.undo with
// the token if accepted.
type Notice struct {
	Kind         string `json:"kind"` // "success" or "error"
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	UndoToken    string `json:"undo_token,omitempty"`
	DurationMsec int64  `json:"duration_msec,omitempty"`
}

type NoticeUndoParams struct {
	Token string `json:"token"`
}
