package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/quillspace/server/conversation"
)

// toolError is the machine-readable payload of every failed tool call, so
// agents can branch on code instead of parsing prose.
type toolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func errorResult(e toolError) *mcp.CallToolResult {
	data, _ := json.Marshal(e)
	return mcp.NewToolResultError(string(data))
}

func conversationNotFound(id string) *mcp.CallToolResult {
	return errorResult(toolError{
		Code:    "not_found",
		Message: "conversation not found",
		Details: map[string]any{"conversation_id": id},
	})
}

func validationError(msg string) *mcp.CallToolResult {
	return errorResult(toolError{Code: "validation", Message: msg})
}

func internalError(err error) *mcp.CallToolResult {
	return errorResult(toolError{Code: "internal", Message: err.Error()})
}

func (s *Server) handleConversationList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversations, err := s.gateway.LoadConversations(ctx)
	if err != nil {
		return internalError(err), nil
	}

	summaries := make([]conversation.Summary, 0, len(conversations))
	for i := range conversations {
		summaries = append(summaries, conversations[i].Summarize())
	}
	return jsonResult(summaries)
}

func (s *Server) handleConversationGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return validationError("conversation_id is required"), nil
	}

	conversations, err := s.gateway.LoadConversations(ctx)
	if err != nil {
		return internalError(err), nil
	}
	for i := range conversations {
		if conversations[i].ID == id {
			return jsonResult(conversations[i])
		}
	}
	return conversationNotFound(id), nil
}

func (s *Server) handleConversationSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return validationError("query is required"), nil
	}
	needle := strings.ToLower(query)

	conversations, err := s.gateway.LoadConversations(ctx)
	if err != nil {
		return internalError(err), nil
	}

	matches := make([]conversation.Summary, 0)
	for i := range conversations {
		if conversationMatches(&conversations[i], needle) {
			matches = append(matches, conversations[i].Summarize())
		}
	}
	return jsonResult(matches)
}

func conversationMatches(c *conversation.Conversation, needle string) bool {
	if strings.Contains(strings.ToLower(c.Title), needle) {
		return true
	}
	for _, msg := range c.Messages {
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			return true
		}
	}
	return false
}

func (s *Server) handleConversationCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now()
	c := conversation.Conversation{
		ID:           conversation.NewID(),
		Title:        req.GetString("title", ""),
		SpaceID:      req.GetString("space_id", ""),
		SystemPrompt: req.GetString("system_prompt", ""),
		Messages:     []conversation.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if content := req.GetString("first_message", ""); content != "" {
		c.Messages = append(c.Messages, conversation.Message{
			ID:        conversation.NewID(),
			Role:      conversation.RoleUser,
			Content:   content,
			Timestamp: now,
		})
	}
	if c.Title == "" {
		c.Title = conversation.DeriveTitle(c.Messages)
	}

	if err := s.gateway.SaveConversation(ctx, &c); err != nil {
		return internalError(err), nil
	}
	return jsonResult(c.Summarize())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}
