// Package mcp exposes the conversation store to AI agents as a stdio MCP
// server, so external tools can browse and seed the knowledge base.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/quillspace/server/conversation"
)

type Server struct {
	gateway conversation.Gateway
	version string
}

func NewServer(gateway conversation.Gateway, version string) *Server {
	return &Server{gateway: gateway, version: version}
}

// Run serves MCP over stdin/stdout until the stream closes.
func (s *Server) Run(ctx context.Context) error {
	return server.ServeStdio(s.build())
}

func (s *Server) build() *server.MCPServer {
	m := server.NewMCPServer("quillspace", s.version)

	m.AddTool(mcp.NewTool("conversation_list",
		mcp.WithDescription("List all conversations with their titles and metadata, pinned first."),
	), s.handleConversationList)

	m.AddTool(mcp.NewTool("conversation_get",
		mcp.WithDescription("Get a single conversation by ID with its full message history."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
	), s.handleConversationGet)

	m.AddTool(mcp.NewTool("conversation_search",
		mcp.WithDescription("Search conversation titles and message contents. Matching is case-insensitive substring."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.handleConversationSearch)

	m.AddTool(mcp.NewTool("conversation_create",
		mcp.WithDescription("Create a new conversation, optionally seeded with a first user message."),
		mcp.WithString("title", mcp.Description("Conversation title. Derived from the first message when omitted.")),
		mcp.WithString("first_message", mcp.Description("Initial user message content")),
		mcp.WithString("space_id", mcp.Description("Space to file the conversation under")),
		mcp.WithString("system_prompt", mcp.Description("System prompt for the conversation")),
	), s.handleConversationCreate)

	return m
}
