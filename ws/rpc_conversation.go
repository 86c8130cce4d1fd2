package ws

import (
	"context"
	"errors"

	"github.com/quillspace/server/conversation"
	"github.com/quillspace/server/rpc"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *rpcMethodHandler) handleConversationCreate(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationCreateParams
	if req.Params != nil {
		if err := unmarshalParams(req, &params); err != nil {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
			return
		}
	}

	id := h.manager.CreateConversation(conversation.CreateOptions{
		SpaceID:      params.SpaceID,
		SpaceName:    params.SpaceName,
		SystemPrompt: params.SystemPrompt,
	})
	h.log.Info("conversation created", "conversationId", id)

	c, ok := h.manager.Get(id)
	if !ok {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to create conversation")
		return
	}

	result := rpc.ConversationCreateResult{Conversation: c.Summarize()}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send conversation create response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationGet(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationGetParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	c, ok := h.manager.Get(params.ConversationID)
	if !ok {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "conversation not found")
		return
	}

	if err := conn.Reply(ctx, req.ID, rpc.ConversationGetResult{Conversation: c}); err != nil {
		h.log.Error("failed to send conversation get response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationSwitch(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationSwitchParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}
	if params.ConversationID == "" {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "conversation_id is required")
		return
	}

	h.manager.SwitchConversation(params.ConversationID)
	h.log.Debug("switched conversation", "conversationId", params.ConversationID)

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send conversation switch response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationMessage(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.MessageParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	role := conversation.Role(params.Role)
	if !role.IsValid() {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid role")
		return
	}

	h.manager.AppendMessage(conversation.Message{
		Role:          role,
		Content:       params.Content,
		Artifacts:     params.Artifacts,
		SearchResults: params.SearchResults,
	})
	h.log.Info("message appended", "role", params.Role, "length", len(params.Content))

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send message response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationRename(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationRenameParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}
	if params.Title == "" {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "title required")
		return
	}

	if err := h.manager.RenameConversation(params.ConversationID, params.Title); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "conversation not found")
			return
		}
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to rename conversation")
		return
	}
	h.log.Info("conversation renamed", "conversationId", params.ConversationID, "title", params.Title)

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send conversation rename response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationDelete(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationDeleteParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	if !h.manager.DeleteConversation(params.ConversationID) {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "conversation not found")
		return
	}
	h.log.Info("conversation soft-deleted", "conversationId", params.ConversationID)

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send conversation delete response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationUndo(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationUndoParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	if !h.manager.UndoDelete(params.ConversationID) {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "nothing to undo")
		return
	}
	h.log.Info("conversation delete undone", "conversationId", params.ConversationID)

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send conversation undo response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationPin(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationPinParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	pinned, err := h.manager.PinConversation(params.ConversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "conversation not found")
			return
		}
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to toggle pin")
		return
	}
	h.log.Info("conversation pin toggled", "conversationId", params.ConversationID, "pinned", pinned)

	if err := conn.Reply(ctx, req.ID, rpc.ConversationPinResult{Pinned: pinned}); err != nil {
		h.log.Error("failed to send conversation pin response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationReorder(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationReorderParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}
	if len(params.ConversationIDs) == 0 {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "conversation_ids is required")
		return
	}

	h.manager.ReorderConversations(params.ConversationIDs)
	h.log.Info("conversations reordered", "count", len(params.ConversationIDs))

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send conversation reorder response", "error", err)
	}
}

func (h *rpcMethodHandler) handleConversationUpdateMeta(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.ConversationMetaParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	err := h.manager.UpdateConversationMeta(params.ConversationID, conversation.MetaUpdate{
		SpaceID:      params.SpaceID,
		SpaceName:    params.SpaceName,
		SystemPrompt: params.SystemPrompt,
	})
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "conversation not found")
			return
		}
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to update conversation")
		return
	}
	h.log.Debug("conversation meta updated", "conversationId", params.ConversationID)

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send conversation update response", "error", err)
	}
}

func (h *rpcMethodHandler) handleListSubscribe(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	notifier := h.state.getNotifier()
	id, summaries := h.listWatcher.Subscribe(notifier)
	h.state.trackSubscription(id, h.listWatcher)
	h.log.Debug("subscribed", "watcher", "conversation list", "watchId", id)

	result := rpc.ConversationListSubscribeResult{
		ID:            id,
		Conversations: summaries,
		ActiveID:      h.manager.ActiveID(),
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send conversation list subscribe response", "error", err)
	}
}

func (h *rpcMethodHandler) handleStoreSubscribe(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if h.storeWatcher == nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "store watching disabled")
		return
	}

	id := h.storeWatcher.Subscribe(h.state.getNotifier())
	h.state.trackSubscription(id, h.storeWatcher)
	h.log.Debug("subscribed", "watcher", "store", "watchId", id)

	if err := conn.Reply(ctx, req.ID, rpc.SubscribeResult{ID: id}); err != nil {
		h.log.Error("failed to send store subscribe response", "error", err)
	}
}

func (h *rpcMethodHandler) handleStoreUnsubscribe(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if h.storeWatcher == nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "store watching disabled")
		return
	}
	h.handleWatcherUnsubscribe(ctx, conn, req, h.storeWatcher, "store")
}

func (h *rpcMethodHandler) handleNoticeUndo(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.NoticeUndoParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	action := h.state.takeUndo(params.Token)
	if action == nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "undo expired")
		return
	}
	action()
	h.log.Info("undo action invoked", "token", params.Token)

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send undo response", "error", err)
	}
}
