// Package ws exposes the conversation backend as JSON-RPC 2.0 over
// WebSocket: namespaced request methods plus server-initiated notifications
// for list changes, toasts, and undo offers.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/quillspace/server/conversation"
	"github.com/quillspace/server/logger"
	"github.com/quillspace/server/notify"
	"github.com/quillspace/server/rpc"
	"github.com/quillspace/server/watch"
	"github.com/sourcegraph/jsonrpc2"
)

// RPCHandler handles JSON-RPC 2.0 over WebSocket.
type RPCHandler struct {
	token        string
	version      string
	title        string
	devMode      bool
	manager      *conversation.Manager
	broadcaster  *notify.Broadcaster
	listWatcher  *watch.ListWatcher
	storeWatcher *watch.StoreWatcher // nil when store watching is disabled
}

func NewRPCHandler(token, version, title string, devMode bool, manager *conversation.Manager, broadcaster *notify.Broadcaster, listWatcher *watch.ListWatcher, storeWatcher *watch.StoreWatcher) *RPCHandler {
	return &RPCHandler{
		token:        token,
		version:      version,
		title:        title,
		devMode:      devMode,
		manager:      manager,
		broadcaster:  broadcaster,
		listWatcher:  listWatcher,
		storeWatcher: storeWatcher,
	}
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.devMode,
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err)
		return
	}

	h.handleConnection(r.Context(), conn)
}

func (h *RPCHandler) handleConnection(ctx context.Context, wsConn *websocket.Conn) {
	stream := newWebSocketStream(wsConn)
	connID := uuid.Must(uuid.NewV7()).String()
	h.HandleStream(ctx, stream, connID)
}

// HandleStream runs one JSON-RPC connection until disconnect.
func (h *RPCHandler) HandleStream(ctx context.Context, stream jsonrpc2.ObjectStream, connID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, "websocket connection crashed", "connId", connID)
		}
	}()

	log := slog.With("connId", connID)
	log.Info("new connection")

	state := newConnState(connID, log)

	handler := &rpcMethodHandler{
		RPCHandler: h,
		state:      state,
		log:        log,
	}

	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(handler))
	state.setConn(rpcConn)

	<-rpcConn.DisconnectNotify()

	state.cleanup(h.broadcaster)
	log.Info("connection closed")
}

// rpcConnState tracks per-connection state: the notifier, active watcher
// subscriptions, and outstanding undo tokens offered to this client.
type rpcConnState struct {
	mu            sync.Mutex
	connID        string
	conn          *jsonrpc2.Conn
	notifier      *JSONRPCNotifier
	log           *slog.Logger
	subscriptions map[string]watch.Watcher
	undoActions   map[string]func()
}

func newConnState(connID string, log *slog.Logger) *rpcConnState {
	return &rpcConnState{
		connID:        connID,
		log:           log,
		subscriptions: make(map[string]watch.Watcher),
		undoActions:   make(map[string]func()),
	}
}

func (s *rpcConnState) setConn(conn *jsonrpc2.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.notifier = NewJSONRPCNotifier(conn)
	s.mu.Unlock()
}

func (s *rpcConnState) getNotifier() watch.Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifier == nil {
		return nil
	}
	return s.notifier
}

func (s *rpcConnState) trackSubscription(id string, watcher watch.Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[id] = watcher
}

func (s *rpcConnState) untrackSubscription(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, id)
}

func (s *rpcConnState) putUndo(token string, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undoActions == nil {
		return // connection already cleaned up
	}
	s.undoActions[token] = action
}

func (s *rpcConnState) takeUndo(token string) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, ok := s.undoActions[token]
	if !ok {
		return nil
	}
	delete(s.undoActions, token)
	return action
}

func (s *rpcConnState) dropUndo(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.undoActions, token)
}

func (s *rpcConnState) cleanup(broadcaster *notify.Broadcaster) {
	broadcaster.Remove(s.connID)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, watcher := range s.subscriptions {
		watcher.Unsubscribe(id)
	}
	s.subscriptions = nil
	s.undoActions = nil
}

type rpcMethodHandler struct {
	*RPCHandler
	state         *rpcConnState
	log           *slog.Logger
	authMu        sync.Mutex
	authenticated bool
}

func (h *rpcMethodHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, "rpc handler panic", "method", req.Method, "connId", h.state.connID)
		}
	}()

	h.log.Debug("received request", "method", req.Method, "id", req.ID)

	// Auth must be the first request
	if !h.isAuthenticated() {
		if req.Method != "auth" {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "first request must be auth")
			conn.Close()
			return
		}
		h.handleAuth(ctx, conn, req)
		return
	}

	switch req.Method {
	// conversation namespace
	case "conversation.create":
		h.handleConversationCreate(ctx, conn, req)
	case "conversation.get":
		h.handleConversationGet(ctx, conn, req)
	case "conversation.switch":
		h.handleConversationSwitch(ctx, conn, req)
	case "conversation.message":
		h.handleConversationMessage(ctx, conn, req)
	case "conversation.rename":
		h.handleConversationRename(ctx, conn, req)
	case "conversation.delete":
		h.handleConversationDelete(ctx, conn, req)
	case "conversation.undo":
		h.handleConversationUndo(ctx, conn, req)
	case "conversation.pin":
		h.handleConversationPin(ctx, conn, req)
	case "conversation.reorder":
		h.handleConversationReorder(ctx, conn, req)
	case "conversation.update_meta":
		h.handleConversationUpdateMeta(ctx, conn, req)
	case "conversation.list.subscribe":
		h.handleListSubscribe(ctx, conn, req)
	case "conversation.list.unsubscribe":
		h.handleWatcherUnsubscribe(ctx, conn, req, h.listWatcher, "conversation list")
	// store namespace
	case "store.subscribe":
		h.handleStoreSubscribe(ctx, conn, req)
	case "store.unsubscribe":
		h.handleStoreUnsubscribe(ctx, conn, req)
	// notices
	case "notice.undo":
		h.handleNoticeUndo(ctx, conn, req)
	default:
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (h *rpcMethodHandler) isAuthenticated() bool {
	h.authMu.Lock()
	defer h.authMu.Unlock()
	return h.authenticated
}

func (h *rpcMethodHandler) setAuthenticated() {
	h.authMu.Lock()
	h.authenticated = true
	h.authMu.Unlock()
}

func (h *rpcMethodHandler) handleAuth(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.AuthParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		conn.Close()
		return
	}

	if subtle.ConstantTimeCompare([]byte(params.Token), []byte(h.token)) != 1 {
		h.log.Warn("invalid auth token")
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "invalid token")
		conn.Close()
		return
	}

	// Route toasts and undo offers to this client from now on.
	h.broadcaster.Add(h.state.connID, newNoticeSink(h.state))

	h.setAuthenticated()
	h.log.Info("authenticated")

	result := rpc.AuthResult{
		Version:        h.version,
		Title:          h.title,
		ActiveID:       h.manager.ActiveID(),
		UndoWindowMsec: h.manager.UndoWindow().Milliseconds(),
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send auth response", "error", err)
	}
}

func (h *rpcMethodHandler) replyError(ctx context.Context, conn *jsonrpc2.Conn, id jsonrpc2.ID, code int64, message string) {
	err := &jsonrpc2.Error{
		Code:    code,
		Message: message,
	}
	if replyErr := conn.ReplyWithError(ctx, id, err); replyErr != nil {
		h.log.Error("failed to send error response", "error", replyErr)
	}
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return errors.New("params required")
	}
	return json.Unmarshal(*req.Params, v)
}

type unsubscribeParams struct {
	ID string `json:"id"`
}

func (h *rpcMethodHandler) handleWatcherUnsubscribe(
	ctx context.Context,
	conn *jsonrpc2.Conn,
	req *jsonrpc2.Request,
	watcher watch.Watcher,
	logName string,
) {
	var params unsubscribeParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}
	if params.ID == "" {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "id is required")
		return
	}

	watcher.Unsubscribe(params.ID)
	h.state.untrackSubscription(params.ID)
	h.log.Debug("unsubscribed", "watcher", logName, "watchId", params.ID)

	if err := conn.Reply(ctx, req.ID, struct{}{}); err != nil {
		h.log.Error("failed to send "+logName+" unsubscribe response", "error", err)
	}
}

// webSocketStream adapts coder/websocket to jsonrpc2.ObjectStream.
type webSocketStream struct {
	conn *websocket.Conn
	mu   sync.Mutex // protects writes
}

func newWebSocketStream(conn *websocket.Conn) *webSocketStream {
	return &webSocketStream{conn: conn}
}

func (s *webSocketStream) ReadObject(v interface{}) error {
	_, data, err := s.conn.Read(context.Background())
	if err != nil {
		// Treat normal close frames as EOF so jsonrpc2 shuts down gracefully
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return io.EOF
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *webSocketStream) WriteObject(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Write(context.Background(), websocket.MessageText, data)
}

func (s *webSocketStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// Ensure webSocketStream implements ObjectStream
var _ jsonrpc2.ObjectStream = (*webSocketStream)(nil)
