package ws

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quillspace/server/notify"
	"github.com/quillspace/server/rpc"
	"github.com/quillspace/server/watch"
	"github.com/sourcegraph/jsonrpc2"
)

// JSONRPCNotifier adapts jsonrpc2.Conn to the watch.Notifier interface.
type JSONRPCNotifier struct {
	conn *jsonrpc2.Conn
}

var _ watch.Notifier = (*JSONRPCNotifier)(nil)

func NewJSONRPCNotifier(conn *jsonrpc2.Conn) *JSONRPCNotifier {
	return &JSONRPCNotifier{conn: conn}
}

func (n *JSONRPCNotifier) Notify(ctx context.Context, notif watch.Notification) error {
	return n.conn.Notify(ctx, notif.Method, notif.Params)
}

// noticeSink forwards core notifications to one client as "notice" pushes.
// An undo action is held behind a one-shot token that expires with the
// affordance, so a late notice.undo call finds nothing to run.
type noticeSink struct {
	state *rpcConnState
}

var _ notify.Sink = (*noticeSink)(nil)

func newNoticeSink(state *rpcConnState) *noticeSink {
	return &noticeSink{state: state}
}

func (s *noticeSink) Notify(n notify.Notification) {
	notice := rpc.Notice{
		Kind:        string(n.Kind),
		Title:       n.Title,
		Description: n.Description,
	}

	if n.Undo != nil {
		token := uuid.Must(uuid.NewV7()).String()
		s.state.putUndo(token, n.Undo)
		time.AfterFunc(n.Duration, func() {
			s.state.dropUndo(token)
		})
		notice.UndoToken = token
		notice.DurationMsec = n.Duration.Milliseconds()
	}

	notifier := s.state.getNotifier()
	if notifier == nil {
		return
	}
	if err := notifier.Notify(context.Background(), watch.Notification{
		Method: "notice",
		Params: notice,
	}); err != nil {
		s.state.log.Debug("failed to push notice", "error", err)
	}
}
