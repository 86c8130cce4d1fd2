// Package watch pushes server-side state changes to subscribed clients.
package watch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Subscription ties a subscriber id to its notification channel.
type Subscription struct {
	ID       string
	Notifier Notifier
}

// Watcher is the common surface the RPC layer uses to drop subscriptions.
type Watcher interface {
	Unsubscribe(id string)
}

// BaseWatcher provides subscription bookkeeping shared by all watcher types.
type BaseWatcher struct {
	idPrefix string

	subMu         sync.RWMutex
	subscriptions map[string]*Subscription

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBaseWatcher(idPrefix string) *BaseWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &BaseWatcher{
		idPrefix:      idPrefix,
		subscriptions: make(map[string]*Subscription),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// GenerateID returns a fresh subscription id scoped by the watcher prefix.
func (b *BaseWatcher) GenerateID() string {
	raw := uuid.Must(uuid.NewV7()).String()
	return b.idPrefix + "_" + strings.ReplaceAll(raw, "-", "")[:12]
}

func (b *BaseWatcher) AddSubscription(sub *Subscription) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscriptions[sub.ID] = sub
}

func (b *BaseWatcher) RemoveSubscription(id string) *Subscription {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	sub, ok := b.subscriptions[id]
	if !ok {
		return nil
	}
	delete(b.subscriptions, id)
	return sub
}

func (b *BaseWatcher) HasSubscriptions() bool {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	return len(b.subscriptions) > 0
}

// NotifyAll sends one notification per subscriber. makeParams is called per
// subscription so params can embed the subscription id.
func (b *BaseWatcher) NotifyAll(method string, makeParams func(sub *Subscription) any) int {
	b.subMu.RLock()
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.subMu.RUnlock()

	for _, sub := range subs {
		n := Notification{Method: method, Params: makeParams(sub)}
		if err := sub.Notifier.Notify(context.Background(), n); err != nil {
			slog.Debug("failed to notify subscriber", "id", sub.ID, "error", err)
		}
	}
	return len(subs)
}

func (b *BaseWatcher) Context() context.Context { return b.ctx }
func (b *BaseWatcher) Cancel()                  { b.cancel() }

func (b *BaseWatcher) Unsubscribe(id string) {
	b.RemoveSubscription(id)
}
