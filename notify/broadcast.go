package notify

import "sync"

// Broadcaster fans a notification out to every registered sink. Connections
// register themselves on attach and remove themselves on close.
type Broadcaster struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{sinks: make(map[string]Sink)}
}

func (b *Broadcaster) Add(id string, s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[id] = s
}

func (b *Broadcaster) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, id)
}

func (b *Broadcaster) Notify(n Notification) {
	b.mu.RLock()
	sinks := make([]Sink, 0, len(b.sinks))
	for _, s := range b.sinks {
		sinks = append(sinks, s)
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Notify(n)
	}
}

var _ Sink = (*Broadcaster)(nil)
