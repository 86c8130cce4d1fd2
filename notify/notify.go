// Package notify carries user-facing notifications (toasts and undo offers)
// from the core to whatever surface renders them.
package notify

import "time"

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a single event for the UI notification channel. When Undo
// is non-nil the surface should offer an undo affordance that stays visible
// for Duration and invokes Undo when accepted.
type Notification struct {
	Kind        Kind
	Title       string
	Description string
	Undo        func()
	Duration    time.Duration
}

// Sink receives notifications. Implementations must not block.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Nop returns a sink that discards everything.
func Nop() Sink {
	return SinkFunc(func(Notification) {})
}
