// Package eventbus defines the in-process event contract used to decouple
// committed state changes from their best-effort side effects (audit
// logging, notification dispatch, fraud evaluation).
package eventbus

import "context"

// Event is anything that can ride the bus. Type is the routing key.
type Event interface {
	Type() string
}

// HandlerFunc consumes one event. Handler errors are side-channel errors:
// implementations of Bus log and swallow them, they can never roll back the
// state change that produced the event.
type HandlerFunc func(ctx context.Context, event Event) error

// Bus dispatches events to registered handlers. Emit is called strictly
// after the originating state change has committed, in commit order.
type Bus interface {
	Register(eventType string, handler HandlerFunc)
	Emit(ctx context.Context, event Event) error
}
