package dispatch

import (
	"context"

	"github.com/rmacdonaldsmith/upnpevents/pkg/lastchange"
)

// Handler receives the attribute set of every accepted notification.
// Handlers must treat attrs as read-only; the same set is passed to every
// registered handler.
type Handler interface {
	HandleEvent(ctx context.Context, attrs lastchange.AttributeSet) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, attrs lastchange.AttributeSet) error

// HandleEvent calls f(ctx, attrs).
func (f HandlerFunc) HandleEvent(ctx context.Context, attrs lastchange.AttributeSet) error {
	return f(ctx, attrs)
}

// Dispatcher fans attribute sets out to registered handlers.
//
// Handlers are invoked synchronously in registration order. A failing
// handler never prevents the ones after it from running.
type Dispatcher interface {
	// Register appends a handler. It fails once the dispatcher is sealed.
	Register(h Handler) error

	// Seal freezes the handler list. The callback listener seals the
	// dispatcher before it starts accepting notifications.
	Seal()

	// Dispatch delivers attrs to every handler and returns the combined
	// handler errors, if any.
	Dispatch(ctx context.Context, attrs lastchange.AttributeSet) error

	// Len returns the number of registered handlers.
	Len() int
}
