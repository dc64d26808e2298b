package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/upnpevents/internal/metrics"
	dispatchpkg "github.com/rmacdonaldsmith/upnpevents/pkg/dispatch"
	"github.com/rmacdonaldsmith/upnpevents/pkg/lastchange"
)

// ErrSealed is returned by Register once the dispatcher has been sealed.
var ErrSealed = errors.New("dispatcher is sealed, handlers must be registered before the listener starts")

// SyncDispatcher implements dispatch.Dispatcher by running handlers in order
// on the caller's goroutine.
type SyncDispatcher struct {
	// mu guards handlers until the dispatcher is sealed
	mu       sync.Mutex
	handlers []dispatchpkg.Handler
	sealed   atomic.Bool

	log     zerolog.Logger
	metrics metrics.Collector
}

var _ dispatchpkg.Dispatcher = (*SyncDispatcher)(nil)

// NewSyncDispatcher creates an empty, unsealed dispatcher.
func NewSyncDispatcher(log zerolog.Logger, collector metrics.Collector) *SyncDispatcher {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &SyncDispatcher{
		log:     log.With().Str("component", "dispatcher").Logger(),
		metrics: collector,
	}
}

// Register appends h to the handler list.
func (d *SyncDispatcher) Register(h dispatchpkg.Handler) error {
	if h == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed.Load() {
		return ErrSealed
	}
	d.handlers = append(d.handlers, h)
	return nil
}

// Seal freezes the handler list. Sealing twice is a no-op.
func (d *SyncDispatcher) Seal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (d *SyncDispatcher) Sealed() bool {
	return d.sealed.Load()
}

// Len returns the number of registered handlers.
func (d *SyncDispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.handlers)
}

// Dispatch calls every handler in registration order. Handler errors and
// panics are logged and collected; they never stop later handlers.
func (d *SyncDispatcher) Dispatch(ctx context.Context, attrs lastchange.AttributeSet) error {
	handlers := d.snapshot()
	d.metrics.NotificationDispatched()

	var result *multierror.Error
	for i, h := range handlers {
		if err := d.invoke(ctx, h, attrs); err != nil {
			d.metrics.HandlerFailed()
			d.log.Error().
				Err(err).
				Int("handler_index", i).
				Str("handler", fmt.Sprintf("%T", h)).
				Msg("handler failed")
			result = multierror.Append(result, fmt.Errorf("handler %d: %w", i, err))
		}
	}

	return result.ErrorOrNil()
}

// snapshot avoids holding the lock while handlers run. After Seal the slice
// never changes.
func (d *SyncDispatcher) snapshot() []dispatchpkg.Handler {
	if d.sealed.Load() {
		return d.handlers
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]dispatchpkg.Handler, len(d.handlers))
	copy(out, d.handlers)
	return out
}

func (d *SyncDispatcher) invoke(ctx context.Context, h dispatchpkg.Handler, attrs lastchange.AttributeSet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return h.HandleEvent(ctx, attrs)
}
