package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchpkg "github.com/rmacdonaldsmith/upnpevents/pkg/dispatch"
	"github.com/rmacdonaldsmith/upnpevents/pkg/lastchange"
)

// countingCollector records handler failures for assertions
type countingCollector struct {
	mu         sync.Mutex
	dispatched int
	failures   int
}

func (c *countingCollector) NotificationReceived()       {}
func (c *countingCollector) NotificationRejected(string) {}
func (c *countingCollector) GENARequest(string, error)   {}

func (c *countingCollector) NotificationDispatched() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatched++
}

func (c *countingCollector) HandlerFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func testAttrs() lastchange.AttributeSet {
	return lastchange.NewAttributeSet(
		lastchange.Attribute{Name: "TransportState", Value: "PLAYING"},
		lastchange.Attribute{Name: "CurrentTrack", Value: "3"},
	)
}

func TestSyncDispatcher_RegistrationOrder(t *testing.T) {
	d := NewSyncDispatcher(zerolog.Nop(), nil)

	var calls []string
	var seen []lastchange.AttributeSet
	record := func(name string) dispatchpkg.HandlerFunc {
		return func(ctx context.Context, attrs lastchange.AttributeSet) error {
			calls = append(calls, name+":start")
			seen = append(seen, attrs)
			calls = append(calls, name+":end")
			return nil
		}
	}

	require.NoError(t, d.Register(record("h1")))
	require.NoError(t, d.Register(record("h2")))
	assert.Equal(t, 2, d.Len())

	err := d.Dispatch(context.Background(), testAttrs())
	require.NoError(t, err)

	assert.Equal(t, []string{"h1:start", "h1:end", "h2:start", "h2:end"}, calls)
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0].Attributes(), seen[1].Attributes())
}

func TestSyncDispatcher_FailuresDoNotStopLaterHandlers(t *testing.T) {
	collector := &countingCollector{}
	d := NewSyncDispatcher(zerolog.Nop(), collector)

	errBoom := errors.New("boom")
	var ran []int

	require.NoError(t, d.Register(dispatchpkg.HandlerFunc(func(ctx context.Context, attrs lastchange.AttributeSet) error {
		ran = append(ran, 0)
		return errBoom
	})))
	require.NoError(t, d.Register(dispatchpkg.HandlerFunc(func(ctx context.Context, attrs lastchange.AttributeSet) error {
		ran = append(ran, 1)
		panic("handler exploded")
	})))
	require.NoError(t, d.Register(dispatchpkg.HandlerFunc(func(ctx context.Context, attrs lastchange.AttributeSet) error {
		ran = append(ran, 2)
		return nil
	})))

	err := d.Dispatch(context.Background(), testAttrs())
	require.Error(t, err)
	assert.Equal(t, []int{0, 1, 2}, ran)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "handler panicked: handler exploded")

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)

	assert.Equal(t, 1, collector.dispatched)
	assert.Equal(t, 2, collector.failures)
}

func TestSyncDispatcher_NoHandlers(t *testing.T) {
	d := NewSyncDispatcher(zerolog.Nop(), nil)
	d.Seal()

	assert.NoError(t, d.Dispatch(context.Background(), testAttrs()))
}

func TestSyncDispatcher_Seal(t *testing.T) {
	d := NewSyncDispatcher(zerolog.Nop(), nil)
	noop := dispatchpkg.HandlerFunc(func(ctx context.Context, attrs lastchange.AttributeSet) error { return nil })

	require.NoError(t, d.Register(noop))
	assert.False(t, d.Sealed())

	d.Seal()
	d.Seal()
	assert.True(t, d.Sealed())
	assert.ErrorIs(t, d.Register(noop), ErrSealed)
	assert.Equal(t, 1, d.Len())

	assert.Error(t, NewSyncDispatcher(zerolog.Nop(), nil).Register(nil))
}

func TestSyncDispatcher_ConcurrentDispatch(t *testing.T) {
	d := NewSyncDispatcher(zerolog.Nop(), nil)

	var mu sync.Mutex
	count := 0
	require.NoError(t, d.Register(dispatchpkg.HandlerFunc(func(ctx context.Context, attrs lastchange.AttributeSet) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})))
	d.Seal()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), testAttrs())
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}
