package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/upnpevents/internal/callback"
	"github.com/rmacdonaldsmith/upnpevents/internal/dispatch"
	"github.com/rmacdonaldsmith/upnpevents/internal/localaddr"
	"github.com/rmacdonaldsmith/upnpevents/internal/metrics"
	dispatchpkg "github.com/rmacdonaldsmith/upnpevents/pkg/dispatch"
	"github.com/rmacdonaldsmith/upnpevents/pkg/gena"
)

// ErrAlreadyStarted is returned by Start on a controller that was started before
var ErrAlreadyStarted = errors.New("controller already started")

const shutdownTimeout = 5 * time.Second

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used by the controller and its components
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(collector metrics.Collector) Option {
	return func(c *Controller) {
		c.metrics = collector
	}
}

// Controller owns the startup order of one event subscription:
// resolve the local address, bind the callback listener, then subscribe.
// The listener is bound before SUBSCRIBE is sent so the advertised callback
// URL is reachable as soon as the device accepts the subscription.
type Controller struct {
	mu     sync.Mutex
	config *Config

	log     zerolog.Logger
	metrics metrics.Collector

	resolver   *localaddr.Resolver
	client     *gena.Client
	dispatcher *dispatch.SyncDispatcher
	server     *callback.Server

	subscription *gena.Subscription
	callbackURL  string

	started  bool
	stopped  bool
	serveErr chan error
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a controller. Nothing touches the network until Start.
func New(config *Config, opts ...Option) (*Controller, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Controller{
		config:   config,
		log:      zerolog.Nop(),
		serveErr: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNoopCollector()
	}
	c.log = c.log.With().Str("device", config.DeviceAddress).Logger()

	c.resolver = &localaddr.Resolver{ProbeAddress: config.ProbeAddress}
	c.client = gena.NewClient(gena.Config{
		Timeout:          config.SubscribeTimeout,
		DevicePort:       config.DevicePort,
		RequestedTimeout: config.RequestedTimeout,
	})
	c.dispatcher = dispatch.NewSyncDispatcher(c.log, c.metrics)
	c.server = callback.NewServer(callback.Config{
		BindHost: config.BindHost,
		Port:     config.Port,
	}, c.dispatcher, c.log, c.metrics)

	return c, nil
}

// Register adds a notification handler. Handlers must be registered before
// Start; later registrations fail with dispatch.ErrSealed.
func (c *Controller) Register(h dispatchpkg.Handler) error {
	return c.dispatcher.Register(h)
}

// Start resolves the advertised address, binds the callback listener, starts
// serving and subscribes. A failed subscription shuts the listener down and
// is returned as-is, so callers can match gena.ErrSubscriptionFailed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	host, err := c.advertiseHost(ctx)
	if err != nil {
		return err
	}

	if _, err := c.server.Bind(); err != nil {
		return err
	}
	c.dispatcher.Seal()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.serveErr <- c.server.Serve()
	}()

	c.callbackURL = "http://" + net.JoinHostPort(host, strconv.Itoa(c.server.Port()))
	c.log.Info().Str("callback_url", c.callbackURL).Int("handlers", c.dispatcher.Len()).Msg("subscribing")

	sub, err := c.client.Subscribe(ctx, c.config.DeviceAddress, c.config.EventPath, c.callbackURL, c.config.NotificationType)
	c.metrics.GENARequest("subscribe", err)
	if err != nil {
		c.log.Error().Err(err).Msg("subscription failed, stopping callback listener")
		c.shutdownServer()
		c.stopped = true
		return err
	}
	c.subscription = sub

	c.log.Info().
		Str("sid", sub.SID).
		Dur("timeout", sub.Timeout).
		Str("event_url", sub.EventURL).
		Msg("subscribed")

	if c.config.RenewInterval > 0 {
		renewCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.renewLoop(renewCtx)
	}

	return nil
}

// Run starts the controller and blocks until ctx is cancelled or the
// listener fails, then stops it.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-c.serveErr:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if serveErr != nil {
		result = multierror.Append(result, serveErr)
	}
	if err := c.Stop(stopCtx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Stop cancels renewal, unsubscribes (best effort) and shuts the listener
// down. Stop is idempotent.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	sub := c.subscription
	c.mu.Unlock()

	var result *multierror.Error

	if sub != nil && sub.SID != "" {
		err := c.client.Unsubscribe(ctx, sub)
		c.metrics.GENARequest("unsubscribe", err)
		if err != nil {
			c.log.Warn().Err(err).Str("sid", sub.SID).Msg("unsubscribe failed")
			result = multierror.Append(result, fmt.Errorf("unsubscribe: %w", err))
		} else {
			c.log.Info().Str("sid", sub.SID).Msg("unsubscribed")
		}
	}

	if err := c.server.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutdown callback listener: %w", err))
	}
	c.wg.Wait()

	return result.ErrorOrNil()
}

// Subscription returns a copy of the active subscription, or nil
func (c *Controller) Subscription() *gena.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscription == nil {
		return nil
	}
	sub := *c.subscription
	return &sub
}

// CallbackURL returns the URL advertised to the device; empty before Start
func (c *Controller) CallbackURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.callbackURL
}

// ListenAddr returns the callback listener's bound address, or nil
func (c *Controller) ListenAddr() net.Addr {
	return c.server.Addr()
}

func (c *Controller) advertiseHost(ctx context.Context) (string, error) {
	if c.config.AdvertiseHost != "" {
		return c.config.AdvertiseHost, nil
	}

	ip, err := c.resolver.Resolve(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("cannot resolve local address for callback URL")
		return "", err
	}
	return ip.String(), nil
}

// shutdownServer is used on the failed-start path; mu is held.
func (c *Controller) shutdownServer() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := c.server.Shutdown(ctx); err != nil {
		c.log.Warn().Err(err).Msg("callback listener shutdown failed")
	}
	c.wg.Wait()
}

// renewLoop renews the subscription every RenewInterval. A lost
// subscription is replaced by a fresh SUBSCRIBE with the same callback.
func (c *Controller) renewLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.renew(ctx)
		}
	}
}

func (c *Controller) renew(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.subscription == nil {
		return
	}

	err := c.client.Renew(ctx, c.subscription)
	c.metrics.GENARequest("renew", err)
	if err == nil {
		c.log.Debug().Str("sid", c.subscription.SID).Time("expires", c.subscription.Expiry()).Msg("subscription renewed")
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.log.Warn().Err(err).Str("sid", c.subscription.SID).Msg("renewal failed, resubscribing")
	sub, err := c.client.Subscribe(ctx, c.config.DeviceAddress, c.config.EventPath, c.callbackURL, c.config.NotificationType)
	c.metrics.GENARequest("subscribe", err)
	if err != nil {
		c.log.Error().Err(err).Msg("resubscribe failed")
		return
	}
	c.subscription = sub
	c.log.Info().Str("sid", sub.SID).Msg("resubscribed")
}
