package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rmacdonaldsmith/upnpevents/internal/metrics"
	dispatchpkg "github.com/rmacdonaldsmith/upnpevents/pkg/dispatch"
)

var (
	// ErrNotBound is returned by Serve when Bind has not been called
	ErrNotBound = errors.New("callback listener is not bound")
	// ErrAlreadyBound is returned by Bind when the listener already holds a socket
	ErrAlreadyBound = errors.New("callback listener is already bound")
)

// Config holds callback listener configuration
type Config struct {
	// BindHost is the interface to listen on; empty means all interfaces
	BindHost string

	// Port to listen on; 0 picks a free port
	Port int

	// MaxBodyBytes bounds a notification body
	MaxBodyBytes int64
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20 // 1MB
	}
}

// Address returns the host:port the listener binds to
func (c Config) Address() string {
	return net.JoinHostPort(c.BindHost, strconv.Itoa(c.Port))
}

// Server receives GENA notifications and hands parsed attribute sets to
// the dispatcher. Startup is two-phase: Bind reserves the socket so the
// callback URL is reachable before the subscription is sent, Serve then
// accepts traffic.
type Server struct {
	config     Config
	dispatcher dispatchpkg.Dispatcher
	middleware *Middleware
	metrics    metrics.Collector
	log        zerolog.Logger

	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new callback listener
func NewServer(config Config, dispatcher dispatchpkg.Dispatcher, log zerolog.Logger, collector metrics.Collector) *Server {
	config.SetDefaults()
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	log = log.With().Str("component", "callback").Logger()
	s := &Server{
		config:     config,
		dispatcher: dispatcher,
		middleware: NewMiddleware(log),
		metrics:    collector,
		log:        log,
	}

	s.server = &http.Server{
		Handler:        s.setupRoutes(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	return s
}

// setupRoutes routes every path and method to the notification handler
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter().SkipClean(true)
	router.Use(s.middleware.Logging(), s.middleware.Recovery())
	router.PathPrefix("/").HandlerFunc(s.handleNotify)
	return router
}

// Handler returns the HTTP handler serving notifications
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Bind opens the listening socket. The bound address does not change for
// the lifetime of the server.
func (s *Server) Bind() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, ErrAlreadyBound
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback listener on %s: %w", s.config.Address(), err)
	}
	s.listener = ln

	s.log.Info().Str("address", ln.Addr().String()).Msg("callback listener bound")
	return ln.Addr(), nil
}

// Addr returns the bound address, or nil before Bind
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or 0 before Bind
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Serve accepts notifications until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln == nil {
		return ErrNotBound
	}

	s.log.Info().Str("address", ln.Addr().String()).Msg("callback listener accepting notifications")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("callback listener failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting notifications and closes the socket, waiting
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	err := s.server.Shutdown(ctx)
	if ln != nil {
		// Shutdown only closes listeners that Serve picked up
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	return err
}
