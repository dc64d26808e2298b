package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the http server that serves the /metrics request for prometheus
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a server on addr that responds only to `/metrics`.
// A nil gatherer serves the default registry.
func NewServer(log zerolog.Logger, addr string, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With().Str("component", "metrics").Logger(),
	}
}

// Start serves in the background until Shutdown is called.
func (m *Server) Start() {
	m.log.Info().Str("address", m.server.Addr).Str("endpoint", "/metrics").Msg("metrics server started")
	go func() {
		if err := m.server.ListenAndServe(); err != nil {
			// http.ErrServerClosed is returned when Close or Shutdown is called
			if errors.Is(err, http.ErrServerClosed) {
				m.log.Debug().Err(err).Msg("metrics server shutdown")
			} else {
				m.log.Err(err).Msg("metrics server failed")
			}
		}
	}()
}

// Shutdown stops the server
func (m *Server) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
