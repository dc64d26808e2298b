package callback

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Middleware provides HTTP middleware functions for the callback router
type Middleware struct {
	log zerolog.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(log zerolog.Logger) *Middleware {
	return &Middleware{log: log}
}

// Logging logs the method, uri, duration and response code of every request.
func (m *Middleware) Logging() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			ev := m.log.Debug()
			if rw.statusCode != http.StatusOK {
				ev = m.log.Warn()
			}
			ev.Str("method", r.Method).
				Str("uri", r.RequestURI).
				Str("client_ip", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Dur("duration", time.Since(start)).
				Int("response_code", rw.statusCode).
				Msg("callback request")
		})
	}
}

// Recovery turns a panic into an acknowledgement. A non-200 answer would
// make the device drop the subscription.
func (m *Middleware) Recovery() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			defer func() {
				if err := recover(); err != nil {
					m.log.Error().Interface("panic", err).Str("uri", r.RequestURI).Msg("recovered from panic in callback handler")
					if !rw.wroteHeader {
						acknowledge(rw)
					}
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// responseWriter is a wrapper around http.ResponseWriter that captures the response code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
