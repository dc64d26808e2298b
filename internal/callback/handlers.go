package callback

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/rmacdonaldsmith/upnpevents/internal/metrics"
	"github.com/rmacdonaldsmith/upnpevents/pkg/lastchange"
)

// AckBody is written with every 200 response.
const AckBody = "200 OK"

// handleNotify accepts one notification. It answers 200 whatever happens
// downstream: the device cancels the subscription on any other status.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	log := s.log.With().
		Str("request_id", uuid.New().String()).
		Str("sid", r.Header.Get("SID")).
		Str("seq", r.Header.Get("SEQ")).
		Logger()

	s.metrics.NotificationReceived()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		s.metrics.NotificationRejected(metrics.ReasonRead)
		log.Error().Err(err).Msg("failed to read notification body")
		acknowledge(w)
		return
	}

	attrs, err := lastchange.Parse(body)
	if err != nil {
		s.metrics.NotificationRejected(metrics.ReasonParse)
		log.Error().Err(err).Int("body_bytes", len(body)).Msg("failed to parse notification")
		acknowledge(w)
		return
	}

	log.Debug().Int("attributes", attrs.Len()).Msg("notification parsed")

	if err := s.dispatcher.Dispatch(r.Context(), attrs); err != nil {
		log.Warn().Err(err).Msg("notification delivered with handler errors")
	}

	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, AckBody)
}
