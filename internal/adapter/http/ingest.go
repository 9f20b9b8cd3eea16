package http

import (
	"crypto/subtle"
	"io"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

const maxPayloadBytes = 1 << 20

// handleIngest receives alarms pushed by the dispatch system. Gate rejections
// such as duplicates still answer 200 with the outcome.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("rejected alarm request", "reason", "invalid api key", "remote", r.RemoteAddr)
		sharedobs.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read request body"})
		return
	}

	alarm, err := domain.NormalizeAlarmJSON(body)
	if err != nil {
		s.logger.Info("invalid alarm payload", "error", err)
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	outcome, err := s.opts.Ingester.IngestAlarm(r.Context(), alarm)
	if err != nil {
		s.logger.Error("alarm ingestion failed", "incident_number", alarm.IncidentNumber, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "accepted",
		"outcome": string(outcome),
	})
}

// authorized compares the X-API-Key header in constant time. Without a
// configured key every request is refused.
func (s *Server) authorized(r *http.Request) bool {
	if s.opts.APIKey == "" {
		return false
	}
	key := r.Header.Get("X-API-Key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.APIKey)) == 1
}
