package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

const maxHistoryLimit = 500

type alarmResponse struct {
	Mode        string              `json:"mode"`
	Alarm       *domain.Alarm       `json:"alarm"`
	Coordinates *domain.Coordinates `json:"coordinates"`
	Weather     domain.Weather      `json:"weather"`
	ReceivedAt  string              `json:"received_at"`
}

type idleResponse struct {
	Mode      string         `json:"mode"`
	Alarm     *domain.Alarm  `json:"alarm"`
	Weather   domain.Weather `json:"weather"`
	Location  *string        `json:"location"`
	Timestamp string         `json:"timestamp"`
	LastAlarm *historyEntry  `json:"last_alarm"`
}

// historyEntry is the compact form of a record used by history lists.
type historyEntry struct {
	Timestamp        *string  `json:"timestamp"`
	TimestampDisplay *string  `json:"timestamp_display"`
	ReceivedAt       string   `json:"received_at"`
	IncidentNumber   *string  `json:"incident_number"`
	Keyword          *string  `json:"keyword"`
	Location         *string  `json:"location"`
	Description      *string  `json:"description"`
	Groups           []string `json:"groups"`
	AAOGroups        []string `json:"aao_groups"`
	Remark           *string  `json:"remark"`
}

// handleAlarm serves the latest alarm while it is within the display window,
// otherwise the idle view.
func (s *Server) handleAlarm(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now().UTC()

	rec, ok := s.opts.History.Latest()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusOK, s.idle(r, now, nil))
		return
	}

	window := s.opts.Settings.Snapshot().DisplayDuration()
	if rec.ReceivedAt.Add(window).Before(now) {
		sharedobs.WriteJSON(w, http.StatusOK, s.idle(r, now, &rec))
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, alarmResponse{
		Mode:        "alarm",
		Alarm:       &rec.Alarm,
		Coordinates: rec.Coordinates,
		Weather:     rec.Weather,
		ReceivedAt:  formatTime(rec.ReceivedAt),
	})
}

func (s *Server) idle(r *http.Request, now time.Time, last *domain.AlarmRecord) idleResponse {
	resp := idleResponse{
		Mode:      "idle",
		Location:  nullable(s.opts.DefaultLocationName),
		Timestamp: formatTime(now),
	}
	if last != nil {
		entry := serializeEntry(*last)
		resp.LastAlarm = &entry
	}

	if s.opts.Weather != nil && s.opts.DefaultLocation != nil {
		loc := s.opts.DefaultLocation
		weather, err := s.opts.Weather.CurrentWeather(r.Context(), loc.Lat, loc.Lon)
		if err != nil {
			s.logger.Warn("idle weather lookup failed", "error", err)
		} else {
			resp.Weather = weather
		}
	}
	return resp
}

// handleHistory lists recorded alarms newest first. limit is clamped to
// 1..500; a missing or unparseable limit returns everything retained.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = min(max(n, 1), maxHistoryLimit)
		}
	}

	records := s.opts.History.History(limit)
	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, serializeEntry(rec))
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	if s.opts.Participants == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "messenger not configured"})
		return
	}

	incident := strings.TrimSpace(r.PathValue("incident"))
	participants, err := s.opts.Participants.Participants(r.Context(), incident)
	if err != nil {
		s.logger.Warn("participant lookup failed", "incident_number", incident, "error", err)
		sharedobs.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "messenger unavailable"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"incident_number": incident,
		"participants":    participants,
	})
}

func serializeEntry(rec domain.AlarmRecord) historyEntry {
	a := rec.Alarm
	receivedAt := formatTime(rec.ReceivedAt)

	timestamp := a.Timestamp
	if timestamp == "" {
		timestamp = receivedAt
	}
	keyword := a.Keyword
	if keyword == "" {
		keyword = a.Subject
	}

	return historyEntry{
		Timestamp:        nullable(timestamp),
		TimestampDisplay: nullable(a.TimestampDisplay),
		ReceivedAt:       receivedAt,
		IncidentNumber:   nullable(a.IncidentNumber),
		Keyword:          nullable(keyword),
		Location:         nullable(a.Location),
		Description:      nullable(a.Description),
		Groups:           a.Groups,
		AAOGroups:        a.AAOGroups,
		Remark:           nullable(a.Remark),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
