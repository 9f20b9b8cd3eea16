// Package http exposes the alarm receiver, the dashboard read API and the
// health, readiness and metrics endpoints.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/pipeline"
	"github.com/TimUx/alarm-monitor/internal/settings"
)

// Ingester accepts decoded API alarms.
type Ingester interface {
	IngestAlarm(ctx context.Context, alarm domain.Alarm) (pipeline.Outcome, error)
}

// HistoryReader is the read side of the alarm history.
type HistoryReader interface {
	Latest() (domain.AlarmRecord, bool)
	History(limit int) []domain.AlarmRecord
}

// ParticipantLister looks up responders for an incident.
type ParticipantLister interface {
	Participants(ctx context.Context, incidentNumber string) ([]domain.Participant, error)
}

// Options wires the server to the rest of the service. Participants, Weather
// and DefaultLocation are optional.
type Options struct {
	APIKey       string
	Ingester     Ingester
	History      HistoryReader
	Settings     settings.Provider
	Participants ParticipantLister
	Ready        sharedobs.ReadinessChecker

	// Idle mode shows the weather at the default location.
	Weather             domain.WeatherClient
	DefaultLocation     *domain.Coordinates
	DefaultLocationName string

	Clock clockwork.Clock
}

// Server exposes the HTTP endpoints.
type Server struct {
	httpServer *http.Server
	opts       Options
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the alarm API plus /healthz, /readyz,
// and /metrics routes.
func NewServer(addr string, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		opts:   opts,
		clock:  opts.Clock,
		logger: logger,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/alarm", s.handleIngest)
	mux.HandleFunc("GET /api/alarm", s.handleAlarm)
	mux.HandleFunc("GET /api/mobile/alarm", s.handleAlarm)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/participants/{incident}", s.handleParticipants)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Readiness combines checkers; the service is ready when all of them are.
type Readiness []sharedobs.ReadinessChecker

func (r Readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range r {
		if c == nil {
			continue
		}
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
