package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
	"github.com/TimUx/alarm-monitor/internal/settings"
)

// Store is the history the pipeline commits to.
type Store interface {
	HasIncidentNumber(incidentNumber string) (bool, error)
	Record(rec domain.AlarmRecord) (domain.AlarmRecord, error)
}

// EmergencyRegistrar links a recorded incident to an external emergency id.
type EmergencyRegistrar interface {
	RegisterEmergency(incidentNumber, emergencyID string)
}

// Outcome describes what happened to an ingested payload.
type Outcome string

const (
	OutcomeRecorded              Outcome = "recorded"
	OutcomeNotAlarm              Outcome = "not_alarm"
	OutcomeMissingIncidentNumber Outcome = "missing_incident_number"
	OutcomeDuplicate             Outcome = "duplicate"
	OutcomeFiltered              Outcome = "filtered"
)

// Source labels the transport an alarm arrived on.
const (
	SourceMail = "mail"
	SourceAPI  = "api"
)

const defaultNotifyTimeout = 10 * time.Second

// Pipeline gates, enriches and records alarms from any transport.
type Pipeline struct {
	store     Store
	settings  settings.Provider
	geocoder  domain.Geocoder
	weather   domain.WeatherClient
	registrar EmergencyRegistrar
	notifiers []Notifier
	logger    *slog.Logger
	metrics   *observability.Metrics

	commitMu      sync.Mutex // orders Record with sink queueing
	queues        []*sinkQueue
	notifyTimeout time.Duration
	inflight      sync.WaitGroup
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithRegistrar enables emergency registration after each recorded alarm.
func WithRegistrar(r EmergencyRegistrar) Option {
	return func(p *Pipeline) {
		p.registrar = r
	}
}

// WithNotifiers adds sinks that receive every recorded alarm.
func WithNotifiers(n ...Notifier) Option {
	return func(p *Pipeline) {
		p.notifiers = append(p.notifiers, n...)
	}
}

// WithNotifyTimeout bounds each sink delivery, retries included.
func WithNotifyTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.notifyTimeout = d
	}
}

// New creates a Pipeline. geocoder and weather may be nil to disable the
// corresponding enrichment.
func New(store Store, provider settings.Provider, geocoder domain.Geocoder, weather domain.WeatherClient, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		settings:      provider,
		geocoder:      geocoder,
		weather:       weather,
		logger:        logger,
		metrics:       metrics,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, n := range p.notifiers {
		p.queues = append(p.queues, &sinkQueue{sink: n})
	}
	return p
}

// IngestMessage handles a raw RFC 822 message from the mail transport.
func (p *Pipeline) IngestMessage(ctx context.Context, raw []byte) (Outcome, error) {
	start := time.Now()
	p.metrics.AlarmsReceived.WithLabelValues(SourceMail).Inc()
	defer p.observe(SourceMail, start)

	alarm, ok := domain.ParseAlarmMessage(raw)
	if !ok {
		p.logger.Info("message contains no incident, ignoring", "source", SourceMail)
		return p.reject(OutcomeNotAlarm), nil
	}
	return p.process(ctx, SourceMail, alarm)
}

// IngestAlarm handles an already decoded alarm from the API transport.
func (p *Pipeline) IngestAlarm(ctx context.Context, alarm domain.Alarm) (Outcome, error) {
	start := time.Now()
	p.metrics.AlarmsReceived.WithLabelValues(SourceAPI).Inc()
	defer p.observe(SourceAPI, start)

	alarm.Normalize()
	return p.process(ctx, SourceAPI, alarm)
}

func (p *Pipeline) process(ctx context.Context, source string, alarm domain.Alarm) (Outcome, error) {
	logger := p.logger.With("source", source, "incident_number", alarm.IncidentNumber)

	if alarm.IncidentNumber == "" {
		logger.Info("alarm without incident number, ignoring")
		return p.reject(OutcomeMissingIncidentNumber), nil
	}

	exists, err := p.store.HasIncidentNumber(alarm.IncidentNumber)
	if err != nil {
		return "", fmt.Errorf("check incident: %w", err)
	}
	if exists {
		logger.Info("duplicate incident, ignoring")
		return p.reject(OutcomeDuplicate), nil
	}

	filters := p.settings.Snapshot().ActivationGroups
	if !MatchesActivationGroups(alarm, filters) {
		logger.Info("alarm does not match configured groups, ignoring",
			"filters", filters,
			"codes", alarm.DispatchGroupCodes,
		)
		return p.reject(OutcomeFiltered), nil
	}

	coords := p.resolveCoordinates(ctx, logger, alarm)
	weather := p.resolveWeather(ctx, logger, coords)

	p.commitMu.Lock()
	rec, err := p.store.Record(domain.AlarmRecord{
		Alarm:       alarm,
		Coordinates: coords,
		Weather:     weather,
	})
	if err == nil {
		p.notify(rec)
	}
	p.commitMu.Unlock()
	if errors.Is(err, domain.ErrDuplicateIncident) {
		logger.Info("incident recorded concurrently, ignoring")
		return p.reject(OutcomeDuplicate), nil
	}
	if err != nil {
		return "", fmt.Errorf("record alarm: %w", err)
	}

	p.metrics.AlarmsRecorded.Inc()
	logger.Info("alarm recorded",
		"keyword", alarm.Keyword,
		"location", alarm.Location,
		"geocoded", coords != nil,
		"weather", weather != nil,
	)

	if p.registrar != nil && alarm.EmergencyID != "" {
		p.registrar.RegisterEmergency(alarm.IncidentNumber, alarm.EmergencyID)
	}

	return OutcomeRecorded, nil
}

func (p *Pipeline) reject(o Outcome) Outcome {
	p.metrics.AlarmsRejected.WithLabelValues(string(o)).Inc()
	return o
}

func (p *Pipeline) observe(source string, start time.Time) {
	p.metrics.IngestDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// Close waits for in-flight sink notifications or until ctx is done.
func (p *Pipeline) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for notifications: %w", ctx.Err())
	}
}
