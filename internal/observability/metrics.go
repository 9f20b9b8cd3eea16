package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alarm_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for alarm ingestion.
type Metrics struct {
	AlarmsReceived *prometheus.CounterVec   // labels: source={mail,api}
	AlarmsRejected *prometheus.CounterVec   // labels: reason={not_alarm,missing_incident_number,duplicate,filtered}
	AlarmsRecorded prometheus.Counter
	IngestDuration *prometheus.HistogramVec // labels: source={mail,api}

	// Enrichment metrics.
	EnrichmentRequests *prometheus.CounterVec   // labels: service={geocode,weather}, outcome={success,error,empty}
	EnrichmentDuration *prometheus.HistogramVec // labels: service={geocode,weather}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}

	// History store metrics.
	HistorySize    prometheus.Gauge
	SnapshotWrites *prometheus.CounterVec // labels: outcome={success,error}

	// Transport and sink metrics.
	MailPolls     *prometheus.CounterVec // labels: outcome={success,error}
	PollerRunning prometheus.Gauge
	Notifications *prometheus.CounterVec // labels: sink={kafka,mqtt}, outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AlarmsReceived,
		m.AlarmsRejected,
		m.AlarmsRecorded,
		m.IngestDuration,
		m.EnrichmentRequests,
		m.EnrichmentDuration,
		m.GeocodeCache,
		m.HistorySize,
		m.SnapshotWrites,
		m.MailPolls,
		m.PollerRunning,
		m.Notifications,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many instances as they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AlarmsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_received_total",
			Help:      "Alarm payloads handed to the pipeline, by transport.",
		}, []string{"source"}),
		AlarmsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_rejected_total",
			Help:      "Alarm payloads discarded before recording, by reason.",
		}, []string{"reason"}),
		AlarmsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_recorded_total",
			Help:      "Alarms committed to the history.",
		}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time from payload arrival to pipeline outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		EnrichmentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_requests_total",
			Help:      "Geocoding and weather lookups by service and outcome.",
		}, []string{"service", "outcome"}),
		EnrichmentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_duration_seconds",
			Help:      "Enrichment API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		HistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_size",
			Help:      "Records currently retained in the alarm history.",
		}),
		SnapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "History snapshot writes by outcome.",
		}, []string{"outcome"}),
		MailPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_polls_total",
			Help:      "Mailbox poll cycles by outcome.",
		}, []string{"outcome"}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mail_poller_running",
			Help:      "1 when the mail poller is active, 0 when stopped.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Recorded alarms published to event sinks, by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}
