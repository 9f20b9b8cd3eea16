package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

// Notifier publishes recorded alarms to an external sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, rec domain.AlarmRecord) error
}

const maxNotifyAttempts = 3

// sinkQueue feeds one sink in commit order. A single worker drains it while
// records are pending, so a retried record never lands after a newer one.
type sinkQueue struct {
	sink    Notifier
	mu      sync.Mutex
	pending []domain.AlarmRecord
	running bool
}

// notify queues rec for every sink. Callers hold p.commitMu so queue order
// matches history order.
func (p *Pipeline) notify(rec domain.AlarmRecord) {
	for _, q := range p.queues {
		q.mu.Lock()
		q.pending = append(q.pending, rec.Clone())
		if !q.running {
			q.running = true
			p.inflight.Add(1)
			go p.drain(q)
		}
		q.mu.Unlock()
	}
}

// drain delivers queued records one at a time and exits once the queue is
// empty. Each delivery is bounded by notifyTimeout.
func (p *Pipeline) drain(q *sinkQueue) {
	defer p.inflight.Done()
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		rec := q.pending[0]
		q.pending[0] = domain.AlarmRecord{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), p.notifyTimeout)
		p.deliver(ctx, q.sink, rec)
		cancel()
	}
}

// deliver retries a sink with exponential backoff: start at 200ms, double
// each retry, cap at 2s.
func (p *Pipeline) deliver(ctx context.Context, n Notifier, rec domain.AlarmRecord) {
	backoff := 200 * time.Millisecond
	maxBackoff := 2 * time.Second

	for attempt := 1; ; attempt++ {
		err := n.Notify(ctx, rec)
		if err == nil {
			p.metrics.Notifications.WithLabelValues(n.Name(), "success").Inc()
			return
		}
		if attempt >= maxNotifyAttempts || ctx.Err() != nil {
			p.metrics.Notifications.WithLabelValues(n.Name(), "error").Inc()
			p.logger.Error("alarm notification failed",
				"sink", n.Name(),
				"incident_number", rec.Alarm.IncidentNumber,
				"attempts", attempt,
				"error", err,
			)
			return
		}
		p.logger.Warn("alarm notification failed, retrying", "sink", n.Name(), "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			p.metrics.Notifications.WithLabelValues(n.Name(), "error").Inc()
			return
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}
