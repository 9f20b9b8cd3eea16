package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/TimUx/alarm-monitor/internal/observability"
)

// stopTimeout bounds how long Stop waits for an in-flight poll.
const stopTimeout = 5 * time.Second

// Handler receives each new message. Errors are logged; the message is not
// redelivered.
type Handler func(ctx context.Context, msg Message) error

// Poller fetches new messages from a Mailbox at a fixed interval.
type Poller struct {
	mailbox  Mailbox
	handle   Handler
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	lastUID atomic.Uint32
	polled  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock replaces the wall clock used between poll cycles.
func WithClock(c clockwork.Clock) PollerOption {
	return func(p *Poller) {
		p.clock = c
	}
}

// NewPoller creates a poller that calls handle for every new message.
func NewPoller(mailbox Mailbox, handle Handler, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...PollerOption) *Poller {
	p := &Poller{
		mailbox:  mailbox,
		handle:   handle,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the poll loop in the background. Calling Start on a running
// poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		p.Run(ctx)
	}()
}

// Stop cancels the poll loop and waits up to five seconds for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		p.logger.Warn("mail poller did not stop in time", "timeout", stopTimeout)
	}
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on
// the next cycle.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("mail poller started", "interval", p.interval)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("mailbox poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("mail poller stopped", "reason", ctx.Err())
			return
		case <-p.clock.After(p.interval):
		}
	}
}

// PollOnce fetches and handles every message newer than the last delivered UID.
func (p *Poller) PollOnce(ctx context.Context) error {
	messages, err := p.mailbox.FetchSince(ctx, p.lastUID.Load())
	if err != nil {
		p.metrics.MailPolls.WithLabelValues("error").Inc()
		return err
	}
	p.metrics.MailPolls.WithLabelValues("success").Inc()
	p.polled.Store(true)

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg.UID <= p.lastUID.Load() {
			continue
		}
		p.logger.Info("processing new message", "uid", msg.UID)
		if err := p.handle(ctx, msg); err != nil {
			p.logger.Error("message handling failed", "uid", msg.UID, "error", err)
		}
		p.lastUID.Store(msg.UID)
	}
	return nil
}

// LastUID returns the highest UID handed to the handler.
func (p *Poller) LastUID() uint32 {
	return p.lastUID.Load()
}

// CheckReadiness reports ready once a poll has reached the mailbox.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.polled.Load() {
		return errors.New("mailbox has not been polled successfully yet")
	}
	return nil
}
