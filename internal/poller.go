package internal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultPollInterval is the time between two poll cycles
const DefaultPollInterval = 5 * time.Second

// CycleReport describes one poll cycle
type CycleReport struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Updates   int
	Messages  int
	Dispatch  DispatchReport
	Retried   int
	Err       error
}

// Batch is the output of one cycle handed from the polling worker to its consumer
type Batch struct {
	Report   CycleReport
	Messages []ChatMessage
}

// Poller drives the long-poll session on a fixed interval
type Poller struct {
	session  *LongPollSession
	router   *Router
	contacts *ContactDirectory
	interval time.Duration
}

// NewPoller creates a poller; interval <= 0 uses DefaultPollInterval
func NewPoller(session *LongPollSession, router *Router, contacts *ContactDirectory, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		session:  session,
		router:   router,
		contacts: contacts,
		interval: interval,
	}
}

// Interval returns the time between cycles
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Collect polls once and returns the incoming unread messages. Errors are logged and
// stored in the report; they never stop the poller. Collect never touches read
// receipts, so it may run on a different goroutine than Deliver.
func (p *Poller) Collect(ctx context.Context) Batch {
	report := CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	updates, err := p.session.Poll(ctx)
	if err != nil {
		report.Err = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			LogDebug("[%s] poll cycle cancelled", shortID(report.ID))
		} else {
			LogWarn("[%s] poll cycle failed (%s): %v", shortID(report.ID), p.session.State(), err)
		}
	}

	messages := MessagesFromUpdates(updates)
	report.Updates = len(updates)
	report.Messages = len(messages)
	report.Duration = time.Since(report.StartedAt)

	if report.Updates > 0 {
		LogDebug("[%s] %d update(s), %d message(s), next ts=%q", shortID(report.ID), report.Updates, report.Messages, p.session.Cursor())
	}

	return Batch{Report: report, Messages: messages}
}

// Deliver retries the read receipts left pending by earlier cycles, then routes the
// batch's messages to the sink. Every read receipt is sent from the goroutine calling
// Deliver, so a receipt still in flight is never retried concurrently.
func (p *Poller) Deliver(ctx context.Context, batch *Batch) {
	if n, err := p.router.RetryPendingReceipts(ctx); err != nil {
		LogWarn("[%s] unable to load pending read receipts: %v", shortID(batch.Report.ID), err)
	} else {
		batch.Report.Retried = n
	}

	if len(batch.Messages) == 0 {
		return
	}
	batch.Report.Dispatch = p.router.Route(ctx, p.contacts, batch.Messages)
}

// RunCycle polls once and dispatches the result on the calling goroutine
func (p *Poller) RunCycle(ctx context.Context) CycleReport {
	batch := p.Collect(ctx)
	p.Deliver(ctx, &batch)
	return batch.Report
}

// Start polls on a worker goroutine, first immediately and then every interval, and
// hands every batch over on the returned channel, empty ones included, so that the
// consumer's Deliver runs once per cycle. The channel is closed once ctx is done and
// the worker has released the session.
func (p *Poller) Start(ctx context.Context) <-chan Batch {
	out := make(chan Batch)

	go func() {
		defer close(out)
		defer p.session.Close()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			batch := p.Collect(ctx)
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

// Run polls until ctx is done, dispatching each batch on the calling goroutine
func (p *Poller) Run(ctx context.Context) error {
	for batch := range p.Start(ctx) {
		p.Deliver(ctx, &batch)
		if r := batch.Report; len(batch.Messages) > 0 {
			LogDebug("[%s] delivered %d message(s), skipped %d", shortID(r.ID), r.Dispatch.Delivered, r.Dispatch.Skipped)
		}
	}
	return ctx.Err()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
