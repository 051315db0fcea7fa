// Package scheduler fires durable wait timers. A poller sweeps the store for
// due timers, claims each one, and publishes a resume event for the engine.
// Multiple pollers may run concurrently; the fired_at claim ensures each
// timer resumes exactly one run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relayhq/relay/pkg/eventbus"
	"github.com/relayhq/relay/pkg/events"
	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

const (
	// DefaultSweepSpec sweeps every ten seconds, which bounds how late a
	// timer can fire under normal operation.
	DefaultSweepSpec = "@every 10s"

	defaultSweepBatch = 100
)

// TimerPoller drives wait-timer expiry on a cron schedule.
type TimerPoller struct {
	store     persistence.TimerRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	spec      string
	batchSize int
	now       func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	started bool
}

// NewTimerPoller creates a poller sweeping on the given cron spec. An empty
// spec uses DefaultSweepSpec.
func NewTimerPoller(
	store persistence.TimerRepository,
	publisher eventbus.EventPublisher,
	spec string,
	logger *slog.Logger,
) *TimerPoller {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	return &TimerPoller{
		store:     store,
		publisher: publisher,
		logger:    logger.With("module", "timer_poller"),
		spec:      spec,
		batchSize: defaultSweepBatch,
		now:       time.Now,
	}
}

// Start schedules the sweep and returns. Sweeps run until Stop or context
// cancellation.
func (p *TimerPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.cron = cron.New()

	_, err := p.cron.AddFunc(p.spec, func() {
		p.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid sweep spec %q: %w", p.spec, err)
	}

	p.cron.Start()
	p.started = true

	p.logger.InfoContext(ctx, "Timer poller started", "spec", p.spec)

	return nil
}

// Stop halts the sweep schedule and waits for a running sweep to finish.
func (p *TimerPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	stopCtx := p.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	p.started = false

	p.logger.InfoContext(ctx, "Timer poller stopped")

	return nil
}

// Sweep fires every due timer once. Claim conflicts with competing pollers
// are expected and skipped silently; other errors are logged and the timer
// is left for the next sweep.
func (p *TimerPoller) Sweep(ctx context.Context) {
	now := p.now().UTC()

	due, err := p.store.DueWaitTimers(ctx, now, p.batchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to query due timers", "error", err)

		return
	}

	if len(due) > 0 {
		p.logger.InfoContext(ctx, "Processing due timers", "count", len(due))
	}

	for _, timer := range due {
		err := p.fire(ctx, timer, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to fire timer", "timer_id", timer.ID, "error", err)
		}
	}
}

func (p *TimerPoller) fire(ctx context.Context, timer *models.WaitTimer, firedAt time.Time) error {
	err := p.store.MarkWaitTimerFired(ctx, timer.ID, firedAt)
	if err != nil {
		if errors.Is(err, persistence.ErrWaitTimerAlreadyFired) {
			return nil
		}

		return fmt.Errorf("failed to claim timer: %w", err)
	}

	resume := events.RunResumeDue{
		BaseEvent:    events.NewBaseEvent(events.RunResumeDueEvent, timer.OrgID),
		TimerID:      timer.ID,
		RunID:        timer.RunID,
		AutomationID: timer.AutomationID,
		EventID:      timer.EventID,
		ResumeOrder:  timer.ResumeOrder,
		Context:      timer.Context,
	}

	err = p.publisher.Publish(ctx, timer.RunID, resume)
	if err != nil {
		return fmt.Errorf("failed to publish resume event: %w", err)
	}

	p.logger.InfoContext(ctx, "Timer fired",
		"timer_id", timer.ID,
		"run_id", timer.RunID,
		"due_at", timer.DueAt)

	return nil
}
