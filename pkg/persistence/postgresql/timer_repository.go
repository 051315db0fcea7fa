package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// TimerRepository handles durable wait timer database operations.
type TimerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTimerRepository creates a new timer repository.
func NewTimerRepository(db *sql.DB, logger *slog.Logger) *TimerRepository {
	return &TimerRepository{db: db, logger: logger}
}

// SaveWaitTimer inserts a wait timer.
func (r *TimerRepository) SaveWaitTimer(ctx context.Context, timer *models.WaitTimer) error {
	runContext, err := json.Marshal(timer.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal timer context: %w", err)
	}

	query := `
		INSERT INTO wait_timers (id, org_id, run_id, automation_id, event_id, resume_order, context, due_at, created_at, fired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		timer.ID,
		timer.OrgID,
		timer.RunID,
		timer.AutomationID,
		timer.EventID,
		timer.ResumeOrder,
		runContext,
		timer.DueAt,
		timer.CreatedAt,
		timer.FiredAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveWaitTimer", timer.ID, err)
	}

	return nil
}

// DueWaitTimers returns unfired timers due at or before now, oldest first.
func (r *TimerRepository) DueWaitTimers(ctx context.Context, now time.Time, limit int) ([]*models.WaitTimer, error) {
	query := `
		SELECT
			id
		  , org_id
		  , run_id
		  , automation_id
		  , event_id
		  , resume_order
		  , context
		  , due_at
		  , created_at
		  , fired_at
		FROM wait_timers
		WHERE fired_at IS NULL AND due_at <= $1
		ORDER BY due_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, persistence.NewStoreError("DueWaitTimers", "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	timers := make([]*models.WaitTimer, 0)

	for rows.Next() {
		var (
			timer      models.WaitTimer
			runContext []byte
		)

		err = rows.Scan(
			&timer.ID,
			&timer.OrgID,
			&timer.RunID,
			&timer.AutomationID,
			&timer.EventID,
			&timer.ResumeOrder,
			&runContext,
			&timer.DueAt,
			&timer.CreatedAt,
			&timer.FiredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wait timer: %w", err)
		}

		if len(runContext) > 0 {
			err = json.Unmarshal(runContext, &timer.Context)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal timer context: %w", err)
			}
		}

		timers = append(timers, &timer)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating wait timers: %w", err)
	}

	return timers, nil
}

// MarkWaitTimerFired claims the timer with a compare-and-set on fired_at so
// it fires once even with competing pollers.
func (r *TimerRepository) MarkWaitTimerFired(ctx context.Context, id string, firedAt time.Time) error {
	query := `
		UPDATE wait_timers
		SET fired_at = $2
		WHERE id = $1 AND fired_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, firedAt)
	if err != nil {
		return persistence.NewStoreError("MarkWaitTimerFired", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("MarkWaitTimerFired", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("MarkWaitTimerFired", id, persistence.ErrWaitTimerAlreadyFired)
	}

	return nil
}
