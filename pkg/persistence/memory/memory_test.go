package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

func TestEventProcessedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	event := &models.Event{
		ID:        "evt-1",
		OrgID:     "org-1",
		OrgSlug:   "acme",
		EventType: models.EventLeadCreated,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveEvent(ctx, event))

	first := time.Now().UTC()
	require.NoError(t, store.MarkEventProcessed(ctx, "evt-1", first))

	// A second mark is a no-op, not an overwrite.
	require.NoError(t, store.MarkEventProcessed(ctx, "evt-1", first.Add(time.Hour)))

	stored, err := store.EventByID(ctx, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, first, *stored.ProcessedAt)
}

func TestFinishRunSingleTerminalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	run := &models.WorkflowRun{
		ID:           "run-1",
		OrgID:        "org-1",
		AutomationID: "auto-1",
		EventID:      "evt-1",
		Status:       models.RunStatusRunning,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	now := time.Now().UTC()
	require.NoError(t, store.FinishRun(ctx, "run-1", models.RunStatusCompleted, "", now))

	err := store.FinishRun(ctx, "run-1", models.RunStatusFailed, "late", now)
	assert.ErrorIs(t, err, persistence.ErrRunAlreadyFinished)

	stored, err := store.RunByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
}

func TestStepsOrderedByStepOrder(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	for _, order := range []int{3, 1, 2} {
		require.NoError(t, store.SaveWorkflowStep(ctx, &models.WorkflowStep{
			ID:           "step-" + string(rune('0'+order)),
			AutomationID: "auto-1",
			StepOrder:    order,
			StepType:     models.StepTypeAction,
		}))
	}

	steps, err := store.StepsByAutomation(ctx, "auto-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, 1, steps[0].StepOrder)
	assert.Equal(t, 2, steps[1].StepOrder)
	assert.Equal(t, 3, steps[2].StepOrder)
}

func TestWaitTimerClaim(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	timer := &models.WaitTimer{
		ID:           "timer-1",
		OrgID:        "org-1",
		RunID:        "run-1",
		AutomationID: "auto-1",
		EventID:      "evt-1",
		ResumeOrder:  2,
		DueAt:        time.Now().UTC().Add(-time.Minute),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.SaveWaitTimer(ctx, timer))

	due, err := store.DueWaitTimers(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, store.MarkWaitTimerFired(ctx, "timer-1", time.Now().UTC()))

	err = store.MarkWaitTimerFired(ctx, "timer-1", time.Now().UTC())
	assert.ErrorIs(t, err, persistence.ErrWaitTimerAlreadyFired)

	due, err = store.DueWaitTimers(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestUpdateRecordField(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	store.SeedRecord("contacts", "contact-1", "org-1", map[string]any{"stage": "new"})

	require.NoError(t, store.UpdateRecordField(ctx, "org-1", "contacts", "contact-1", "stage", "won"))

	row, ok := store.Record("contacts", "contact-1")
	require.True(t, ok)
	assert.Equal(t, "won", row["stage"])

	err := store.UpdateRecordField(ctx, "org-2", "contacts", "contact-1", "stage", "lost")
	assert.ErrorIs(t, err, persistence.ErrRecordNotFound)

	err = store.UpdateRecordField(ctx, "org-1", "invoices", "contact-1", "stage", "lost")
	assert.ErrorIs(t, err, persistence.ErrUnknownTable)
}

func TestPublishedAutomationsByTrigger(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	base := time.Now().UTC()

	require.NoError(t, store.SaveAutomation(ctx, &models.Automation{
		ID: "auto-1", OrgID: "org-1", Name: "First",
		Status: models.AutomationStatusPublished, TriggerType: "sms_received",
		CreatedAt: base,
	}))
	require.NoError(t, store.SaveAutomation(ctx, &models.Automation{
		ID: "auto-2", OrgID: "org-1", Name: "Draft",
		Status: models.AutomationStatusDraft, TriggerType: "sms_received",
		CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, store.SaveAutomation(ctx, &models.Automation{
		ID: "auto-3", OrgID: "org-2", Name: "Other org",
		Status: models.AutomationStatusPublished, TriggerType: "sms_received",
		CreatedAt: base.Add(2 * time.Second),
	}))

	matched, err := store.PublishedAutomationsByTrigger(ctx, "org-1", "sms_received")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "auto-1", matched[0].ID)
}
