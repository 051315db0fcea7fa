// Package web provides the HTTP surface of the engine: event ingestion and
// read endpoints for runs and their audit log.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/relayhq/relay/pkg/dedup"
	"github.com/relayhq/relay/pkg/eventbus"
	"github.com/relayhq/relay/pkg/events"
	"github.com/relayhq/relay/pkg/models"
	"github.com/relayhq/relay/pkg/persistence"
)

// dedupWindow bounds how long a dedup key suppresses redeliveries.
const dedupWindow = 24 * time.Hour

type APIHandlers struct {
	store     persistence.Persistence
	publisher eventbus.EventPublisher
	guard     dedup.Guard
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

func NewAPIHandlers(
	store persistence.Persistence,
	publisher eventbus.EventPublisher,
	guard dedup.Guard,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	if guard == nil {
		guard = dedup.NoopGuard{}
	}

	return &APIHandlers{
		store:     store,
		publisher: publisher,
		guard:     guard,
		validator: validator,
		logger:    logger.With("module", "api"),
		now:       time.Now,
	}
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	v1 := app.Group("/v1")
	v1.Post("/events", h.IngestEvent)
	v1.Get("/events/:id", h.GetEvent)
	v1.Get("/runs/:id", h.GetRun)
	v1.Get("/runs/:id/steps", h.GetRunSteps)
}

// IngestEvent stores an inbound business event and publishes it for routing.
// The response confirms dispatch only; runs execute asynchronously.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.DedupKey != "" {
		claimed, err := h.guard.Claim(c.Context(), req.OrgID+":"+req.DedupKey, dedupWindow)
		if err != nil {
			return internalError(c, err)
		}

		if !claimed {
			h.logger.InfoContext(c.Context(), "Duplicate event suppressed",
				"org_id", req.OrgID,
				"dedup_key", req.DedupKey)

			return c.Status(fiber.StatusAccepted).JSON(IngestEventResponse{Duplicate: true})
		}
	}

	event := &models.Event{
		ID:         uuid.New().String(),
		OrgID:      req.OrgID,
		OrgSlug:    req.OrgSlug,
		EventType:  models.EventType(req.EventType),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Payload:    req.Payload,
		CreatedAt:  h.now().UTC(),
	}

	if err := h.store.SaveEvent(c.Context(), event); err != nil {
		return internalError(c, err)
	}

	received := events.EventReceived{
		BaseEvent: events.NewBaseEvent(events.EventReceivedEvent, event.OrgID),
		EventID:   event.ID,
		EventKind: event.EventType,
	}

	if err := h.publisher.Publish(c.Context(), event.ID, received); err != nil {
		return internalError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Event ingested",
		"event_id", event.ID,
		"event_type", string(event.EventType),
		"org_id", event.OrgID)

	return c.Status(fiber.StatusAccepted).JSON(IngestEventResponse{EventID: event.ID})
}

func (h *APIHandlers) GetEvent(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Event ID is required")
	}

	event, err := h.store.EventByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err, "Event not found")
	}

	return c.JSON(event)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.store.RunByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err, "Run not found")
	}

	steps, err := h.store.RunStepsByRun(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(RunResponse{Run: run, Steps: steps})
}

func (h *APIHandlers) GetRunSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	if _, err := h.store.RunByID(c.Context(), id); err != nil {
		return handleStoreError(c, err, "Run not found")
	}

	steps, err := h.store.RunStepsByRun(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"steps": steps})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Relay API is healthy"
	httpStatus := http.StatusOK

	err := h.store.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = "Relay API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
