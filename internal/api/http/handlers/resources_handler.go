package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/auth"
	"github.com/spec-kit/trader-console/internal/events"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// ResourceClient issues the console's passive reads and writes.
type ResourceClient interface {
	Settings(ctx context.Context) (json.RawMessage, error)
	UpdateSettings(ctx context.Context, settings json.RawMessage) (json.RawMessage, error)
	SystemLogs(ctx context.Context) (json.RawMessage, error)
	Queue(ctx context.Context) (json.RawMessage, error)
	Analytics(ctx context.Context) (json.RawMessage, error)
}

// SessionExpirer ends a session that the backend no longer accepts.
type SessionExpirer interface {
	Expire(ctx context.Context, sessionID string, reason events.EndReason) bool
}

// ResourcesHandler proxies opaque backend payloads.
type ResourcesHandler struct {
	resources ResourceClient
	sessions  SessionExpirer
}

// NewResourcesHandler constructs handler.
func NewResourcesHandler(resources ResourceClient, sessions SessionExpirer) *ResourcesHandler {
	return &ResourcesHandler{resources: resources, sessions: sessions}
}

// Settings handles GET /settings.
func (h *ResourcesHandler) Settings(c *fiber.Ctx) error {
	return h.proxy(c, h.resources.Settings)
}

// UpdateSettings handles PUT /settings. The body is forwarded without interpretation.
func (h *ResourcesHandler) UpdateSettings(c *fiber.Ctx) error {
	body := append(json.RawMessage(nil), c.Body()...)
	if !json.Valid(body) {
		return apperrors.NewValidationError("settings must be valid JSON", nil)
	}
	return h.proxy(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.resources.UpdateSettings(ctx, body)
	})
}

func (h *ResourcesHandler) Logs(c *fiber.Ctx) error {
	return h.proxy(c, h.resources.SystemLogs)
}

func (h *ResourcesHandler) Queue(c *fiber.Ctx) error {
	return h.proxy(c, h.resources.Queue)
}

func (h *ResourcesHandler) Analytics(c *fiber.Ctx) error {
	return h.proxy(c, h.resources.Analytics)
}

// proxy runs call and, on Unauthorized, ends the session the request was made under.
func (h *ResourcesHandler) proxy(c *fiber.Ctx, call func(context.Context) (json.RawMessage, error)) error {
	raw, err := call(c.UserContext())
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			if snapshot, ok := auth.SnapshotFromContext(c); ok && snapshot.Session != nil {
				h.sessions.Expire(context.WithoutCancel(c.UserContext()), snapshot.Session.ID, events.EndReasonUnauthorized)
			}
		}
		return err
	}
	return c.JSON(dto.RawEnvelope{Data: raw})
}
