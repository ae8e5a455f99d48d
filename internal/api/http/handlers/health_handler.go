package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/api/dto"
)

// StoreStatus reports whether the credential store fell back to memory and
// whether a cleared credential may still be held durably.
type StoreStatus interface {
	Degraded() bool
	ClearPending() bool
}

// BackendChecker checks the trading backend.
type BackendChecker interface {
	Health(ctx context.Context) (dto.HealthStatus, error)
}

// HealthHandler responds to liveness and readiness checks.
type HealthHandler struct {
	serviceName string
	version     string
	store       StoreStatus
	backend     BackendChecker
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, store StoreStatus, backend BackendChecker) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, store: store, backend: backend}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness. A degraded credential store is reported but does not
// make the console unready.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	switch {
	case h.store == nil:
		depStatus["credential_store"] = "ok"
	case h.store.ClearPending():
		depStatus["credential_store"] = "degraded: stored credential clear pending"
	case h.store.Degraded():
		depStatus["credential_store"] = "degraded: memory only"
	default:
		depStatus["credential_store"] = "ok"
	}

	if health, err := h.backend.Health(ctx); err != nil {
		depStatus["backend"] = err.Error()
		ready = false
	} else {
		depStatus["backend"] = health.Status
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
