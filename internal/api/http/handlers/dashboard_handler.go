package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/service"
)

// DashboardHandler reports the dependent fetch set.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Get handles GET /dashboard. It never waits for pending fetches.
func (h *DashboardHandler) Get(c *fiber.Ctx) error {
	h.dashboard.Sync()
	return c.JSON(fiber.Map{"data": dashboardResponse(h.dashboard.Snapshot())})
}

// Reload handles POST /dashboard/reload.
func (h *DashboardHandler) Reload(c *fiber.Ctx) error {
	h.dashboard.Sync()
	if err := h.dashboard.Reload(); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dashboardResponse(h.dashboard.Snapshot())})
}

func dashboardResponse(snapshot service.DashboardSnapshot) dto.DashboardResponse {
	resp := dto.DashboardResponse{
		SessionID: snapshot.Identity.SessionID,
		Settled:   snapshot.Settled(),
		Fetches:   make([]dto.FetchStateResponse, 0, len(snapshot.Fetches)),
	}
	for _, f := range snapshot.Fetches {
		item := dto.FetchStateResponse{Name: f.Name, Status: string(f.Status), Data: f.Data}
		if f.Err != nil {
			item.Error = f.Err.Error()
		}
		if !f.UpdatedAt.IsZero() {
			updated := f.UpdatedAt
			item.UpdatedAt = &updated
		}
		resp.Fetches = append(resp.Fetches, item)
	}
	return resp
}
