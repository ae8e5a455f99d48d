package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/auth"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// ViewsHandler resolves navigation through the route guard.
type ViewsHandler struct {
	guard *auth.Guard
}

// NewViewsHandler constructs handler.
func NewViewsHandler(guard *auth.Guard) *ViewsHandler {
	return &ViewsHandler{guard: guard}
}

// View handles GET /views/*.
func (h *ViewsHandler) View(c *fiber.Ctx) error {
	decision := h.guard.Resolve("/" + c.Params("*"))
	switch decision.Kind {
	case auth.DecisionRender:
		view := dto.ViewResponse{Path: decision.Path}
		if decision.Resource != nil {
			view = dto.NewViewResponse(*decision.Resource)
		}
		return c.JSON(fiber.Map{"data": view})
	case auth.DecisionRedirect:
		return c.Redirect(decision.Redirect, http.StatusFound)
	case auth.DecisionForbidden:
		return apperrors.NewForbidden("insufficient role")
	default:
		return apperrors.NewNotFound("view", map[string]any{"path": decision.Path})
	}
}

// Menu handles GET /menu.
func (h *ViewsHandler) Menu(c *fiber.Ctx) error {
	items := h.guard.Menu(h.guard.Routes())
	out := make([]dto.ViewResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.NewViewResponse(item))
	}
	return c.JSON(fiber.Map{"data": out})
}
