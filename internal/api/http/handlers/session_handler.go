package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/domain"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// SessionManager is the session surface the console exposes over HTTP.
type SessionManager interface {
	Login(ctx context.Context, identifier, secret string) (domain.SessionSnapshot, error)
	Register(ctx context.Context, displayName, identifier, secret string) (domain.SessionSnapshot, error)
	Logout(ctx context.Context)
	Current() domain.SessionSnapshot
}

// SessionHandler exposes login, registration and logout.
type SessionHandler struct {
	sessions SessionManager
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Login handles POST /session/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	snapshot, err := h.sessions.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(snapshot)})
}

// Register handles POST /session/register.
func (h *SessionHandler) Register(c *fiber.Ctx) error {
	var req dto.ConsoleRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("username, email, password required", nil)
	}

	snapshot, err := h.sessions.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSessionResponse(snapshot)})
}

// Logout handles POST /session/logout. It succeeds with no session.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	h.sessions.Logout(c.UserContext())
	return c.SendStatus(http.StatusNoContent)
}

// Current handles GET /session.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.sessions.Current())})
}
