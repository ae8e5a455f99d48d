package devbackend

import (
	"encoding/json"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/auth"
	"github.com/spec-kit/trader-console/internal/domain"
)

const claimsKey = "devbackend_claims"

func (s *Server) registerRoutes() {
	api := s.app.Group("/api", s.faultMiddleware)

	authGroup := api.Group("/auth")
	authGroup.Post("/token", s.token)
	authGroup.Post("/register", s.register)

	api.Get("/health", s.health)

	api.Get("/positions", s.requireBearer, s.listPositions)
	api.Get("/dashboard/stats", s.requireBearer, s.dashboardStats)
	api.Get("/config", s.requireBearer, s.getSettings)
	api.Put("/config", s.requireBearer, s.putSettings)
	api.Get("/logs/system", s.requireBearer, s.systemLogs)
	api.Get("/queue", s.requireBearer, s.queue)
	api.Get("/analytics", s.requireBearer, s.analytics)
}

func (s *Server) faultMiddleware(c *fiber.Ctx) error {
	path := strings.TrimPrefix(c.Path(), "/api")
	s.mu.RLock()
	delay := s.delays[path]
	status := s.faults[path]
	s.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		s.logger.Debug("injected fault", zap.String("path", path), zap.Int("status", status))
		return detail(c, status, "injected fault")
	}
	return c.Next()
}

func (s *Server) requireBearer(c *fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || token == "" {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return detail(c, fiber.StatusUnauthorized, "Not authenticated")
	}
	claims, err := s.tokens.ParseToken(token)
	if err != nil || s.isRevoked(claims.Subject) {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return detail(c, fiber.StatusUnauthorized, "Could not validate credentials")
	}
	c.Locals(claimsKey, claims)
	return c.Next()
}

func (s *Server) token(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	u, ok := s.lookup(username)
	if !ok || auth.ComparePassword(u.PasswordHash, password) != nil {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return detail(c, fiber.StatusUnauthorized, "Incorrect username or password")
	}
	token, _, err := s.tokens.GenerateToken(u.ID, u.Email, u.Role)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": []validationIssue{
			{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"},
		}})
	}

	var issues []validationIssue
	if strings.TrimSpace(req.Username) == "" {
		issues = append(issues, validationIssue{Loc: []string{"body", "username"}, Msg: "field required", Type: "value_error.missing"})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		issues = append(issues, validationIssue{Loc: []string{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error.email"})
	}
	if req.Password == "" {
		issues = append(issues, validationIssue{Loc: []string{"body", "password"}, Msg: "field required", Type: "value_error.missing"})
	}
	if !domain.Role(req.Role).Valid() {
		issues = append(issues, validationIssue{Loc: []string{"body", "role"}, Msg: "unknown role", Type: "value_error"})
	}
	if len(issues) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": issues})
	}

	id, err := s.SeedUser(req.Username, req.Email, req.Password, domain.Role(req.Role))
	if errors.Is(err, ErrEmailRegistered) {
		return detail(c, fiber.StatusBadRequest, "Email already registered")
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.UserOut{ID: id, Email: req.Email, Username: req.Username, Role: req.Role})
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(dto.HealthStatus{Status: "ok", Database: "connected", Redis: "connected"})
}

func (s *Server) listPositions(c *fiber.Ctx) error {
	s.mu.RLock()
	positions := append([]dto.Position(nil), s.positions...)
	s.mu.RUnlock()
	return c.JSON(positions)
}

func (s *Server) dashboardStats(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := dto.DashboardStats{TotalPositions: len(s.positions)}
	for _, p := range s.positions {
		if p.Status == "active" {
			stats.OpenPositions++
		}
		stats.PnL += p.PnL
	}
	return c.JSON(stats)
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	s.mu.RLock()
	settings := append(json.RawMessage(nil), s.settings...)
	s.mu.RUnlock()
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(settings)
}

func (s *Server) putSettings(c *fiber.Ctx) error {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &object); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": []validationIssue{
			{Loc: []string{"body"}, Msg: "settings must be a JSON object", Type: "type_error.dict"},
		}})
	}
	body := append(json.RawMessage(nil), c.Body()...)
	s.mu.Lock()
	s.settings = body
	s.mu.Unlock()
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func (s *Server) systemLogs(c *fiber.Ctx) error {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	subject := ""
	if claims != nil {
		subject = claims.Subject
	}
	now := time.Now().UTC()
	return c.JSON([]fiber.Map{
		{"timestamp": now.Add(-2 * time.Minute).Format(time.RFC3339), "level": "INFO", "message": "risk engine evaluated 3 position groups"},
		{"timestamp": now.Add(-time.Minute).Format(time.RFC3339), "level": "WARNING", "message": "exchange latency above threshold"},
		{"timestamp": now.Format(time.RFC3339), "level": "INFO", "message": "logs requested", "subject": subject},
	})
}

func (s *Server) queue(c *fiber.Ctx) error {
	return c.JSON([]fiber.Map{
		{"id": "q-1", "symbol": "ADAUSDT", "priority": 1, "status": "waiting"},
	})
}

func (s *Server) analytics(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var wins int
	var total float64
	for _, p := range s.positions {
		total += p.PnL
		if p.PnL > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(s.positions) > 0 {
		winRate = float64(wins) / float64(len(s.positions))
	}
	return c.JSON(fiber.Map{"total_pnl": total, "win_rate": winRate, "trades": len(s.positions)})
}
