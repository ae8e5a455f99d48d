// Package devbackend serves a local stand-in for the trading backend. It issues
// HS256 credentials with the same claims and error bodies the production API
// uses, and lets tests inject faults per path.
package devbackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/auth"
	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/domain"
)

// ErrEmailRegistered is returned by SeedUser for a duplicate email.
var ErrEmailRegistered = errors.New("email already registered")

// Server is the development backend.
type Server struct {
	app        *fiber.App
	tokens     *auth.TokenManager
	logger     *zap.Logger
	bcryptCost int

	mu        sync.RWMutex
	users     map[string]*domain.Account
	revoked   map[string]struct{}
	faults    map[string]int
	delays    map[string]time.Duration
	settings  json.RawMessage
	positions []dto.Position
}

// New builds the backend and registers its routes under /api.
func New(cfg config.DevBackendConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		users:      make(map[string]*domain.Account),
		revoked:    make(map[string]struct{}),
		faults:     make(map[string]int),
		delays:     make(map[string]time.Duration),
		settings:   json.RawMessage(defaultSettings),
		positions:  defaultPositions(),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "trader-devbackend",
		DisableStartupMessage: true,
		ErrorHandler:          detailErrorHandler,
	})
	s.registerRoutes()
	return s
}

// App exposes the fiber application for Listen or app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler adapts the app to net/http so it can back an httptest.Server.
func (s *Server) Handler() http.HandlerFunc {
	return adaptor.FiberApp(s.app)
}

// Tokens returns the manager that signs issued credentials.
func (s *Server) Tokens() *auth.TokenManager {
	return s.tokens
}

// SeedUser registers an account directly, bypassing the HTTP surface.
func (s *Server) SeedUser(username, email, password string, role domain.Role) (string, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := s.users[key]; exists {
		return "", ErrEmailRegistered
	}
	u := &domain.Account{ID: uuid.NewString(), Username: username, Email: email, PasswordHash: hash, Role: role, CreatedAt: time.Now().UTC()}
	s.users[key] = u
	return u.ID, nil
}

// SetFault makes every request to path answer with status. Zero clears it.
// Paths are relative to /api, for example "/positions".
func (s *Server) SetFault(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.faults, path)
		return
	}
	s.faults[path] = status
}

// SetDelay holds every request to path for d before handling it.
func (s *Server) SetDelay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d <= 0 {
		delete(s.delays, path)
		return
	}
	s.delays[path] = d
}

// Revoke makes every credential issued to subject answer 401.
func (s *Server) Revoke(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[subject] = struct{}{}
}

func (s *Server) lookup(email string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(email)]
	return u, ok
}

func (s *Server) isRevoked(subject string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[subject]
	return ok
}

func detailErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
}

func detail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"detail": message})
}

const defaultSettings = `{"exchange":{"name":"mock","testnet":true},"risk":{"max_open_positions":5,"loss_threshold_percent":-1.5},"app":{"mode":"paper"}}`

func defaultPositions() []dto.Position {
	return []dto.Position{
		{ID: "0b6f7a52-1f0e-4f43-9d0b-2f3b7d1c0a11", Symbol: "BTCUSDT", Status: "active", EntryPrice: 64000, CurrentPrice: 65100, PnL: 110},
		{ID: "5d0c1e7e-6a0a-4c53-8a3e-7c4b2e9d1f22", Symbol: "ETHUSDT", Status: "active", EntryPrice: 3200, CurrentPrice: 3150, PnL: -25},
		{ID: "9a1d2c3b-4e5f-4a6b-8c7d-0e1f2a3b4c33", Symbol: "SOLUSDT", Status: "closed", EntryPrice: 140, CurrentPrice: 151, PnL: 44},
	}
}
