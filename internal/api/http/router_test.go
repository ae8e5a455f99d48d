package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/api/client"
	"github.com/spec-kit/trader-console/internal/api/http/handlers"
	"github.com/spec-kit/trader-console/internal/auth"
	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/devbackend"
	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/events"
	"github.com/spec-kit/trader-console/internal/gateway"
	"github.com/spec-kit/trader-console/internal/observability"
	"github.com/spec-kit/trader-console/internal/repository"
	"github.com/spec-kit/trader-console/internal/service"
)

type consoleApp struct {
	app       *fiber.App
	backend   *devbackend.Server
	sessions  *service.SessionService
	dashboard *service.DashboardService
}

func newConsoleApp(t *testing.T) *consoleApp {
	t.Helper()
	logger := zap.NewNop()
	backend := devbackend.New(config.DevBackendConfig{JWTSecret: "router-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}, logger)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	metrics := observability.NewMetrics()
	store := repository.NewFallbackCredentialRepository(repository.NewMemoryCredentialRepository(), logger)
	dispatcher := events.NewInMemoryDispatcher()

	var sessions *service.SessionService
	gw := gateway.New(config.BackendConfig{BaseURL: srv.URL + "/api", RequestTimeoutSeconds: 5},
		gateway.CredentialFunc(func() domain.Credential { return sessions.Credential() }), logger)
	resources := client.NewResources(gw)
	sessions = service.NewSessionService(service.SessionDependencies{
		Store:      store,
		Exchange:   client.NewAuthClient(gw),
		Decoder:    auth.NewTokenManager("", 0),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	}, logger)
	dashboard := service.NewDashboardService(service.DashboardFetches(resources), sessions, dispatcher, logger, metrics)
	dashboard.RegisterHandlers()
	sessions.Load(context.Background())

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:            handlers.NewHealthHandler("trader-console", "test", store, resources),
		Session:           handlers.NewSessionHandler(sessions),
		Views:             handlers.NewViewsHandler(auth.NewGuard(sessions, auth.DefaultRoutes())),
		Dashboard:         handlers.NewDashboardHandler(dashboard),
		Resources:         handlers.NewResourcesHandler(resources, sessions),
		SessionMiddleware: auth.NewSessionMiddleware(sessions),
	})

	for _, u := range []struct {
		name, email string
		role        domain.Role
	}{{"trader", "trader@x.com", domain.RoleTrader}, {"admin", "admin@x.com", domain.RoleAdmin}} {
		if _, err := backend.SeedUser(u.name, u.email, "pw", u.role); err != nil {
			t.Fatalf("seed %s: %v", u.email, err)
		}
	}
	return &consoleApp{app: app, backend: backend, sessions: sessions, dashboard: dashboard}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (a *consoleApp) do(t *testing.T, method, path, body string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp, env
}

func (a *consoleApp) login(t *testing.T, email string) {
	t.Helper()
	resp, env := a.do(t, http.MethodPost, "/session/login", `{"email":"`+email+`","password":"pw"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d %+v", email, resp.StatusCode, env.Error)
	}
}

func (a *consoleApp) session(t *testing.T) map[string]any {
	t.Helper()
	_, env := a.do(t, http.MethodGet, "/session", "")
	var out map[string]any
	_ = json.Unmarshal(env.Data, &out)
	return out
}

func menuPaths(t *testing.T, a *consoleApp) []string {
	t.Helper()
	_, env := a.do(t, http.MethodGet, "/menu", "")
	var items []map[string]any
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("menu: %v", err)
	}
	paths := make([]string, 0, len(items))
	for _, item := range items {
		paths = append(paths, item["path"].(string))
	}
	return paths
}

func TestAnonymousNavigation(t *testing.T) {
	a := newConsoleApp(t)

	if s := a.session(t); s["state"] != "anonymous" || s["authenticated"] != false {
		t.Fatalf("unexpected session %v", s)
	}

	resp, _ := a.do(t, http.MethodGet, "/views/positions", "")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if resp, _ := a.do(t, http.MethodGet, "/views/login", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("login view must render, got %d", resp.StatusCode)
	}
	resp, env := a.do(t, http.MethodGet, "/views/nowhere", "")
	if resp.StatusCode != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected not found, got %d %+v", resp.StatusCode, env.Error)
	}
	resp, env = a.do(t, http.MethodGet, "/dashboard", "")
	if resp.StatusCode != http.StatusUnauthorized || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected unauthorized dashboard, got %d %+v", resp.StatusCode, env.Error)
	}
	if got := menuPaths(t, a); len(got) != 3 {
		t.Fatalf("anonymous menu should hold ungated items only, got %v", got)
	}
}

func TestTraderCannotReachAdminDestinations(t *testing.T) {
	a := newConsoleApp(t)
	a.login(t, "trader@x.com")

	if s := a.session(t); s["role"] != "trader" || s["authenticated"] != true {
		t.Fatalf("unexpected session %v", s)
	}
	for _, path := range []string{"/views/settings", "/views/logs"} {
		resp, env := a.do(t, http.MethodGet, path, "")
		if resp.StatusCode != http.StatusForbidden || env.Error.Code != "FORBIDDEN" {
			t.Fatalf("%s: expected forbidden, got %d", path, resp.StatusCode)
		}
	}
	if resp, _ := a.do(t, http.MethodGet, "/settings", ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("settings api must be admin only, got %d", resp.StatusCode)
	}
	if got := menuPaths(t, a); strings.Contains(strings.Join(got, ","), "/settings") || len(got) != 3 {
		t.Fatalf("trader menu must hide admin items, got %v", got)
	}
	if resp, _ := a.do(t, http.MethodGet, "/views/positions", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("positions view must render, got %d", resp.StatusCode)
	}
}

func TestDashboardReportsFetches(t *testing.T) {
	a := newConsoleApp(t)
	a.login(t, "trader@x.com")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.dashboard.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	resp, env := a.do(t, http.MethodGet, "/dashboard", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: %d %+v", resp.StatusCode, env.Error)
	}
	var dash struct {
		Settled bool `json:"settled"`
		Fetches []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"fetches"`
	}
	if err := json.Unmarshal(env.Data, &dash); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !dash.Settled || len(dash.Fetches) != 3 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
	for _, f := range dash.Fetches {
		if f.Status != "ready" {
			t.Fatalf("expected %s ready, got %s", f.Name, f.Status)
		}
	}

	resp, _ = a.do(t, http.MethodPost, "/dashboard/reload", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("reload: %d", resp.StatusCode)
	}
	_ = a.dashboard.Wait(ctx)
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	a := newConsoleApp(t)
	a.login(t, "admin@x.com")

	if got := menuPaths(t, a); len(got) != 5 {
		t.Fatalf("admin menu must show every item, got %v", got)
	}
	resp, env := a.do(t, http.MethodPut, "/settings", `{"app":{"mode":"live"}}`)
	if resp.StatusCode != http.StatusOK || string(env.Data) != `{"app":{"mode":"live"}}` {
		t.Fatalf("put settings: %d %s %+v", resp.StatusCode, env.Data, env.Error)
	}
	resp, env = a.do(t, http.MethodGet, "/settings", "")
	if resp.StatusCode != http.StatusOK || string(env.Data) != `{"app":{"mode":"live"}}` {
		t.Fatalf("get settings: %d %s", resp.StatusCode, env.Data)
	}
	resp, env = a.do(t, http.MethodPut, "/settings", `{broken`)
	if resp.StatusCode != http.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected validation error, got %d %+v", resp.StatusCode, env.Error)
	}
	for _, path := range []string{"/logs", "/queue", "/analytics"} {
		if resp, env := a.do(t, http.MethodGet, path, ""); resp.StatusCode != http.StatusOK || len(env.Data) == 0 {
			t.Fatalf("%s: %d", path, resp.StatusCode)
		}
	}
}

func TestUnauthorizedProxyCallEndsSession(t *testing.T) {
	a := newConsoleApp(t)
	a.login(t, "admin@x.com")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = a.dashboard.Wait(ctx)

	a.backend.SetFault("/logs/system", http.StatusUnauthorized)
	resp, env := a.do(t, http.MethodGet, "/logs", "")
	if resp.StatusCode != http.StatusUnauthorized || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected unauthorized, got %d %+v", resp.StatusCode, env.Error)
	}
	if s := a.session(t); s["state"] != "anonymous" {
		t.Fatalf("expected logout cascade, got %v", s)
	}
	if !a.sessions.Credential().Empty() {
		t.Fatal("credential must be cleared")
	}
}

func TestLoginAndRegisterErrors(t *testing.T) {
	a := newConsoleApp(t)

	resp, env := a.do(t, http.MethodPost, "/session/login", `{"email":"trader@x.com","password":"wrong"}`)
	if resp.StatusCode != http.StatusUnauthorized || env.Error.Code != "INVALID_CREDENTIALS" || env.Error.Details["step"] != "login" {
		t.Fatalf("expected invalid credentials, got %d %+v", resp.StatusCode, env.Error)
	}
	resp, env = a.do(t, http.MethodPost, "/session/login", `{"email":""}`)
	if resp.StatusCode != http.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected validation failure, got %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = a.do(t, http.MethodPost, "/session/register", `{"username":"bob","email":"bob@x.com","password":"pw"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %+v", resp.StatusCode, env.Error)
	}
	var created map[string]any
	_ = json.Unmarshal(env.Data, &created)
	if created["authenticated"] != true || created["role"] != "trader" {
		t.Fatalf("expected authenticated trader, got %v", created)
	}

	resp, env = a.do(t, http.MethodPost, "/session/register", `{"username":"bob","email":"bob@x.com","password":"pw"}`)
	if resp.StatusCode != http.StatusConflict || env.Error.Code != "CONFLICT" || env.Error.Details["step"] != "register" {
		t.Fatalf("expected conflict, got %d %+v", resp.StatusCode, env.Error)
	}
}

func TestLogoutIsIdempotentOverHTTP(t *testing.T) {
	a := newConsoleApp(t)
	a.login(t, "trader@x.com")

	for i := 0; i < 2; i++ {
		if resp, _ := a.do(t, http.MethodPost, "/session/logout", ""); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("logout %d: %d", i, resp.StatusCode)
		}
	}
	if s := a.session(t); s["state"] != "anonymous" {
		t.Fatalf("expected anonymous, got %v", s)
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	a := newConsoleApp(t)

	if resp, _ := a.do(t, http.MethodGet, "/health/live", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("live: %d", resp.StatusCode)
	}
	if resp, _ := a.do(t, http.MethodGet, "/health/ready", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("ready: %d", resp.StatusCode)
	}
	a.backend.SetFault("/health", http.StatusServiceUnavailable)
	resp, env := a.do(t, http.MethodGet, "/health/ready", "")
	if resp.StatusCode != http.StatusServiceUnavailable || env.Error.Code != "DEPENDENCY_UNAVAILABLE" {
		t.Fatalf("expected unready, got %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = a.do(t, http.MethodGet, "/no/such/route", "")
	if resp.StatusCode != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected not found, got %d %+v", resp.StatusCode, env.Error)
	}
}
