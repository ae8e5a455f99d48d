package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/devbackend"
	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/gateway"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

type staticCredential struct{ value domain.Credential }

func (s *staticCredential) Credential() domain.Credential { return s.value }

type fixture struct {
	backend *devbackend.Server
	creds   *staticCredential
	auth    *AuthClient
	res     *Resources
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := devbackend.New(config.DevBackendConfig{JWTSecret: "client-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}, zap.NewNop())
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	creds := &staticCredential{}
	gw := gateway.New(config.BackendConfig{BaseURL: srv.URL + "/api", RequestTimeoutSeconds: 5}, creds, zap.NewNop())
	return &fixture{backend: backend, creds: creds, auth: NewAuthClient(gw), res: NewResources(gw)}
}

func TestLoginReturnsCredential(t *testing.T) {
	f := newFixture(t)
	if _, err := f.backend.SeedUser("trader", "trader@x.com", "pw", domain.RoleTrader); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cred, err := f.auth.Login(context.Background(), "trader@x.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := f.backend.Tokens().Decode(cred)
	if err != nil || claims.Role != domain.RoleTrader {
		t.Fatalf("unexpected credential claims %+v (%v)", claims, err)
	}
}

func TestLoginFailureKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Login(ctx, "trader@x.com", "nope")
	if !errors.Is(err, &apperrors.AuthError{Kind: apperrors.AuthInvalidCredentials, Step: apperrors.StepLogin}) {
		t.Fatalf("expected invalid credentials at login, got %v", err)
	}

	f.backend.SetFault("/auth/token", http.StatusInternalServerError)
	_, err = f.auth.Login(ctx, "trader@x.com", "pw")
	if !errors.Is(err, apperrors.ErrAuthNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestLoginUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	gw := gateway.New(config.BackendConfig{BaseURL: base + "/api"}, &staticCredential{}, zap.NewNop())
	_, err := NewAuthClient(gw).Login(context.Background(), "a@x.com", "pw")
	if !errors.Is(err, apperrors.ErrAuthNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestLoginEmptyTokenIsCorrupt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token_type": "bearer"})
	}))
	t.Cleanup(srv.Close)

	gw := gateway.New(config.BackendConfig{BaseURL: srv.URL}, &staticCredential{}, zap.NewNop())
	_, err := NewAuthClient(gw).Login(context.Background(), "a@x.com", "pw")
	if !errors.Is(err, apperrors.ErrCorruptCredential) {
		t.Fatalf("expected corrupt credential, got %v", err)
	}
}

func TestRegisterFailureKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := domain.Registration{DisplayName: "bob", Identifier: "bob@x.com", Secret: "pw"}

	if err := f.auth.Register(ctx, reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := f.auth.Register(ctx, reg)
	if !errors.Is(err, &apperrors.AuthError{Kind: apperrors.AuthConflict, Step: apperrors.StepRegister}) {
		t.Fatalf("expected conflict, got %v", err)
	}
	authErr, _ := apperrors.AsAuthError(err)
	if authErr.Message != "Email already registered" {
		t.Fatalf("expected backend detail, got %q", authErr.Message)
	}

	err = f.auth.Register(ctx, domain.Registration{DisplayName: "x", Identifier: "not-an-email", Secret: "pw"})
	if !errors.Is(err, apperrors.ErrRegisterValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	f.backend.SetFault("/auth/register", http.StatusBadGateway)
	err = f.auth.Register(ctx, domain.Registration{DisplayName: "c", Identifier: "c@x.com", Secret: "pw"})
	if !errors.Is(err, &apperrors.AuthError{Kind: apperrors.AuthNetwork, Step: apperrors.StepRegister}) {
		t.Fatalf("expected network error at register, got %v", err)
	}
}

func TestResourcesCarryCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.res.Positions(ctx); !apperrors.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized without credential, got %v", err)
	}

	id, _ := f.backend.SeedUser("admin", "admin@x.com", "pw", domain.RoleAdmin)
	token, _, err := f.backend.Tokens().GenerateToken(id, "admin@x.com", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	f.creds.value = domain.Credential(token)

	health, err := f.res.Health(ctx)
	if err != nil || health.Status != "ok" {
		t.Fatalf("health: %+v %v", health, err)
	}
	positions, err := f.res.Positions(ctx)
	if err != nil || len(positions) == 0 {
		t.Fatalf("positions: %v %v", positions, err)
	}
	stats, err := f.res.DashboardStats(ctx)
	if err != nil || stats.TotalPositions != len(positions) {
		t.Fatalf("stats: %+v %v", stats, err)
	}

	updated, err := f.res.UpdateSettings(ctx, json.RawMessage(`{"app":{"mode":"live"}}`))
	if err != nil || string(updated) != `{"app":{"mode":"live"}}` {
		t.Fatalf("update settings: %s %v", updated, err)
	}
	settings, err := f.res.Settings(ctx)
	if err != nil || string(settings) != `{"app":{"mode":"live"}}` {
		t.Fatalf("settings: %s %v", settings, err)
	}

	for name, read := range map[string]func(context.Context) (json.RawMessage, error){
		"logs":      f.res.SystemLogs,
		"queue":     f.res.Queue,
		"analytics": f.res.Analytics,
	} {
		if raw, err := read(ctx); err != nil || len(raw) == 0 {
			t.Fatalf("%s: %s %v", name, raw, err)
		}
	}
}
