package devbackend

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/domain"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(config.DevBackendConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}, zap.NewNop())
}

func doRequest(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func tokenRequest(username, password string) *http.Request {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func registerRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTokenIssuesDecodableCredential(t *testing.T) {
	s := newTestServer(t)
	id, err := s.SeedUser("alice", "alice@x.com", "pw", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, body := doRequest(t, s, tokenRequest("alice@x.com", "pw"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	var token dto.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if token.TokenType != "bearer" {
		t.Fatalf("unexpected token type %q", token.TokenType)
	}
	claims, err := s.Tokens().Decode(domain.Credential(token.AccessToken))
	if err != nil {
		t.Fatalf("decode credential: %v", err)
	}
	if claims.Subject != id || claims.Role != domain.RoleAdmin || claims.Email != "alice@x.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.SeedUser("alice", "alice@x.com", "pw", domain.RoleTrader); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, tc := range []struct{ user, pass string }{{"alice@x.com", "wrong"}, {"nobody@x.com", "pw"}} {
		resp, body := doRequest(t, s, tokenRequest(tc.user, tc.pass))
		if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(body), "Incorrect username or password") {
			t.Fatalf("%s: unexpected response %d %s", tc.user, resp.StatusCode, body)
		}
	}
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	resp, body := doRequest(t, s, registerRequest(`{"username":"bob","email":"bob@x.com","password":"pw","role":"trader"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	var out dto.UserOut
	if err := json.Unmarshal(body, &out); err != nil || out.ID == "" || out.Role != "trader" {
		t.Fatalf("unexpected body %s (%v)", body, err)
	}

	resp, body = doRequest(t, s, registerRequest(`{"username":"bob2","email":"BOB@x.com","password":"pw","role":"trader"}`))
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), "Email already registered") {
		t.Fatalf("expected duplicate rejection, got %d %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, s, registerRequest(`{"username":"","email":"not-an-email","password":"pw","role":"trader"}`))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"email"`) || !strings.Contains(string(body), `"username"`) {
		t.Fatalf("expected field issues, got %s", body)
	}
}

func TestProtectedEndpointsRequireBearer(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.SeedUser("alice", "alice@x.com", "pw", domain.RoleTrader)
	token, _, err := s.Tokens().GenerateToken(id, "alice@x.com", domain.RoleTrader)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	for _, path := range []string{"/api/positions", "/api/dashboard/stats", "/api/config", "/api/logs/system", "/api/queue", "/api/analytics"} {
		resp, _ := doRequest(t, s, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without bearer: got %d", path, resp.StatusCode)
		}

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, body := doRequest(t, s, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s with bearer: got %d %s", path, resp.StatusCode, body)
		}
	}

	s.Revoke(id)
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body := doRequest(t, s, req)
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(string(body), "Could not validate credentials") {
		t.Fatalf("revoked subject: got %d %s", resp.StatusCode, body)
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	resp, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var health dto.HealthStatus
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &health) != nil || health.Status != "ok" {
		t.Fatalf("unexpected health %d %s", resp.StatusCode, body)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.SeedUser("admin", "admin@x.com", "pw", domain.RoleAdmin)
	token, _, _ := s.Tokens().GenerateToken(id, "admin@x.com", domain.RoleAdmin)

	put := httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(`{"app":{"mode":"live"}}`))
	put.Header.Set("Authorization", "Bearer "+token)
	put.Header.Set("Content-Type", "application/json")
	if resp, body := doRequest(t, s, put); resp.StatusCode != http.StatusOK {
		t.Fatalf("put: %d %s", resp.StatusCode, body)
	}

	bad := httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(`[1,2]`))
	bad.Header.Set("Authorization", "Bearer "+token)
	if resp, _ := doRequest(t, s, bad); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for non-object settings, got %d", resp.StatusCode)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	get.Header.Set("Authorization", "Bearer "+token)
	resp, body := doRequest(t, s, get)
	if resp.StatusCode != http.StatusOK || string(body) != `{"app":{"mode":"live"}}` {
		t.Fatalf("get: %d %s", resp.StatusCode, body)
	}
}

func TestFaultInjection(t *testing.T) {
	s := newTestServer(t)
	s.SetFault("/health", http.StatusServiceUnavailable)
	resp, _ := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected injected 503, got %d", resp.StatusCode)
	}
	s.SetFault("/health", 0)
	resp, _ = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fault cleared, got %d", resp.StatusCode)
	}
}

func TestSeedUserRejectsDuplicate(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.SeedUser("a", "a@x.com", "pw", domain.RoleTrader); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.SeedUser("a", "A@X.com", "pw", domain.RoleTrader); err != ErrEmailRegistered {
		t.Fatalf("expected ErrEmailRegistered, got %v", err)
	}
}
