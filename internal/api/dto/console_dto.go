package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/trader-console/internal/domain"
)

// SessionResponse describes the console session. The credential itself is never exposed.
type SessionResponse struct {
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	SessionID     string     `json:"session_id,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	Email         string     `json:"email,omitempty"`
	Role          string     `json:"role,omitempty"`
	IssuedAt      *time.Time `json:"issued_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// NewSessionResponse converts a snapshot.
func NewSessionResponse(snapshot domain.SessionSnapshot) SessionResponse {
	resp := SessionResponse{State: string(snapshot.State), Authenticated: snapshot.Authenticated()}
	if snapshot.Session == nil {
		return resp
	}
	claims := snapshot.Session.Claims
	resp.SessionID = snapshot.Session.ID
	resp.Subject = claims.Subject
	resp.Email = claims.Email
	resp.Role = string(claims.Role)
	if !claims.IssuedAt.IsZero() {
		issued := claims.IssuedAt
		resp.IssuedAt = &issued
	}
	expires := claims.ExpiresAt
	resp.ExpiresAt = &expires
	return resp
}

// ViewResponse is returned for a destination the session may render.
type ViewResponse struct {
	Path         string `json:"path"`
	Title        string `json:"title,omitempty"`
	RequiredRole string `json:"required_role,omitempty"`
}

// NewViewResponse converts a resource descriptor.
func NewViewResponse(r domain.ProtectedResource) ViewResponse {
	return ViewResponse{Path: r.Path, Title: r.Title, RequiredRole: string(r.RequiredRole)}
}

// FetchStateResponse reports one dependent fetch.
type FetchStateResponse struct {
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Data      any        `json:"data,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// DashboardResponse reports the dependent fetch set of the current session.
type DashboardResponse struct {
	SessionID string               `json:"session_id,omitempty"`
	Settled   bool                 `json:"settled"`
	Fetches   []FetchStateResponse `json:"fetches"`
}

// RawEnvelope wraps an opaque backend payload.
type RawEnvelope struct {
	Data json.RawMessage `json:"data"`
}
