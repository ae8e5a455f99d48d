package auth

import (
	"strings"

	"github.com/spec-kit/trader-console/internal/domain"
)

// SessionReader exposes the current session to read-only consumers.
type SessionReader interface {
	Current() domain.SessionSnapshot
}

// LoginPath is where unauthenticated navigation is sent.
const LoginPath = "/login"

// DecisionKind is the outcome of resolving a navigation.
type DecisionKind string

const (
	DecisionRender    DecisionKind = "render"
	DecisionRedirect  DecisionKind = "redirect"
	DecisionForbidden DecisionKind = "forbidden"
	DecisionNotFound  DecisionKind = "not_found"
)

// Decision tells the caller what to do with a requested destination.
type Decision struct {
	Kind     DecisionKind
	Path     string
	Redirect string
	Resource *domain.ProtectedResource
}

// Guard gates protected destinations and filters menus by role.
type Guard struct {
	sessions SessionReader
	routes   map[string]domain.ProtectedResource
	ordered  []domain.ProtectedResource
	public   map[string]struct{}
}

// DefaultRoutes returns the console's protected destinations.
func DefaultRoutes() []domain.ProtectedResource {
	return []domain.ProtectedResource{
		{Path: "/", Title: "Dashboard"},
		{Path: "/positions", Title: "Positions & Pyramids"},
		{Path: "/performance", Title: "Performance"},
		{Path: "/logs", Title: "System Logs", RequiredRole: domain.RoleAdmin},
		{Path: "/settings", Title: "Settings", RequiredRole: domain.RoleAdmin},
	}
}

// NewGuard builds a guard over routes.
func NewGuard(sessions SessionReader, routes []domain.ProtectedResource) *Guard {
	table := make(map[string]domain.ProtectedResource, len(routes))
	ordered := make([]domain.ProtectedResource, 0, len(routes))
	for _, r := range routes {
		r.Path = normalizePath(r.Path)
		if _, dup := table[r.Path]; dup {
			continue
		}
		table[r.Path] = r
		ordered = append(ordered, r)
	}
	return &Guard{
		sessions: sessions,
		routes:   table,
		ordered:  ordered,
		public: map[string]struct{}{
			LoginPath:   {},
			"/register": {},
		},
	}
}

// Resolve decides whether path may be rendered for the current session.
func (g *Guard) Resolve(path string) Decision {
	path = normalizePath(path)
	if _, ok := g.public[path]; ok {
		return Decision{Kind: DecisionRender, Path: path}
	}

	resource, ok := g.routes[path]
	if !ok {
		return Decision{Kind: DecisionNotFound, Path: path}
	}

	snapshot := g.sessions.Current()
	if !snapshot.Authenticated() {
		return Decision{Kind: DecisionRedirect, Path: path, Redirect: LoginPath}
	}

	if !resource.AllowsRole(snapshot.Session.Claims.Role) {
		return Decision{Kind: DecisionForbidden, Path: path, Resource: &resource}
	}
	return Decision{Kind: DecisionRender, Path: path, Resource: &resource}
}

// Menu returns the items visible to the current session. Items whose role does
// not match are hidden; with no session only ungated items remain.
func (g *Guard) Menu(items []domain.ProtectedResource) []domain.ProtectedResource {
	snapshot := g.sessions.Current()
	var role domain.Role
	if snapshot.Authenticated() {
		role = snapshot.Session.Claims.Role
	}

	visible := make([]domain.ProtectedResource, 0, len(items))
	for _, item := range items {
		if item.RequiredRole != "" && item.RequiredRole != role {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// Routes returns the configured destinations in registration order.
func (g *Guard) Routes() []domain.ProtectedResource {
	return append([]domain.ProtectedResource(nil), g.ordered...)
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
