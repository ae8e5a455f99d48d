package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/domain"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

const snapshotKey = "session_snapshot"

// SessionMiddleware captures the session snapshot for the rest of the request.
type SessionMiddleware struct {
	sessions SessionReader
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(sessions SessionReader) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Handle stores the current snapshot so handlers see one consistent view.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	snapshot := m.sessions.Current()
	c.Locals(snapshotKey, snapshot)
	return c.Next()
}

// RequireSession rejects requests that carry no authenticated session.
func (m *SessionMiddleware) RequireSession(c *fiber.Ctx) error {
	snapshot, ok := SnapshotFromContext(c)
	if !ok {
		snapshot = m.sessions.Current()
	}
	if !snapshot.Authenticated() {
		return apperrors.NewUnauthorized("login required")
	}
	return c.Next()
}

// SnapshotFromContext retrieves the snapshot stored by Handle.
func SnapshotFromContext(c *fiber.Ctx) (domain.SessionSnapshot, bool) {
	val := c.Locals(snapshotKey)
	if val == nil {
		return domain.SessionSnapshot{}, false
	}
	snapshot, ok := val.(domain.SessionSnapshot)
	return snapshot, ok
}
