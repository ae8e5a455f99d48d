package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/domain"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// RequireRole ensures the session holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		snapshot, ok := SnapshotFromContext(c)
		if !ok || !snapshot.Authenticated() {
			return apperrors.NewUnauthorized("login required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[snapshot.Session.Claims.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
