package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// RequireAdmin ensures the caller carries administrative privilege.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("identity required")
		}
		if !identity.Admin() {
			return apperrors.NewForbidden("administrator required")
		}
		return c.Next()
	}
}

// RequireIdentity ensures a caller is authenticated.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.NewUnauthorized("identity required")
		}
		return c.Next()
	}
}
