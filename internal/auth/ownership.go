package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OwnerResolver returns the id of the user owning the resource a request targets.
type OwnerResolver interface {
	ResolveOwner(c *fiber.Ctx) (string, error)
}

// OwnerResolverFunc adapts a function to OwnerResolver.
type OwnerResolverFunc func(c *fiber.Ctx) (string, error)

// ResolveOwner calls f(c).
func (f OwnerResolverFunc) ResolveOwner(c *fiber.Ctx) (string, error) {
	return f(c)
}

// RequireOwnership lets the request through when the caller owns the resource or is an admin.
// Resolver errors are returned unchanged for the shared error handler.
func (a *Authorizer) RequireOwnership(resolver OwnerResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromFiber(c)
		if !ok {
			return a.unauthenticated(c, GateOwnership)
		}

		ownerID, err := resolver.ResolveOwner(c)
		if err != nil {
			a.record(GateOwnership, OutcomeResolverFailure)
			return err
		}

		if identity.UserID == ownerID || identity.IsAdmin() {
			a.record(GateOwnership, OutcomeAllowed)
			return c.Next()
		}

		a.record(GateOwnership, OutcomeForbidden)
		a.logger.Warn("resource not owned by caller",
			zap.String("user_id", identity.UserID),
			zap.String("owner_id", ownerID),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()))
		return reject(c, http.StatusForbidden, msgForbidden, "")
	}
}
