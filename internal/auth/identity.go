package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pedalhub/rental-service/internal/domain"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

type ctxKey struct{}

const identityLocalsKey = "auth_identity"

// Identity is the verified caller derived from an access token. It lives for a
// single request.
type Identity struct {
	UserID   string          `json:"userId"`
	Email    string          `json:"email"`
	UserType domain.UserRole `json:"userType"`

	// TokenID and ExpiresAt identify the presenting token for revocation.
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.UserType == domain.UserRoleAdmin
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFromContext retrieves the identity attached by the authentication gate.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(*Identity)
	return identity, ok && identity != nil
}

// SetIdentity attaches identity to the fiber request, both as a local and on the user context.
func SetIdentity(c *fiber.Ctx, identity *Identity) {
	c.Locals(identityLocalsKey, identity)
	c.SetUserContext(WithIdentity(c.UserContext(), identity))
}

// IdentityFromFiber retrieves the authenticated caller from a fiber request.
func IdentityFromFiber(c *fiber.Ctx) (*Identity, bool) {
	if identity, ok := c.Locals(identityLocalsKey).(*Identity); ok && identity != nil {
		return identity, true
	}
	return IdentityFromContext(c.UserContext())
}

// ErrUnauthenticated is returned by authorization gates that find no identity on the request.
var ErrUnauthenticated = apperrors.ErrUnauthenticated
