package auth

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pedalhub/rental-service/internal/domain"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

const msgForbidden = "You do not have permission to access this resource"

// RoleSet is an immutable allow-list of roles bound to a route at registration time.
type RoleSet struct {
	roles map[domain.UserRole]struct{}
	names []string
}

// NewRoleSet builds a RoleSet. It panics on an unknown role because role sets are
// only built while registering routes.
func NewRoleSet(roles ...domain.UserRole) RoleSet {
	set := RoleSet{roles: make(map[domain.UserRole]struct{}, len(roles))}
	for _, role := range roles {
		if !role.Valid() {
			panic(fmt.Sprintf("auth: unknown role %q", role))
		}
		if _, dup := set.roles[role]; dup {
			continue
		}
		set.roles[role] = struct{}{}
		set.names = append(set.names, string(role))
	}
	return set
}

// Contains reports whether role is allowed.
func (s RoleSet) Contains(role domain.UserRole) bool {
	_, ok := s.roles[role]
	return ok
}

// Strings returns the allowed role names in registration order.
func (s RoleSet) Strings() []string {
	return append([]string(nil), s.names...)
}

// Authorizer builds authorization gates that run after AuthMiddleware.Handle.
type Authorizer struct {
	logger  *zap.Logger
	metrics DecisionRecorder
}

// NewAuthorizer constructs an Authorizer. Both arguments may be nil.
func NewAuthorizer(logger *zap.Logger, metrics DecisionRecorder) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{logger: logger, metrics: metrics}
}

// RequireRoles ensures the caller's role is in allowed.
func (a *Authorizer) RequireRoles(allowed RoleSet) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromFiber(c)
		if !ok {
			return a.unauthenticated(c, GateRole)
		}

		if !allowed.Contains(identity.UserType) {
			a.record(GateRole, OutcomeForbidden)
			a.logger.Warn("role not permitted",
				zap.String("user_id", identity.UserID),
				zap.String("role", string(identity.UserType)),
				zap.Strings("allowed_roles", allowed.Strings()),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()))
			return reject(c, http.StatusForbidden, msgForbidden, "")
		}

		a.record(GateRole, OutcomeAllowed)
		return c.Next()
	}
}

// unauthenticated handles a gate mounted without AuthMiddleware in front of it.
func (a *Authorizer) unauthenticated(c *fiber.Ctx, gate string) error {
	a.record(gate, OutcomeUnauthenticated)
	a.logger.Error("authorization check without authenticated identity",
		zap.String("gate", gate),
		zap.String("path", c.Path()),
		zap.String("method", c.Method()))
	return apperrors.NewUnauthenticated()
}

func (a *Authorizer) record(gate, outcome string) {
	if a.metrics != nil {
		a.metrics.RecordGateDecision(gate, outcome)
	}
}
