package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

const (
	msgAuthInvalid = "Authentication invalid"
	msgAuthError   = "Authentication error"
)

// Gate names and outcomes reported to the DecisionRecorder.
const (
	GateAuthentication = "authentication"
	GateRole           = "role"
	GateOwnership      = "ownership"

	OutcomeAllowed         = "allowed"
	OutcomeMissing         = "missing_credential"
	OutcomeInvalid         = "invalid_token"
	OutcomeRevoked         = "revoked"
	OutcomeForbidden       = "forbidden"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeInternal        = "internal_fault"
	OutcomeResolverFailure = "resolver_error"
)

// DecisionRecorder receives one call per gate decision.
type DecisionRecorder interface {
	RecordGateDecision(gate, outcome string)
}

// AuthMiddlewareOptions bundles optional collaborators for the authentication gate.
type AuthMiddlewareOptions struct {
	Revocations          RevocationChecker
	Logger               *zap.Logger
	Metrics              DecisionRecorder
	ExposeInternalErrors bool
}

// AuthMiddleware validates bearer tokens and attaches the caller identity.
type AuthMiddleware struct {
	tokens         *TokenManager
	revocations    RevocationChecker
	logger         *zap.Logger
	metrics        DecisionRecorder
	exposeInternal bool
}

// NewAuthMiddleware constructs the authentication gate.
func NewAuthMiddleware(tokens *TokenManager, opts AuthMiddlewareOptions) *AuthMiddleware {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:         tokens,
		revocations:    opts.Revocations,
		logger:         logger,
		metrics:        opts.Metrics,
		exposeInternal: opts.ExposeInternalErrors,
	}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		m.record(OutcomeMissing)
		return reject(c, http.StatusUnauthorized, msgAuthInvalid, "")
	}

	identity, err := m.tokens.Verify(token)
	if err != nil {
		var invalid *InvalidTokenError
		if errors.As(err, &invalid) {
			m.record(OutcomeInvalid)
			return reject(c, http.StatusUnauthorized, msgAuthInvalid, invalid.Reason)
		}
		return m.internalFault(c, err)
	}

	if m.revocations != nil && identity.TokenID != "" {
		revoked, err := m.revocations.IsRevoked(c.UserContext(), identity.TokenID)
		if err != nil {
			return m.internalFault(c, err)
		}
		if revoked {
			m.record(OutcomeRevoked)
			return reject(c, http.StatusUnauthorized, msgAuthInvalid, "token revoked")
		}
	}

	m.record(OutcomeAllowed)
	SetIdentity(c, identity)
	return c.Next()
}

func (m *AuthMiddleware) internalFault(c *fiber.Ctx, err error) error {
	m.record(OutcomeInternal)
	m.logger.Error("authentication failed unexpectedly",
		zap.Error(err),
		zap.String("path", c.Path()),
		zap.String("method", c.Method()))

	detail := ""
	if m.exposeInternal {
		detail = err.Error()
	}
	return reject(c, http.StatusInternalServerError, msgAuthError, detail)
}

func (m *AuthMiddleware) record(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordGateDecision(GateAuthentication, outcome)
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func reject(c *fiber.Ctx, status int, message, detail string) error {
	return c.Status(status).JSON(apperrors.NewErrorResponse(message, detail))
}
