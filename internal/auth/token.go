package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pedalhub/rental-service/internal/domain"
)

// ErrEmptySecret is returned when a TokenManager is built without a signing secret.
var ErrEmptySecret = errors.New("jwt signing secret is empty")

// InvalidTokenError reports a token that failed verification. Reason carries the
// underlying failure text and is safe to return to the client.
type InvalidTokenError struct {
	Reason string
	Err    error
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

func (e *InvalidTokenError) Unwrap() error {
	return e.Err
}

func invalidToken(err error) *InvalidTokenError {
	return &InvalidTokenError{Reason: err.Error(), Err: err}
}

// Claims describes the JWT payload.
type Claims struct {
	UserID   string          `json:"userId"`
	Email    string          `json:"email"`
	UserType domain.UserRole `json:"userType"`
	jwt.RegisteredClaims
}

// TokenManager handles issuing and validating access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a manager. An empty secret is rejected; there is no default.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source used for issuing and validating tokens.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Issue builds and signs a token for the identity.
func (tm *TokenManager) Issue(userID, email string, role domain.UserRole) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		UserID:   userID,
		Email:    email,
		UserType: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify checks the token signature, expiry and issued-at claims and returns the
// caller identity. Every verification failure is an *InvalidTokenError.
func (tm *TokenManager) Verify(tokenStr string) (*Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, invalidToken(err)
	}
	if !parsed.Valid {
		return nil, invalidToken(errors.New("token is not valid"))
	}
	if claims.UserID == "" {
		return nil, invalidToken(errors.New("missing userId claim"))
	}
	if !claims.UserType.Valid() {
		return nil, invalidToken(fmt.Errorf("unknown userType %q", claims.UserType))
	}

	identity := &Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		UserType: claims.UserType,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
