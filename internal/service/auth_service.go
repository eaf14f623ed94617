package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/domain"
	"github.com/pedalhub/rental-service/internal/repository"
	apperrors "github.com/pedalhub/rental-service/pkg/util"
)

const minPasswordLength = 8

// AuthSession is the result of a successful registration or login.
type AuthSession struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration, login and logout.
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenManager
	revocations *auth.Revocations
	bcryptCost  int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Tokens      *auth.TokenManager
	Revocations *auth.Revocations
	BcryptCost  int
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		bcryptCost:  deps.BcryptCost,
	}
}

// Register creates a customer account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthSession, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": email})
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.UserRoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, err
	}
	return s.session(user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthSession, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	return s.session(user)
}

// Logout revokes the token the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, identity *auth.Identity) error {
	if identity == nil {
		return apperrors.NewUnauthenticated()
	}
	if s.revocations == nil || identity.TokenID == "" {
		return nil
	}
	return s.revocations.Revoke(ctx, identity.TokenID, identity.ExpiresAt)
}

// Profile returns the account behind userID.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	if !validID(userID) {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	return user, err
}

func (s *AuthService) session(user *domain.User) (*AuthSession, error) {
	token, exp, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthSession{User: user, Token: token, ExpiresAt: exp}, nil
}
