package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/sharebin/internal/apperror"
	"github.com/sakif/sharebin/internal/auth"
	"github.com/sakif/sharebin/internal/metrics"
	"github.com/sakif/sharebin/internal/model"
	"github.com/sakif/sharebin/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
)

// errBadCredentials is shared by every login failure so the response does
// not reveal which half was wrong.
var errBadCredentials = apperror.Unauthenticated("invalid email or password")

// GoogleVerifier resolves a Google access token to a profile.
// *auth.GoogleVerifier satisfies it.
type GoogleVerifier interface {
	Verify(ctx context.Context, accessToken string) (*auth.GoogleUser, error)
}

// AuthService handles account creation and sign-in.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	google    GoogleVerifier // nil disables Google sign-in
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	google GoogleVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can respond
// in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if n := len(username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email address is not valid")
	}
	if err := auth.CheckPolicy(password); err != nil {
		return nil, apperror.ValidationFailed("password", passwordMessage(err))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Provider:     model.ProviderPassword,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user, "register")
}

// Login checks an email/password pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			metrics.AuthAttempts.WithLabelValues("password", "rejected").Inc()
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if user.PasswordHash == "" {
		// OAuth-only account.
		metrics.AuthAttempts.WithLabelValues("password", "rejected").Inc()
		return nil, errBadCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		metrics.AuthAttempts.WithLabelValues("password", "rejected").Inc()
		if errors.Is(err, auth.ErrWrongPassword) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return s.issue(user, "password")
}

// LoginGoogle verifies a Google access token and signs in the matching
// account, creating it on first use.
func (s *AuthService) LoginGoogle(ctx context.Context, accessToken string) (*AuthResult, error) {
	if s.google == nil {
		return nil, apperror.ValidationFailed("accessToken", "Google sign-in is not enabled on this server")
	}
	profile, err := s.google.Verify(ctx, accessToken)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "rejected").Inc()
		if errors.Is(err, auth.ErrGoogleRejected) {
			return nil, apperror.Unauthenticated("Google rejected the sign-in")
		}
		return nil, apperror.Server("could not reach Google", err)
	}

	user := &model.User{
		Username:   usernameFromEmail(profile.Email, profile.Sub),
		Email:      normalizeEmail(profile.Email),
		Provider:   model.ProviderGoogle,
		ProviderID: profile.Sub,
		AvatarURL:  profile.Picture,
	}
	if err := s.users.UpsertOAuthUser(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user, "google")
}

// GetUserByID returns the account behind a validated token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthenticated("not signed in")
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *AuthService) issue(user *model.User, method string) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	metrics.AuthAttempts.WithLabelValues(method, "ok").Inc()
	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("method", method),
	)
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// usernameFromEmail derives a display name for a new OAuth account.
// The sub suffix keeps it unique across people sharing a local part.
func usernameFromEmail(email, sub string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		local = "user"
	}
	if len(sub) > 6 {
		sub = sub[len(sub)-6:]
	}
	return local + "-" + sub
}

func passwordMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		return fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength)
	case errors.Is(err, auth.ErrLongPassword):
		return fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return "password is not acceptable"
}
