package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/repository"
	"github.com/handoff/handoff-server/internal/util"
)

const minPasswordLength = 8

// AuthService is the dashboard's auth provider: sign-up, sign-in, current user and sign-out.
type AuthService struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.AuthSessionRepository
	sessionSecret string
	sessionTTL    time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.AuthSessionRepository,
	sessionSecret string,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		sessionSecret: sessionSecret,
		sessionTTL:    sessionTTL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) SignUp(ctx context.Context, email, password, fullName string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.InvalidInput("email", "not a valid address")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.InvalidInput("password", "must be at least 8 characters")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("Account")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password").WithCause(err)
	}

	var name *string
	if trimmed := strings.TrimSpace(fullName); trimmed != "" {
		name = &trimmed
	}

	user, err := s.userRepo.Create(ctx, model.CreateUserParams{Email: email, PasswordHash: hash}, name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperrors.AlreadyExists("Account")
		}
		return nil, apperrors.Database(err)
	}

	log.Info().Str("userId", user.ID).Msg("user signed up")
	return user, nil
}

// SignIn returns a new opaque session token. Only its HMAC is stored.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", nil, apperrors.Database(err)
	}
	if user == nil || !util.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, apperrors.InvalidCredentials()
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", nil, apperrors.Internal("failed to generate session token").WithCause(err)
	}

	_, err = s.sessionRepo.Create(ctx, model.CreateAuthSessionParams{
		TokenHash: util.HmacSHA256(s.sessionSecret, token),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	})
	if err != nil {
		return "", nil, apperrors.Database(err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("failed to update last login")
	}

	return token, user, nil
}

// CurrentUser returns (nil, nil, nil) when the token has no live session.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, *model.AuthSession, error) {
	if token == "" {
		return nil, nil, nil
	}
	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token))
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, nil, nil
	}
	return user, session, nil
}

// SignOut deletes the session. Signing out an unknown token is not an error.
func (s *AuthService) SignOut(ctx context.Context, token string) (*model.AuthSession, error) {
	session, err := s.sessionRepo.DeleteByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session != nil {
		log.Info().Str("userId", session.UserID).Msg("user signed out")
	}
	return session, nil
}
