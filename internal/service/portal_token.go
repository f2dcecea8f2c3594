package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/repository"
	"github.com/handoff/handoff-server/internal/util"
)

// PortalTokenService resolves opaque portal tokens to a scope and manages
// the one active token each client may hold.
type PortalTokenService struct {
	tokenRepo  repository.PortalTokenRepository
	clientRepo repository.ClientRepository
}

func NewPortalTokenService(
	tokenRepo repository.PortalTokenRepository,
	clientRepo repository.ClientRepository,
) *PortalTokenService {
	return &PortalTokenService{
		tokenRepo:  tokenRepo,
		clientRepo: clientRepo,
	}
}

// Resolve looks the token up by hash. Unknown, expired and revoked tokens
// all fail with InvalidToken so callers can render one terminal state.
func (s *PortalTokenService) Resolve(ctx context.Context, token string) (*model.PortalToken, error) {
	if token == "" {
		return nil, apperrors.InvalidToken()
	}

	pt, err := s.tokenRepo.FindByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pt == nil || !pt.IsActive() {
		log.Warn().Str("token", util.MaskToken(token)).Msg("invalid or expired portal token")
		return nil, apperrors.InvalidToken()
	}
	return pt, nil
}

// StillActive re-checks a resolved token, for sessions reacting to token changes.
func (s *PortalTokenService) StillActive(ctx context.Context, id string) (bool, error) {
	pt, err := s.tokenRepo.FindByID(ctx, id)
	if err != nil {
		return false, apperrors.Database(err)
	}
	return pt != nil && pt.IsActive(), nil
}

// Issue creates the client's portal token and returns the plaintext once.
func (s *PortalTokenService) Issue(
	ctx context.Context,
	scope model.Scope,
	clientID string,
	expiresAt *time.Time,
) (*model.PortalToken, string, error) {
	client, err := s.ownedClient(ctx, scope, clientID)
	if err != nil {
		return nil, "", err
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, "", apperrors.InvalidInput("expiresAt", "must be in the future")
	}

	existing, err := s.tokenRepo.FindActiveByClient(ctx, client.ID)
	if err != nil {
		return nil, "", apperrors.Database(err)
	}
	if existing != nil {
		if existing.IsActive() {
			return nil, "", apperrors.AlreadyExists("Portal token")
		}
		// Expired but never revoked: retire it so the client can get a new one.
		if err := s.tokenRepo.Revoke(ctx, existing.ID); err != nil {
			return nil, "", apperrors.Database(err)
		}
	}

	token, err := util.GeneratePortalToken()
	if err != nil {
		return nil, "", apperrors.Internal("failed to generate portal token").WithCause(err)
	}

	pt, err := s.tokenRepo.Create(ctx, model.CreatePortalTokenParams{
		OwnerUserID: scope.OwnerUserID,
		ClientID:    client.ID,
		TokenHash:   util.HashToken(token),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, "", apperrors.Database(err)
	}

	log.Info().
		Str("ownerUserId", scope.OwnerUserID).
		Str("clientId", client.ID).
		Msg("portal token issued")

	return pt, token, nil
}

func (s *PortalTokenService) Find(ctx context.Context, scope model.Scope, clientID string) (*model.PortalToken, error) {
	client, err := s.ownedClient(ctx, scope, clientID)
	if err != nil {
		return nil, err
	}
	pt, err := s.tokenRepo.FindActiveByClient(ctx, client.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pt == nil {
		return nil, apperrors.NotFound("Portal token")
	}
	return pt, nil
}

// Revoke ends portal access for a client. Open portal sessions observe the change and terminate.
func (s *PortalTokenService) Revoke(ctx context.Context, scope model.Scope, clientID string) error {
	pt, err := s.Find(ctx, scope, clientID)
	if err != nil {
		return err
	}
	if err := s.tokenRepo.Revoke(ctx, pt.ID); err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("ownerUserId", scope.OwnerUserID).
		Str("clientId", clientID).
		Msg("portal token revoked")
	return nil
}

func (s *PortalTokenService) ownedClient(ctx context.Context, scope model.Scope, clientID string) (*model.Client, error) {
	if !scope.IsOwner() {
		return nil, apperrors.Forbidden("Portal token")
	}
	if !util.IsValidUUID(clientID) {
		return nil, apperrors.NotFound("Client")
	}
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		return nil, apperrors.NotFound("Client")
	}
	if client.OwnerUserID != scope.OwnerUserID {
		return nil, apperrors.Forbidden("Client")
	}
	return client, nil
}
