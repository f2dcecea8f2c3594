package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/handoff/handoff-server/internal/model"
)

type PortalTokenRepository interface {
	Create(ctx context.Context, params model.CreatePortalTokenParams) (*model.PortalToken, error)
	FindByID(ctx context.Context, id string) (*model.PortalToken, error)
	// FindByTokenHash returns the row whether or not it is still active.
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PortalToken, error)
	FindActiveByClient(ctx context.Context, clientID string) (*model.PortalToken, error)
	Revoke(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type portalTokenRepo struct {
	db sqlxDB
}

func NewPortalTokenRepository(db *sqlx.DB) PortalTokenRepository {
	return &portalTokenRepo{db: db}
}

func (r *portalTokenRepo) Create(ctx context.Context, params model.CreatePortalTokenParams) (*model.PortalToken, error) {
	var token model.PortalToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO portal_tokens (user_id, client_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.OwnerUserID, params.ClientID, params.TokenHash, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *portalTokenRepo) FindByID(ctx context.Context, id string) (*model.PortalToken, error) {
	var token model.PortalToken
	err := r.db.GetContext(ctx, &token, `SELECT * FROM portal_tokens WHERE id = $1`, id)
	return HandleNotFound(&token, err)
}

func (r *portalTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PortalToken, error) {
	var token model.PortalToken
	err := r.db.GetContext(ctx, &token, `SELECT * FROM portal_tokens WHERE token_hash = $1`, tokenHash)
	return HandleNotFound(&token, err)
}

// FindActiveByClient returns the unrevoked token for a client. Expiry is left to the caller.
func (r *portalTokenRepo) FindActiveByClient(ctx context.Context, clientID string) (*model.PortalToken, error) {
	var token model.PortalToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM portal_tokens
		WHERE client_id = $1 AND revoked_at IS NULL
	`, clientID)
	return HandleNotFound(&token, err)
}

func (r *portalTokenRepo) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL
	`, id, time.Now())
	return err
}

// DeleteExpired removes tokens whose expiry has passed or that were revoked over a day ago.
func (r *portalTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM portal_tokens
		WHERE (expires_at IS NOT NULL AND expires_at < NOW())
		   OR (revoked_at IS NOT NULL AND revoked_at < NOW() - INTERVAL '1 day')
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
