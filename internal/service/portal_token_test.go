package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/util"
)

func newTestPortalTokenService() (*PortalTokenService, *mockPortalTokenRepo, *mockClientRepo) {
	tokens := new(mockPortalTokenRepo)
	clients := new(mockClientRepo)
	return NewPortalTokenService(tokens, clients), tokens, clients
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		stored *model.PortalToken
		valid  bool
	}{
		{"unknown token", nil, false},
		{"active without expiry", &model.PortalToken{ID: "t1", OwnerUserID: ownerA, ClientID: clientC}, true},
		{"active with expiry", &model.PortalToken{ID: "t1", OwnerUserID: ownerA, ClientID: clientC, ExpiresAt: &future}, true},
		{"expired", &model.PortalToken{ID: "t1", ExpiresAt: &past}, false},
		{"revoked", &model.PortalToken{ID: "t1", RevokedAt: &past}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, tokens, _ := newTestPortalTokenService()
			if tc.stored == nil {
				tokens.On("FindByTokenHash", mock.Anything, util.HashToken("opaque")).Return(nil, nil)
			} else {
				tokens.On("FindByTokenHash", mock.Anything, util.HashToken("opaque")).Return(tc.stored, nil)
			}

			pt, err := svc.Resolve(ctx, "opaque")
			if !tc.valid {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.PortalScope(ownerA, clientC), pt.Scope())
		})
	}
}

func TestResolve_EmptyTokenSkipsLookup(t *testing.T) {
	svc, tokens, _ := newTestPortalTokenService()

	_, err := svc.Resolve(context.Background(), "")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	tokens.AssertNotCalled(t, "FindByTokenHash", mock.Anything, mock.Anything)
}

func TestResolve_DatabaseError(t *testing.T) {
	svc, tokens, _ := newTestPortalTokenService()
	tokens.On("FindByTokenHash", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	_, err := svc.Resolve(context.Background(), "opaque")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabase))
}

func TestStillActive(t *testing.T) {
	svc, tokens, _ := newTestPortalTokenService()
	revoked := time.Now()
	tokens.On("FindByID", mock.Anything, "live").Return(&model.PortalToken{ID: "live"}, nil)
	tokens.On("FindByID", mock.Anything, "revoked").Return(&model.PortalToken{ID: "revoked", RevokedAt: &revoked}, nil)
	tokens.On("FindByID", mock.Anything, "gone").Return(nil, nil)

	for id, want := range map[string]bool{"live": true, "revoked": false, "gone": false} {
		active, err := svc.StillActive(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, active, id)
	}
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	owner := model.OwnerScope(ownerA)
	acme := &model.Client{ID: clientC, OwnerUserID: ownerA, Name: "Acme"}

	t.Run("returns plaintext once and stores hash", func(t *testing.T) {
		svc, tokens, clients := newTestPortalTokenService()
		clients.On("FindByID", mock.Anything, clientC).Return(acme, nil)
		tokens.On("FindActiveByClient", mock.Anything, clientC).Return(nil, nil)

		var params model.CreatePortalTokenParams
		tokens.On("Create", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				params = args.Get(1).(model.CreatePortalTokenParams)
			}).
			Return(&model.PortalToken{ID: "t1", OwnerUserID: ownerA, ClientID: clientC}, nil)

		pt, token, err := svc.Issue(ctx, owner, clientC, nil)

		require.NoError(t, err)
		assert.Equal(t, "t1", pt.ID)
		assert.Len(t, token, 32)
		assert.Equal(t, util.HashToken(token), params.TokenHash)
		assert.Equal(t, ownerA, params.OwnerUserID)
	})

	t.Run("one active token per client", func(t *testing.T) {
		svc, tokens, clients := newTestPortalTokenService()
		clients.On("FindByID", mock.Anything, clientC).Return(acme, nil)
		tokens.On("FindActiveByClient", mock.Anything, clientC).Return(&model.PortalToken{ID: "t0"}, nil)

		_, _, err := svc.Issue(ctx, owner, clientC, nil)

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists))
		tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("retires expired token first", func(t *testing.T) {
		svc, tokens, clients := newTestPortalTokenService()
		past := time.Now().Add(-time.Hour)
		clients.On("FindByID", mock.Anything, clientC).Return(acme, nil)
		tokens.On("FindActiveByClient", mock.Anything, clientC).Return(&model.PortalToken{ID: "t0", ExpiresAt: &past}, nil)
		tokens.On("Revoke", mock.Anything, "t0").Return(nil)
		tokens.On("Create", mock.Anything, mock.Anything).Return(&model.PortalToken{ID: "t1"}, nil)

		pt, _, err := svc.Issue(ctx, owner, clientC, nil)

		require.NoError(t, err)
		assert.Equal(t, "t1", pt.ID)
		tokens.AssertCalled(t, "Revoke", mock.Anything, "t0")
	})

	t.Run("expiry must be in the future", func(t *testing.T) {
		svc, _, clients := newTestPortalTokenService()
		clients.On("FindByID", mock.Anything, clientC).Return(acme, nil)
		past := time.Now().Add(-time.Second)

		_, _, err := svc.Issue(ctx, owner, clientC, &past)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	})

	t.Run("portal scope cannot issue", func(t *testing.T) {
		svc, _, _ := newTestPortalTokenService()
		_, _, err := svc.Issue(ctx, model.PortalScope(ownerA, clientC), clientC, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	})

	t.Run("other owner's client", func(t *testing.T) {
		svc, _, clients := newTestPortalTokenService()
		clients.On("FindByID", mock.Anything, clientC).Return(acme, nil)

		_, _, err := svc.Issue(ctx, model.OwnerScope(ownerB), clientC, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	owner := model.OwnerScope(ownerA)

	t.Run("revokes active token", func(t *testing.T) {
		svc, tokens, clients := newTestPortalTokenService()
		clients.On("FindByID", mock.Anything, clientC).Return(&model.Client{ID: clientC, OwnerUserID: ownerA}, nil)
		tokens.On("FindActiveByClient", mock.Anything, clientC).Return(&model.PortalToken{ID: "t1"}, nil)
		tokens.On("Revoke", mock.Anything, "t1").Return(nil)

		require.NoError(t, svc.Revoke(ctx, owner, clientC))
		tokens.AssertExpectations(t)
	})

	t.Run("nothing to revoke", func(t *testing.T) {
		svc, tokens, clients := newTestPortalTokenService()
		clients.On("FindByID", mock.Anything, clientC).Return(&model.Client{ID: clientC, OwnerUserID: ownerA}, nil)
		tokens.On("FindActiveByClient", mock.Anything, clientC).Return(nil, nil)

		err := svc.Revoke(ctx, owner, clientC)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})
}
