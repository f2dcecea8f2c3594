package model

import (
	"time"
)

// PortalToken grants a client's portal access to exactly one (owner, client) pair.
// Only the SHA-256 hash of the opaque token is stored.
type PortalToken struct {
	ID          string     `db:"id" json:"id"`
	OwnerUserID string     `db:"user_id" json:"ownerUserId"`
	ClientID    string     `db:"client_id" json:"clientId"`
	TokenHash   string     `db:"token_hash" json:"-"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

type CreatePortalTokenParams struct {
	OwnerUserID string
	ClientID    string
	TokenHash   string
	ExpiresAt   *time.Time
}

// IsExpired checks if the token has a passed expiry
func (t *PortalToken) IsExpired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

// IsActive checks if the token is neither expired nor revoked
func (t *PortalToken) IsActive() bool {
	return !t.IsExpired() && t.RevokedAt == nil
}

func (t *PortalToken) Scope() Scope {
	return PortalScope(t.OwnerUserID, t.ClientID)
}
