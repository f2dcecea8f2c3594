package model

type ScopeKind string

const (
	ScopeOwner  ScopeKind = "owner"
	ScopePortal ScopeKind = "portal"
)

// Scope bounds every read and write issued for one session. It is derived,
// never persisted, and never widened once resolved.
type Scope struct {
	Kind        ScopeKind `json:"kind"`
	OwnerUserID string    `json:"ownerUserId"`
	ClientID    string    `json:"clientId,omitempty"`
	UserID      string    `json:"-"`
}

func OwnerScope(userID string) Scope {
	return Scope{Kind: ScopeOwner, OwnerUserID: userID, UserID: userID}
}

func PortalScope(ownerUserID, clientID string) Scope {
	return Scope{Kind: ScopePortal, OwnerUserID: ownerUserID, ClientID: clientID}
}

func (s Scope) IsPortal() bool {
	return s.Kind == ScopePortal
}

func (s Scope) IsOwner() bool {
	return s.Kind == ScopeOwner
}

// SenderID is the sender recorded on messages written under this scope.
// Portal authors are recorded as nil.
func (s Scope) SenderID() *string {
	if s.IsPortal() {
		return nil
	}
	id := s.UserID
	return &id
}
