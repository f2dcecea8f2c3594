package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Project struct {
	ID          string              `db:"id" json:"id"`
	OwnerUserID string              `db:"user_id" json:"ownerUserId"`
	ClientID    *string             `db:"client_id" json:"clientId,omitempty"`
	Name        string              `db:"name" json:"name"`
	Description *string             `db:"description" json:"description,omitempty"`
	Status      ProjectStatus       `db:"status" json:"status"`
	DueDate     *time.Time          `db:"due_date" json:"dueDate,omitempty"`
	Budget      decimal.NullDecimal `db:"budget" json:"budget"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	ClientName  *string             `db:"client_name" json:"clientName,omitempty"`
}

type CreateProjectParams struct {
	OwnerUserID string
	ClientID    *string
	Name        string
	Description *string
	Status      ProjectStatus
	DueDate     *time.Time
	Budget      decimal.NullDecimal
}

// InScopeOf reports whether the project is visible to scope.
func (p *Project) InScopeOf(scope Scope) bool {
	if p.OwnerUserID != scope.OwnerUserID {
		return false
	}
	if scope.Kind == ScopeOwner {
		return true
	}
	return p.ClientID != nil && *p.ClientID == scope.ClientID
}
