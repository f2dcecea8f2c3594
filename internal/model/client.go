package model

import (
	"time"
)

type Client struct {
	ID          string    `db:"id" json:"id"`
	OwnerUserID string    `db:"user_id" json:"ownerUserId"`
	Name        string    `db:"name" json:"name"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Company     *string   `db:"company" json:"company,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type CreateClientParams struct {
	OwnerUserID string
	Name        string
	Email       *string
	Company     *string
}

// ClientSummary is what the portal shows about the client viewing it.
type ClientSummary struct {
	Name    string  `db:"name" json:"name"`
	Company *string `db:"company" json:"company,omitempty"`
}
