package model

import (
	"time"
)

const DefaultBrandColor = "#6366f1"

// Profile is one-to-one with a User and shares its id.
type Profile struct {
	ID          string       `db:"id" json:"id"`
	FullName    *string      `db:"full_name" json:"fullName,omitempty"`
	OrgName     *string      `db:"org_name" json:"orgName,omitempty"`
	OrgSlug     *string      `db:"org_slug" json:"orgSlug,omitempty"`
	BrandColor  *string      `db:"brand_color" json:"brandColor,omitempty"`
	AccountType *AccountType `db:"account_type" json:"accountType,omitempty"`
	Role        *string      `db:"role" json:"role,omitempty"`
	Plan        string       `db:"plan" json:"plan"`
	Onboarded   bool         `db:"onboarded" json:"onboarded"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`
}

type UpdateProfileParams struct {
	FullName    *string
	OrgName     *string
	OrgSlug     *string
	BrandColor  *string
	AccountType *AccountType
	Role        *string
	Onboarded   *bool
}

// Branding is the subset of a Profile shown in the portal header.
type Branding struct {
	OrgName    string `db:"org_name" json:"orgName"`
	BrandColor string `db:"brand_color" json:"brandColor"`
}

func (p *Profile) Branding() Branding {
	b := Branding{BrandColor: DefaultBrandColor}
	if p.OrgName != nil {
		b.OrgName = *p.OrgName
	}
	if p.BrandColor != nil && *p.BrandColor != "" {
		b.BrandColor = *p.BrandColor
	}
	return b
}
