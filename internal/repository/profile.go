package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/handoff/handoff-server/internal/model"
)

type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	Update(ctx context.Context, id string, params model.UpdateProfileParams) (*model.Profile, error)
	SlugTaken(ctx context.Context, slug, exceptID string) (bool, error)
}

type profileRepo struct {
	db sqlxDB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE id = $1`, id)
	return HandleNotFound(&profile, err)
}

// Update writes only the non-nil fields of params.
func (r *profileRepo) Update(ctx context.Context, id string, params model.UpdateProfileParams) (*model.Profile, error) {
	stmt := psql.Update("profiles").
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING *")

	if params.FullName != nil {
		stmt = stmt.Set("full_name", *params.FullName)
	}
	if params.OrgName != nil {
		stmt = stmt.Set("org_name", *params.OrgName)
	}
	if params.OrgSlug != nil {
		stmt = stmt.Set("org_slug", *params.OrgSlug)
	}
	if params.BrandColor != nil {
		stmt = stmt.Set("brand_color", *params.BrandColor)
	}
	if params.AccountType != nil {
		stmt = stmt.Set("account_type", *params.AccountType)
	}
	if params.Role != nil {
		stmt = stmt.Set("role", *params.Role)
	}
	if params.Onboarded != nil {
		stmt = stmt.Set("onboarded", *params.Onboarded)
	}

	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	var profile model.Profile
	err = r.db.GetContext(ctx, &profile, query, args...)
	return HandleNotFound(&profile, err)
}

func (r *profileRepo) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	n, err := count(ctx, r.db, psql.Select("COUNT(*)").From("profiles").
		Where(sq.Eq{"org_slug": slug}).
		Where(sq.NotEq{"id": exceptID}))
	return n > 0, err
}
