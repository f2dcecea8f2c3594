package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/handoff/handoff-server/internal/model"
)

type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*model.Client, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]model.Client, error)
	Create(ctx context.Context, params model.CreateClientParams) (*model.Client, error)
	CountByOwner(ctx context.Context, ownerUserID string) (int, error)
}

type clientRepo struct {
	db sqlxDB
}

func NewClientRepository(db *sqlx.DB) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	var client model.Client
	err := r.db.GetContext(ctx, &client, `SELECT * FROM clients WHERE id = $1`, id)
	return HandleNotFound(&client, err)
}

func (r *clientRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]model.Client, error) {
	return selectAll[model.Client](ctx, r.db, psql.Select("*").From("clients").
		Where(sq.Eq{"user_id": ownerUserID}).
		OrderBy("created_at DESC"))
}

func (r *clientRepo) Create(ctx context.Context, params model.CreateClientParams) (*model.Client, error) {
	var client model.Client
	err := r.db.GetContext(ctx, &client, `
		INSERT INTO clients (user_id, name, email, company)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.OwnerUserID, params.Name, params.Email, params.Company)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepo) CountByOwner(ctx context.Context, ownerUserID string) (int, error) {
	return count(ctx, r.db, psql.Select("COUNT(*)").From("clients").Where(sq.Eq{"user_id": ownerUserID}))
}
