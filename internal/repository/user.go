package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/handoff/handoff-server/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create inserts the user together with an empty profile row.
	Create(ctx context.Context, params model.CreateUserParams, fullName *string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

type userRepo struct {
	db sqlxDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE lower(email) = lower($1)`, email)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams, fullName *string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		WITH u AS (
			INSERT INTO users (email, password_hash)
			VALUES ($1, $2)
			RETURNING *
		), p AS (
			INSERT INTO profiles (id, full_name)
			SELECT id, $3 FROM u
		)
		SELECT * FROM u
	`, params.Email, params.PasswordHash, fullName)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = $2 WHERE id = $1
	`, id, time.Now())
	return err
}
