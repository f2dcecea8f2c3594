package repository

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/handoff/handoff-server/internal/model"
)

// psql builds Postgres statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// HandleNotFound processes a database query result, converting sql.ErrNoRows
// to a nil result without error. This is a common pattern for Find* operations
// where a missing row is not an error condition.
//
// Usage:
//
//	var item model.Item
//	err := r.db.GetContext(ctx, &item, query, args...)
//	return HandleNotFound(&item, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// scopeProjects restricts a statement to the projects visible to scope.
// alias is the projects table alias in stmt.
func scopeProjects(stmt sq.SelectBuilder, alias string, scope model.Scope) sq.SelectBuilder {
	stmt = stmt.Where(sq.Eq{alias + ".user_id": scope.OwnerUserID})
	if scope.IsPortal() {
		stmt = stmt.Where(sq.Eq{alias + ".client_id": scope.ClientID})
	}
	return stmt
}

func selectAll[T any](ctx context.Context, db sqlxDB, stmt sq.SelectBuilder) ([]T, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func selectOne[T any](ctx context.Context, db sqlxDB, stmt sq.SelectBuilder) (*T, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	var out T
	err = db.GetContext(ctx, &out, query, args...)
	return HandleNotFound(&out, err)
}

func count(ctx context.Context, db sqlxDB, stmt sq.SelectBuilder) (int, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
