package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/handoff/handoff-server/internal/model"
)

type MessageRepository interface {
	// ListByProject returns messages oldest first. Portal scopes never see internal messages.
	ListByProject(ctx context.Context, scope model.Scope, projectID string) ([]model.Message, error)
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	ListRecent(ctx context.Context, ownerUserID string, limit, offset int) ([]model.RecentMessage, int, error)
}

type messageRepo struct {
	db sqlxDB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) ListByProject(ctx context.Context, scope model.Scope, projectID string) ([]model.Message, error) {
	stmt := psql.Select("m.*").
		From("messages m").
		Join("projects p ON p.id = m.project_id").
		Where(sq.Eq{"m.project_id": projectID})
	stmt = scopeProjects(stmt, "p", scope)
	if scope.IsPortal() {
		stmt = stmt.Where(sq.Eq{"m.is_internal": false})
	}
	return selectAll[model.Message](ctx, r.db, stmt.OrderBy("m.created_at ASC", "m.id ASC"))
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (project_id, sender_id, content, is_internal)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ProjectID, params.SenderID, params.Content, params.IsInternal)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListRecent returns the owner's messages across all projects, newest first, with the total count.
func (r *messageRepo) ListRecent(ctx context.Context, ownerUserID string, limit, offset int) ([]model.RecentMessage, int, error) {
	total, err := count(ctx, r.db, psql.Select("COUNT(*)").
		From("messages m").
		Join("projects p ON p.id = m.project_id").
		Where(sq.Eq{"p.user_id": ownerUserID}))
	if err != nil {
		return nil, 0, err
	}

	messages, err := selectAll[model.RecentMessage](ctx, r.db, psql.Select("m.*", "p.name AS project_name").
		From("messages m").
		Join("projects p ON p.id = m.project_id").
		Where(sq.Eq{"p.user_id": ownerUserID}).
		OrderBy("m.created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)))
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
