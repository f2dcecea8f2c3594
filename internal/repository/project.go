package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/handoff/handoff-server/internal/model"
)

type ProjectRepository interface {
	// FindByID is unscoped; callers compare the row against their scope.
	FindByID(ctx context.Context, id string) (*model.Project, error)
	// List returns the projects visible to scope, newest first.
	List(ctx context.Context, scope model.Scope) ([]model.Project, error)
	Create(ctx context.Context, params model.CreateProjectParams) (*model.Project, error)
	UpdateStatus(ctx context.Context, id string, status model.ProjectStatus) (*model.Project, error)
	CountByOwner(ctx context.Context, ownerUserID string) (total int, active int, err error)
}

type projectRepo struct {
	db sqlxDB
}

func NewProjectRepository(db *sqlx.DB) ProjectRepository {
	return &projectRepo{db: db}
}

func projectSelect() sq.SelectBuilder {
	return psql.Select("p.*", "c.name AS client_name").
		From("projects p").
		LeftJoin("clients c ON c.id = p.client_id")
}

func (r *projectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	return selectOne[model.Project](ctx, r.db, projectSelect().Where(sq.Eq{"p.id": id}))
}

func (r *projectRepo) List(ctx context.Context, scope model.Scope) ([]model.Project, error) {
	stmt := scopeProjects(projectSelect(), "p", scope).OrderBy("p.created_at DESC")
	return selectAll[model.Project](ctx, r.db, stmt)
}

func (r *projectRepo) Create(ctx context.Context, params model.CreateProjectParams) (*model.Project, error) {
	var project model.Project
	err := r.db.GetContext(ctx, &project, `
		INSERT INTO projects (user_id, client_id, name, description, status, due_date, budget)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.OwnerUserID, params.ClientID, params.Name, params.Description, params.Status, params.DueDate, params.Budget)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepo) UpdateStatus(ctx context.Context, id string, status model.ProjectStatus) (*model.Project, error) {
	var project model.Project
	err := r.db.GetContext(ctx, &project, `
		UPDATE projects SET status = $2 WHERE id = $1 RETURNING *
	`, id, status)
	return HandleNotFound(&project, err)
}

func (r *projectRepo) CountByOwner(ctx context.Context, ownerUserID string) (int, int, error) {
	var counts struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	err := r.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'active') AS active
		FROM projects WHERE user_id = $1
	`, ownerUserID)
	if err != nil {
		return 0, 0, err
	}
	return counts.Total, counts.Active, nil
}
