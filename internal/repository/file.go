package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/handoff/handoff-server/internal/model"
)

type FileRepository interface {
	FindByID(ctx context.Context, id string) (*model.FileRecord, error)
	ListByProject(ctx context.Context, scope model.Scope, projectID string) ([]model.FileRecord, error)
	Create(ctx context.Context, params model.CreateFileParams) (*model.FileRecord, error)
}

type fileRepo struct {
	db sqlxDB
}

func NewFileRepository(db *sqlx.DB) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	var file model.FileRecord
	err := r.db.GetContext(ctx, &file, `SELECT * FROM files WHERE id = $1`, id)
	return HandleNotFound(&file, err)
}

func (r *fileRepo) ListByProject(ctx context.Context, scope model.Scope, projectID string) ([]model.FileRecord, error) {
	stmt := psql.Select("f.*").
		From("files f").
		Join("projects p ON p.id = f.project_id").
		Where(sq.Eq{"f.project_id": projectID})
	stmt = scopeProjects(stmt, "p", scope)
	return selectAll[model.FileRecord](ctx, r.db, stmt.OrderBy("f.created_at DESC"))
}

func (r *fileRepo) Create(ctx context.Context, params model.CreateFileParams) (*model.FileRecord, error) {
	var file model.FileRecord
	err := r.db.GetContext(ctx, &file, `
		INSERT INTO files (project_id, uploaded_by, name, file_path, file_size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.ProjectID, params.UploadedBy, params.Name, params.StoragePath, params.SizeBytes, params.MimeType)
	if err != nil {
		return nil, err
	}
	return &file, nil
}
