package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/handoff/handoff-server/internal/model"
)

type InvoiceRepository interface {
	// List returns invoices visible to scope, optionally narrowed to one project, newest first.
	List(ctx context.Context, scope model.Scope, projectID *string) ([]model.Invoice, error)
	ListWithNames(ctx context.Context, ownerUserID string) ([]model.InvoiceListItem, error)
	Create(ctx context.Context, params model.CreateInvoiceParams) (*model.Invoice, error)
	OwnerTotals(ctx context.Context, ownerUserID string) (outstanding int, revenue decimal.Decimal, err error)
}

type invoiceRepo struct {
	db sqlxDB
}

func NewInvoiceRepository(db *sqlx.DB) InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) List(ctx context.Context, scope model.Scope, projectID *string) ([]model.Invoice, error) {
	stmt := psql.Select("i.*").From("invoices i").Where(sq.Eq{"i.user_id": scope.OwnerUserID})
	if scope.IsPortal() {
		// Portal invoices must hang off one of the client's projects.
		stmt = stmt.Join("projects p ON p.id = i.project_id")
		stmt = scopeProjects(stmt, "p", scope)
	}
	if projectID != nil {
		stmt = stmt.Where(sq.Eq{"i.project_id": *projectID})
	}
	return selectAll[model.Invoice](ctx, r.db, stmt.OrderBy("i.created_at DESC"))
}

func (r *invoiceRepo) ListWithNames(ctx context.Context, ownerUserID string) ([]model.InvoiceListItem, error) {
	return selectAll[model.InvoiceListItem](ctx, r.db, psql.Select("i.*", "p.name AS project_name", "c.name AS client_name").
		From("invoices i").
		LeftJoin("projects p ON p.id = i.project_id").
		LeftJoin("clients c ON c.id = i.client_id").
		Where(sq.Eq{"i.user_id": ownerUserID}).
		OrderBy("i.created_at DESC"))
}

func (r *invoiceRepo) Create(ctx context.Context, params model.CreateInvoiceParams) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.GetContext(ctx, &invoice, `
		INSERT INTO invoices (user_id, project_id, client_id, amount, currency, status, description, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.OwnerUserID, params.ProjectID, params.ClientID, params.Amount, params.Currency,
		params.Status, params.Description, params.DueDate)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepo) OwnerTotals(ctx context.Context, ownerUserID string) (int, decimal.Decimal, error) {
	var totals struct {
		Outstanding int             `db:"outstanding"`
		Revenue     decimal.Decimal `db:"revenue"`
	}
	err := r.db.GetContext(ctx, &totals, `
		SELECT COUNT(*) FILTER (WHERE status IN ('sent', 'overdue')) AS outstanding,
		       COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS revenue
		FROM invoices WHERE user_id = $1
	`, ownerUserID)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return totals.Outstanding, totals.Revenue, nil
}
