package handler

import (
	"context"
	"io"
	"time"

	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/service"
)

// Gateway is the scoped query surface the HTTP handlers call. Every method
// takes the caller's scope, resolved by middleware.
type Gateway interface {
	ListProjects(ctx context.Context, scope model.Scope) ([]model.Project, error)
	GetProject(ctx context.Context, scope model.Scope, id string) (*model.Project, error)
	CreateProject(ctx context.Context, scope model.Scope, in service.CreateProjectInput) (*model.Project, error)
	UpdateProjectStatus(ctx context.Context, scope model.Scope, id string, status model.ProjectStatus) (*model.Project, error)

	ListClients(ctx context.Context, scope model.Scope) ([]model.Client, error)
	GetClient(ctx context.Context, scope model.Scope, id string) (*model.Client, error)
	CreateClient(ctx context.Context, scope model.Scope, in service.CreateClientInput) (*model.Client, error)

	ListMessages(ctx context.Context, scope model.Scope, projectID string) ([]model.Message, error)
	PostMessage(ctx context.Context, scope model.Scope, projectID, content string, internal bool) (*model.Message, error)
	ListRecentMessages(ctx context.Context, scope model.Scope, limit, offset int) ([]model.RecentMessage, int, error)

	ListFiles(ctx context.Context, scope model.Scope, projectID string) ([]model.FileRecord, error)
	UploadFile(ctx context.Context, scope model.Scope, projectID, name, mimeType string, body io.Reader) (*model.FileRecord, error)
	FileDownloadURL(ctx context.Context, scope model.Scope, fileID string) (*model.SignedURL, error)

	ListInvoices(ctx context.Context, scope model.Scope, projectID string) ([]model.Invoice, error)
	ListAllInvoices(ctx context.Context, scope model.Scope) ([]model.InvoiceListItem, error)
	CreateInvoice(ctx context.Context, scope model.Scope, in service.CreateInvoiceInput) (*model.Invoice, error)
	InvoiceSummary(ctx context.Context, scope model.Scope, projectID *string) (*model.InvoiceSummary, error)

	DashboardStats(ctx context.Context, scope model.Scope) (*model.DashboardStats, error)
	GetProfile(ctx context.Context, scope model.Scope) (*model.Profile, error)
	UpdateProfile(ctx context.Context, scope model.Scope, in service.UpdateProfileInput) (*model.Profile, error)
	PortalBranding(ctx context.Context, scope model.Scope) (*service.PortalOverview, error)
}

// PortalTokens manages the owner side of portal access.
type PortalTokens interface {
	Issue(ctx context.Context, scope model.Scope, clientID string, expiresAt *time.Time) (*model.PortalToken, string, error)
	Find(ctx context.Context, scope model.Scope, clientID string) (*model.PortalToken, error)
	Revoke(ctx context.Context, scope model.Scope, clientID string) error
}

var _ Gateway = (*service.Gateway)(nil)
