package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/repository"
	"github.com/handoff/handoff-server/internal/storage"
	"github.com/handoff/handoff-server/internal/util"
)

// URLSigner issues short-lived download URLs for stored objects.
type URLSigner interface {
	Sign(path, name string) (model.SignedURL, error)
}

// Gateway performs every read and write on behalf of a Scope. Rows outside
// the scope fail with PermissionDenied, rows that do not exist with NotFound.
type Gateway struct {
	projects repository.ProjectRepository
	clients  repository.ClientRepository
	messages repository.MessageRepository
	files    repository.FileRepository
	invoices repository.InvoiceRepository
	profiles repository.ProfileRepository
	store    storage.ObjectStore
	signer   URLSigner
}

type GatewayDeps struct {
	Projects repository.ProjectRepository
	Clients  repository.ClientRepository
	Messages repository.MessageRepository
	Files    repository.FileRepository
	Invoices repository.InvoiceRepository
	Profiles repository.ProfileRepository
	Store    storage.ObjectStore
	Signer   URLSigner
}

func NewGateway(deps GatewayDeps) *Gateway {
	return &Gateway{
		projects: deps.Projects,
		clients:  deps.Clients,
		messages: deps.Messages,
		files:    deps.Files,
		invoices: deps.Invoices,
		profiles: deps.Profiles,
		store:    deps.Store,
		signer:   deps.Signer,
	}
}

type CreateProjectInput struct {
	Name        string
	Description *string
	ClientID    *string
	Status      model.ProjectStatus
	DueDate     *time.Time
	Budget      *decimal.Decimal
}

type CreateClientInput struct {
	Name    string
	Email   *string
	Company *string
}

type CreateInvoiceInput struct {
	ProjectID   *string
	ClientID    *string
	Amount      decimal.Decimal
	Currency    string
	Status      model.InvoiceStatus
	Description *string
	DueDate     *time.Time
}

type UpdateProfileInput struct {
	FullName    *string
	OrgName     *string
	OrgSlug     *string
	BrandColor  *string
	AccountType *model.AccountType
	Role        *string
	Onboarded   *bool
}

// PortalOverview is the header of a portal page.
type PortalOverview struct {
	Branding model.Branding      `json:"branding"`
	Client   model.ClientSummary `json:"client"`
}

var brandColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func requireOwner(scope model.Scope, resource string) error {
	if !scope.IsOwner() {
		return apperrors.Forbidden(resource)
	}
	return nil
}

// Projects

func (g *Gateway) ListProjects(ctx context.Context, scope model.Scope) ([]model.Project, error) {
	projects, err := g.projects.List(ctx, scope)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return projects, nil
}

func (g *Gateway) GetProject(ctx context.Context, scope model.Scope, id string) (*model.Project, error) {
	if !util.IsValidUUID(id) {
		return nil, apperrors.NotFound("Project")
	}
	project, err := g.projects.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if project == nil {
		return nil, apperrors.NotFound("Project")
	}
	if !project.InScopeOf(scope) {
		return nil, apperrors.Forbidden("Project")
	}
	return project, nil
}

func (g *Gateway) CreateProject(ctx context.Context, scope model.Scope, in CreateProjectInput) (*model.Project, error) {
	if err := requireOwner(scope, "Project"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	status := in.Status
	if status == "" {
		status = model.ProjectStatusActive
	}
	if !util.IsValidEnum(status, model.ProjectStatuses) {
		return nil, apperrors.InvalidInput("status", "unknown project status")
	}
	budget := decimal.NullDecimal{}
	if in.Budget != nil {
		if in.Budget.IsNegative() {
			return nil, apperrors.InvalidInput("budget", "must not be negative")
		}
		budget = decimal.NewNullDecimal(*in.Budget)
	}
	if in.ClientID != nil {
		if _, err := g.GetClient(ctx, scope, *in.ClientID); err != nil {
			return nil, err
		}
	}

	project, err := g.projects.Create(ctx, model.CreateProjectParams{
		OwnerUserID: scope.OwnerUserID,
		ClientID:    in.ClientID,
		Name:        name,
		Description: in.Description,
		Status:      status,
		DueDate:     in.DueDate,
		Budget:      budget,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().Str("ownerUserId", scope.OwnerUserID).Str("projectId", project.ID).Msg("project created")
	return project, nil
}

func (g *Gateway) UpdateProjectStatus(ctx context.Context, scope model.Scope, id string, status model.ProjectStatus) (*model.Project, error) {
	if err := requireOwner(scope, "Project"); err != nil {
		return nil, err
	}
	if !util.IsValidEnum(status, model.ProjectStatuses) {
		return nil, apperrors.InvalidInput("status", "unknown project status")
	}
	if _, err := g.GetProject(ctx, scope, id); err != nil {
		return nil, err
	}
	project, err := g.projects.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if project == nil {
		return nil, apperrors.NotFound("Project")
	}
	return project, nil
}

// Clients

func (g *Gateway) ListClients(ctx context.Context, scope model.Scope) ([]model.Client, error) {
	if err := requireOwner(scope, "Client list"); err != nil {
		return nil, err
	}
	clients, err := g.clients.ListByOwner(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return clients, nil
}

// GetClient returns a client the scope may see: any of the owner's, or the portal's own.
func (g *Gateway) GetClient(ctx context.Context, scope model.Scope, id string) (*model.Client, error) {
	if !util.IsValidUUID(id) {
		return nil, apperrors.NotFound("Client")
	}
	client, err := g.clients.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		return nil, apperrors.NotFound("Client")
	}
	if client.OwnerUserID != scope.OwnerUserID || (scope.IsPortal() && client.ID != scope.ClientID) {
		return nil, apperrors.Forbidden("Client")
	}
	return client, nil
}

func (g *Gateway) CreateClient(ctx context.Context, scope model.Scope, in CreateClientInput) (*model.Client, error) {
	if err := requireOwner(scope, "Client"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}

	client, err := g.clients.Create(ctx, model.CreateClientParams{
		OwnerUserID: scope.OwnerUserID,
		Name:        name,
		Email:       in.Email,
		Company:     in.Company,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().Str("ownerUserId", scope.OwnerUserID).Str("clientId", client.ID).Msg("client created")
	return client, nil
}

// Messages

func (g *Gateway) ListMessages(ctx context.Context, scope model.Scope, projectID string) ([]model.Message, error) {
	if _, err := g.GetProject(ctx, scope, projectID); err != nil {
		return nil, err
	}
	messages, err := g.messages.ListByProject(ctx, scope, projectID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return messages, nil
}

// PostMessage appends a message. Portal authors are stored with a nil sender.
func (g *Gateway) PostMessage(ctx context.Context, scope model.Scope, projectID, content string, internal bool) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if internal && scope.IsPortal() {
		return nil, apperrors.Forbidden("Internal message")
	}
	if _, err := g.GetProject(ctx, scope, projectID); err != nil {
		return nil, err
	}

	msg, err := g.messages.Create(ctx, model.CreateMessageParams{
		ProjectID:  projectID,
		SenderID:   scope.SenderID(),
		Content:    content,
		IsInternal: internal,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msg, nil
}

func (g *Gateway) ListRecentMessages(ctx context.Context, scope model.Scope, limit, offset int) ([]model.RecentMessage, int, error) {
	if err := requireOwner(scope, "Message list"); err != nil {
		return nil, 0, err
	}
	messages, total, err := g.messages.ListRecent(ctx, scope.OwnerUserID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return messages, total, nil
}

// Files

func (g *Gateway) ListFiles(ctx context.Context, scope model.Scope, projectID string) ([]model.FileRecord, error) {
	if _, err := g.GetProject(ctx, scope, projectID); err != nil {
		return nil, err
	}
	files, err := g.files.ListByProject(ctx, scope, projectID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return files, nil
}

// UploadFile stores the payload first and records metadata only after the upload succeeded.
func (g *Gateway) UploadFile(
	ctx context.Context,
	scope model.Scope,
	projectID, name, mimeType string,
	body io.Reader,
) (*model.FileRecord, error) {
	if err := requireOwner(scope, "File"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.MissingRequired("file name")
	}
	if _, err := g.GetProject(ctx, scope, projectID); err != nil {
		return nil, err
	}

	path := storage.ObjectPath(scope.OwnerUserID, projectID, name)
	size, err := g.store.Put(ctx, path, body)
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	var mime *string
	if mimeType != "" {
		mime = &mimeType
	}
	file, err := g.files.Create(ctx, model.CreateFileParams{
		ProjectID:   projectID,
		UploadedBy:  scope.SenderID(),
		Name:        util.SanitizeFileName(name),
		StoragePath: path,
		SizeBytes:   &size,
		MimeType:    mime,
	})
	if err != nil {
		if delErr := g.store.Delete(ctx, path); delErr != nil {
			log.Warn().Err(delErr).Str("path", path).Msg("failed to remove orphaned object")
		}
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("projectId", projectID).
		Str("fileId", file.ID).
		Int64("sizeBytes", size).
		Msg("file uploaded")
	return file, nil
}

// FileDownloadURL signs a fresh URL on every call.
func (g *Gateway) FileDownloadURL(ctx context.Context, scope model.Scope, fileID string) (*model.SignedURL, error) {
	if !util.IsValidUUID(fileID) {
		return nil, apperrors.NotFound("File")
	}
	file, err := g.files.FindByID(ctx, fileID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if file == nil {
		return nil, apperrors.NotFound("File")
	}
	if _, err := g.GetProject(ctx, scope, file.ProjectID); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeForbidden) {
			return nil, apperrors.Forbidden("File")
		}
		return nil, err
	}

	signed, err := g.signer.Sign(file.StoragePath, file.Name)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return &signed, nil
}

// Invoices

func (g *Gateway) ListInvoices(ctx context.Context, scope model.Scope, projectID string) ([]model.Invoice, error) {
	if _, err := g.GetProject(ctx, scope, projectID); err != nil {
		return nil, err
	}
	invoices, err := g.invoices.List(ctx, scope, &projectID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return invoices, nil
}

func (g *Gateway) ListAllInvoices(ctx context.Context, scope model.Scope) ([]model.InvoiceListItem, error) {
	if err := requireOwner(scope, "Invoice list"); err != nil {
		return nil, err
	}
	invoices, err := g.invoices.ListWithNames(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return invoices, nil
}

// CreateInvoice defaults the client to the project's client.
func (g *Gateway) CreateInvoice(ctx context.Context, scope model.Scope, in CreateInvoiceInput) (*model.Invoice, error) {
	if err := requireOwner(scope, "Invoice"); err != nil {
		return nil, err
	}
	if in.Amount.IsZero() {
		return nil, apperrors.MissingRequired("amount")
	}
	if in.Amount.IsNegative() {
		return nil, apperrors.InvalidInput("amount", "must not be negative")
	}
	status := in.Status
	if status == "" {
		status = model.InvoiceStatusDraft
	}
	if !util.IsValidEnum(status, model.InvoiceStatuses) {
		return nil, apperrors.InvalidInput("status", "unknown invoice status")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = model.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperrors.InvalidInput("currency", "must be a 3-letter code")
	}

	clientID := in.ClientID
	if in.ProjectID != nil {
		project, err := g.GetProject(ctx, scope, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		if clientID == nil {
			clientID = project.ClientID
		}
	}
	if clientID != nil {
		if _, err := g.GetClient(ctx, scope, *clientID); err != nil {
			return nil, err
		}
	}

	invoice, err := g.invoices.Create(ctx, model.CreateInvoiceParams{
		OwnerUserID: scope.OwnerUserID,
		ProjectID:   in.ProjectID,
		ClientID:    clientID,
		Amount:      in.Amount,
		Currency:    currency,
		Status:      status,
		Description: in.Description,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return invoice, nil
}

// InvoiceSummary is recomputed from the current invoice set on every call.
// A nil projectID summarizes everything the scope can see.
func (g *Gateway) InvoiceSummary(ctx context.Context, scope model.Scope, projectID *string) (*model.InvoiceSummary, error) {
	if projectID != nil {
		if _, err := g.GetProject(ctx, scope, *projectID); err != nil {
			return nil, err
		}
	}
	invoices, err := g.invoices.List(ctx, scope, projectID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	summary := model.SummarizeInvoices(invoices)
	return &summary, nil
}

// Dashboard

func (g *Gateway) DashboardStats(ctx context.Context, scope model.Scope) (*model.DashboardStats, error) {
	if err := requireOwner(scope, "Dashboard"); err != nil {
		return nil, err
	}
	total, active, err := g.projects.CountByOwner(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	clients, err := g.clients.CountByOwner(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	outstanding, revenue, err := g.invoices.OwnerTotals(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &model.DashboardStats{
		ProjectCount:        total,
		ActiveProjectCount:  active,
		ClientCount:         clients,
		PendingInvoiceCount: outstanding,
		Revenue:             revenue,
	}, nil
}

// Profile

func (g *Gateway) GetProfile(ctx context.Context, scope model.Scope) (*model.Profile, error) {
	if err := requireOwner(scope, "Profile"); err != nil {
		return nil, err
	}
	profile, err := g.profiles.FindByID(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Profile")
	}
	return profile, nil
}

// UpdateProfile derives the org slug from the org name, or the full name, when none is given.
func (g *Gateway) UpdateProfile(ctx context.Context, scope model.Scope, in UpdateProfileInput) (*model.Profile, error) {
	if err := requireOwner(scope, "Profile"); err != nil {
		return nil, err
	}
	if in.BrandColor != nil && !brandColorPattern.MatchString(*in.BrandColor) {
		return nil, apperrors.InvalidInput("brandColor", "must be a hex color like #6366f1")
	}
	if in.AccountType != nil && *in.AccountType != model.AccountTypeFreelancer && *in.AccountType != model.AccountTypeAgency {
		return nil, apperrors.InvalidInput("accountType", "must be freelancer or agency")
	}

	slug := in.OrgSlug
	if slug != nil {
		s := util.Slugify(*slug)
		slug = &s
	} else if in.OrgName != nil {
		source := *in.OrgName
		if strings.TrimSpace(source) == "" && in.FullName != nil {
			source = *in.FullName
		}
		if s := util.Slugify(source); s != "" {
			slug = &s
		}
	}
	if slug != nil && *slug != "" {
		taken, err := g.profiles.SlugTaken(ctx, *slug, scope.OwnerUserID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if taken {
			return nil, apperrors.AlreadyExists("Organization slug")
		}
	}

	profile, err := g.profiles.Update(ctx, scope.OwnerUserID, model.UpdateProfileParams{
		FullName:    in.FullName,
		OrgName:     in.OrgName,
		OrgSlug:     slug,
		BrandColor:  in.BrandColor,
		AccountType: in.AccountType,
		Role:        in.Role,
		Onboarded:   in.Onboarded,
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperrors.AlreadyExists("Organization slug")
		}
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Profile")
	}
	return profile, nil
}

// PortalBranding returns the owner's branding and the viewing client's name.
func (g *Gateway) PortalBranding(ctx context.Context, scope model.Scope) (*PortalOverview, error) {
	if !scope.IsPortal() {
		return nil, apperrors.Forbidden("Portal")
	}
	profile, err := g.profiles.FindByID(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	client, err := g.GetClient(ctx, scope, scope.ClientID)
	if err != nil {
		return nil, err
	}

	overview := &PortalOverview{
		Branding: model.Branding{BrandColor: model.DefaultBrandColor},
		Client:   model.ClientSummary{Name: client.Name, Company: client.Company},
	}
	if profile != nil {
		overview.Branding = profile.Branding()
	}
	return overview, nil
}
