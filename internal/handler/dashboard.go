package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/handoff/handoff-server/internal/audit"
	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/middleware"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/service"
)

// DashboardHandler serves the owner's workspace. Routes are mounted behind
// the session middleware, so every request carries an owner scope.
type DashboardHandler struct {
	gateway        Gateway
	tokens         PortalTokens
	events         http.HandlerFunc
	maxUploadBytes int64
}

func NewDashboardHandler(gateway Gateway, tokens PortalTokens, events http.HandlerFunc, maxUploadBytes int64) *DashboardHandler {
	return &DashboardHandler{
		gateway:        gateway,
		tokens:         tokens,
		events:         events,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/stats", h.Stats)
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)

	// Clients
	r.Get("/clients", h.ListClients)
	r.Post("/clients", h.CreateClient)
	r.Get("/clients/{id}", h.GetClient)
	r.Get("/clients/{id}/portal-token", h.GetPortalToken)
	r.Post("/clients/{id}/portal-token", h.IssuePortalToken)
	r.Delete("/clients/{id}/portal-token", h.RevokePortalToken)

	// Projects
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Patch("/projects/{id}/status", h.UpdateProjectStatus)
	r.Get("/projects/{id}/messages", h.ListMessages)
	r.Post("/projects/{id}/messages", h.PostMessage)
	r.Get("/projects/{id}/files", h.ListFiles)
	r.Post("/projects/{id}/files", h.UploadFile)
	r.Get("/projects/{id}/invoices", h.ListInvoices)
	r.Post("/projects/{id}/invoices", h.CreateProjectInvoice)

	// Cross-project views
	r.Get("/invoices", h.ListAllInvoices)
	r.Post("/invoices", h.CreateInvoice)
	r.Get("/invoices/summary", h.InvoiceSummary)
	r.Get("/messages/recent", h.RecentMessages)
	r.Get("/files/{id}/download", h.DownloadFile)

	if h.events != nil {
		r.Get("/events", h.events)
	}

	return r
}

func scopeOf(r *http.Request) model.Scope {
	scope, _ := middleware.GetScope(r.Context())
	return scope
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gateway.DashboardStats(r.Context(), scopeOf(r))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Profile

func (h *DashboardHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.gateway.GetProfile(r.Context(), scopeOf(r))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName    *string `json:"fullName" validate:"omitempty,max=200"`
	OrgName     *string `json:"orgName" validate:"omitempty,max=200"`
	OrgSlug     *string `json:"orgSlug" validate:"omitempty,max=100"`
	BrandColor  *string `json:"brandColor" validate:"omitempty,hexcolor"`
	AccountType *string `json:"accountType" validate:"omitempty,oneof=freelancer agency"`
	Role        *string `json:"role" validate:"omitempty,max=100"`
	Onboarded   *bool   `json:"onboarded"`
}

func (h *DashboardHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	in := service.UpdateProfileInput{
		FullName:   req.FullName,
		OrgName:    req.OrgName,
		OrgSlug:    req.OrgSlug,
		BrandColor: req.BrandColor,
		Role:       req.Role,
		Onboarded:  req.Onboarded,
	}
	if req.AccountType != nil {
		accountType := model.AccountType(*req.AccountType)
		in.AccountType = &accountType
	}

	profile, err := h.gateway.UpdateProfile(r.Context(), scopeOf(r), in)
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Clients

func (h *DashboardHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.gateway.ListClients(r.Context(), scopeOf(r))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

type createClientRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Company *string `json:"company" validate:"omitempty,max=200"`
}

func (h *DashboardHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	client, err := h.gateway.CreateClient(r.Context(), scopeOf(r), service.CreateClientInput{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
	})
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (h *DashboardHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.gateway.GetClient(r.Context(), scopeOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// Portal tokens

type issuePortalTokenRequest struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}

type issuePortalTokenResponse struct {
	PortalToken *model.PortalToken `json:"portalToken"`
	Token       string             `json:"token"`
	PortalPath  string             `json:"portalPath"`
}

func (h *DashboardHandler) GetPortalToken(w http.ResponseWriter, r *http.Request) {
	pt, err := h.tokens.Find(r.Context(), scopeOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

// IssuePortalToken returns the plaintext token once. Only its hash is kept.
func (h *DashboardHandler) IssuePortalToken(w http.ResponseWriter, r *http.Request) {
	var req issuePortalTokenRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	scope := scopeOf(r)
	pt, token, err := h.tokens.Issue(r.Context(), scope, chi.URLParam(r, "id"), req.ExpiresAt)
	if err != nil {
		respond(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:        audit.EventPortalTokenIssue,
		OwnerUserID: scope.OwnerUserID,
		ClientID:    pt.ClientID,
	})
	writeJSON(w, http.StatusCreated, issuePortalTokenResponse{
		PortalToken: pt,
		Token:       token,
		PortalPath:  "/portal/" + token,
	})
}

func (h *DashboardHandler) RevokePortalToken(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	clientID := chi.URLParam(r, "id")
	if err := h.tokens.Revoke(r.Context(), scope, clientID); err != nil {
		respond(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:        audit.EventPortalTokenRevoke,
		OwnerUserID: scope.OwnerUserID,
		ClientID:    clientID,
	})
	writeJSON(w, http.StatusOK, okResponse)
}

// Projects

func (h *DashboardHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.gateway.ListProjects(r.Context(), scopeOf(r))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

type createProjectRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	ClientID    *string          `json:"clientId" validate:"omitempty,uuid"`
	Status      string           `json:"status" validate:"omitempty,oneof=draft active completed archived on_hold"`
	DueDate     *time.Time       `json:"dueDate"`
	Budget      *decimal.Decimal `json:"budget"`
}

func (h *DashboardHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	project, err := h.gateway.CreateProject(r.Context(), scopeOf(r), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		ClientID:    req.ClientID,
		Status:      model.ProjectStatus(req.Status),
		DueDate:     req.DueDate,
		Budget:      req.Budget,
	})
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *DashboardHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.gateway.GetProject(r.Context(), scopeOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type updateProjectStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *DashboardHandler) UpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	var req updateProjectStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	project, err := h.gateway.UpdateProjectStatus(r.Context(), scopeOf(r), chi.URLParam(r, "id"), model.ProjectStatus(req.Status))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Messages

func (h *DashboardHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	listMessages(w, r, h.gateway)
}

func (h *DashboardHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	postMessage(w, r, h.gateway)
}

func (h *DashboardHandler) RecentMessages(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	messages, total, err := h.gateway.ListRecentMessages(r.Context(), scopeOf(r), p.Limit, p.Offset)
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[model.RecentMessage]{
		Items:  messages,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}

// Files

func (h *DashboardHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	listFiles(w, r, h.gateway)
}

// UploadFile streams the "file" part of a multipart body into object storage.
func (h *DashboardHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		respond(w, r, apperrors.InvalidInput("file", "expected multipart/form-data"))
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			respond(w, r, apperrors.MissingRequired("file"))
			return
		}
		if err != nil {
			respond(w, r, uploadError(err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		file, err := h.gateway.UploadFile(
			r.Context(), scopeOf(r), chi.URLParam(r, "id"),
			part.FileName(), part.Header.Get("Content-Type"), part,
		)
		part.Close()
		if err != nil {
			respond(w, r, uploadError(err))
			return
		}
		writeJSON(w, http.StatusCreated, file)
		return
	}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.InvalidInput("file", "file too large")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.InvalidInput("file", "malformed multipart body")
}

func (h *DashboardHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	downloadFile(w, r, h.gateway)
}

// Invoices

func (h *DashboardHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	listInvoices(w, r, h.gateway)
}

type createInvoiceRequest struct {
	ProjectID   *string          `json:"projectId" validate:"omitempty,uuid"`
	ClientID    *string          `json:"clientId" validate:"omitempty,uuid"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency" validate:"omitempty,len=3,alpha"`
	Status      string           `json:"status" validate:"omitempty,oneof=draft sent paid overdue cancelled"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	DueDate     *time.Time       `json:"dueDate"`
}

func (req *createInvoiceRequest) input(projectID *string) (service.CreateInvoiceInput, error) {
	if req.Amount == nil || req.Amount.IsZero() {
		return service.CreateInvoiceInput{}, apperrors.MissingRequired("amount")
	}
	return service.CreateInvoiceInput{
		ProjectID:   projectID,
		ClientID:    req.ClientID,
		Amount:      *req.Amount,
		Currency:    req.Currency,
		Status:      model.InvoiceStatus(req.Status),
		Description: req.Description,
		DueDate:     req.DueDate,
	}, nil
}

// POST /invoices: project and client are both optional.
func (h *DashboardHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}
	h.createInvoice(w, r, &req, req.ProjectID)
}

// POST /projects/{id}/invoices
func (h *DashboardHandler) CreateProjectInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}
	projectID := chi.URLParam(r, "id")
	h.createInvoice(w, r, &req, &projectID)
}

func (h *DashboardHandler) createInvoice(w http.ResponseWriter, r *http.Request, req *createInvoiceRequest, projectID *string) {
	in, err := req.input(projectID)
	if err != nil {
		respond(w, r, err)
		return
	}
	invoice, err := h.gateway.CreateInvoice(r.Context(), scopeOf(r), in)
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (h *DashboardHandler) ListAllInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.gateway.ListAllInvoices(r.Context(), scopeOf(r))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *DashboardHandler) InvoiceSummary(w http.ResponseWriter, r *http.Request) {
	invoiceSummary(w, r, h.gateway)
}
