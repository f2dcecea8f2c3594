package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/service"
)

// PortalHandler serves a client's portal. Routes are mounted under
// /portal/{token} behind the portal auth middleware, so the scope is already
// narrowed to one (owner, client) pair.
type PortalHandler struct {
	gateway Gateway
	events  http.HandlerFunc
}

func NewPortalHandler(gateway Gateway, events http.HandlerFunc) *PortalHandler {
	return &PortalHandler{
		gateway: gateway,
		events:  events,
	}
}

func (h *PortalHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/api", h.Overview)
	r.Get("/api/summary", h.InvoiceSummary)
	r.Get("/api/projects/{id}/messages", h.ListMessages)
	r.Post("/api/projects/{id}/messages", h.PostMessage)
	r.Get("/api/projects/{id}/files", h.ListFiles)
	r.Get("/api/projects/{id}/invoices", h.ListInvoices)
	r.Get("/api/files/{id}/download", h.DownloadFile)

	if h.events != nil {
		r.Get("/events", h.events)
	}

	return r
}

type portalOverviewResponse struct {
	*service.PortalOverview
	Projects []model.Project `json:"projects"`
}

// GET /portal/{token}/api
func (h *PortalHandler) Overview(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)

	overview, err := h.gateway.PortalBranding(r.Context(), scope)
	if err != nil {
		respond(w, r, err)
		return
	}
	projects, err := h.gateway.ListProjects(r.Context(), scope)
	if err != nil {
		respond(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, portalOverviewResponse{
		PortalOverview: overview,
		Projects:       projects,
	})
}

func (h *PortalHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	listMessages(w, r, h.gateway)
}

func (h *PortalHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	postMessage(w, r, h.gateway)
}

func (h *PortalHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	listFiles(w, r, h.gateway)
}

func (h *PortalHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	listInvoices(w, r, h.gateway)
}

func (h *PortalHandler) InvoiceSummary(w http.ResponseWriter, r *http.Request) {
	invoiceSummary(w, r, h.gateway)
}

func (h *PortalHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	downloadFile(w, r, h.gateway)
}
