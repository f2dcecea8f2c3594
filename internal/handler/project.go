package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Project-scoped routes shared by the dashboard and the portal. The scope in
// the request context decides what the caller may see.

func listMessages(w http.ResponseWriter, r *http.Request, gw Gateway) {
	messages, err := gw.ListMessages(r.Context(), scopeOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type postMessageRequest struct {
	Content  string `json:"content" validate:"required,max=10000"`
	Internal bool   `json:"internal"`
}

func postMessage(w http.ResponseWriter, r *http.Request, gw Gateway) {
	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	msg, err := gw.PostMessage(r.Context(), scopeOf(r), chi.URLParam(r, "id"), req.Content, req.Internal)
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func listFiles(w http.ResponseWriter, r *http.Request, gw Gateway) {
	files, err := gw.ListFiles(r.Context(), scopeOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func downloadFile(w http.ResponseWriter, r *http.Request, gw Gateway) {
	signed, err := gw.FileDownloadURL(r.Context(), scopeOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func listInvoices(w http.ResponseWriter, r *http.Request, gw Gateway) {
	invoices, err := gw.ListInvoices(r.Context(), scopeOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

// invoiceSummary covers every visible invoice, or one project's with ?project=.
func invoiceSummary(w http.ResponseWriter, r *http.Request, gw Gateway) {
	var projectID *string
	if p := r.URL.Query().Get("project"); p != "" {
		projectID = &p
	}

	summary, err := gw.InvoiceSummary(r.Context(), scopeOf(r), projectID)
	if err != nil {
		respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
