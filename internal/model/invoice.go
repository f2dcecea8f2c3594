package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

type Invoice struct {
	ID          string          `db:"id" json:"id"`
	OwnerUserID string          `db:"user_id" json:"ownerUserId"`
	ProjectID   *string         `db:"project_id" json:"projectId,omitempty"`
	ClientID    *string         `db:"client_id" json:"clientId,omitempty"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Currency    string          `db:"currency" json:"currency"`
	Status      InvoiceStatus   `db:"status" json:"status"`
	Description *string         `db:"description" json:"description,omitempty"`
	DueDate     *time.Time      `db:"due_date" json:"dueDate,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

type CreateInvoiceParams struct {
	OwnerUserID string
	ProjectID   *string
	ClientID    *string
	Amount      decimal.Decimal
	Currency    string
	Status      InvoiceStatus
	Description *string
	DueDate     *time.Time
}

// InvoiceListItem carries the names the invoice list renders inline.
type InvoiceListItem struct {
	Invoice
	ProjectName *string `db:"project_name" json:"projectName,omitempty"`
	ClientName  *string `db:"client_name" json:"clientName,omitempty"`
}

// InvoiceSummary is always derived from the current invoice set.
type InvoiceSummary struct {
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
	Count   int             `json:"count"`
}

// SummarizeInvoices totals every invoice in the set, whatever its status.
// Pending is total minus paid.
func SummarizeInvoices(invoices []Invoice) InvoiceSummary {
	s := InvoiceSummary{Total: decimal.Zero, Paid: decimal.Zero}
	for _, inv := range invoices {
		s.Count++
		s.Total = s.Total.Add(inv.Amount)
		if inv.Status == InvoiceStatusPaid {
			s.Paid = s.Paid.Add(inv.Amount)
		}
	}
	s.Pending = s.Total.Sub(s.Paid)
	return s
}

// DashboardStats feeds the owner's overview cards.
type DashboardStats struct {
	ProjectCount        int             `json:"projectCount"`
	ActiveProjectCount  int             `json:"activeProjectCount"`
	ClientCount         int             `json:"clientCount"`
	PendingInvoiceCount int             `json:"pendingInvoiceCount"`
	Revenue             decimal.Decimal `json:"revenue"`
}
