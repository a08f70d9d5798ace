package handlers

import (
	"net/http"

	"github.com/satheeshds/lexbill/models"
)

type dashboardData struct {
	TotalClients  int `json:"total_clients"`
	TotalInvoices int `json:"total_invoices"`
	DraftInvoices int `json:"draft_invoices"`

	InvoicedInclTax  models.Money `json:"invoiced_incl_tax"`
	VATCollected     models.Money `json:"vat_collected"`
	AttorneyAdvanced models.Money `json:"attorney_advanced"`
	Received         models.Money `json:"received"`
	Receivable       models.Money `json:"receivable"`

	OverdueInvoices int `json:"overdue_invoices"`

	RecentPayments []models.Payment `json:"recent_payments"`
}

// GetDashboard retrieves dashboard summary statistics
// @Summary      Get dashboard
// @Description  Get invoice counts, issued totals, VAT collected, amounts advanced by the attorney, receivables and recent payments.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  Response{data=dashboardData}
// @Router       /dashboard [get]
// @Security     BasicAuth
func GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := dashboardData{RecentPayments: []models.Payment{}}

	err := DB.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM clients),
		(SELECT COUNT(*) FROM invoices),
		(SELECT COUNT(*) FROM invoices WHERE status = 'draft')`).
		Scan(&d.TotalClients, &d.TotalInvoices, &d.DraftInvoices)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = DB.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(total_incl_tax), 0)::BIGINT,
		COALESCE(SUM(vat_amount), 0)::BIGINT,
		COALESCE(SUM(attorney_advanced_amount), 0)::BIGINT,
		COALESCE(SUM(client_payable_amount), 0)::BIGINT
		FROM invoices WHERE status NOT IN ('draft', 'cancelled')`).
		Scan(&d.InvoicedInclTax, &d.VATCollected, &d.AttorneyAdvanced, &d.Receivable)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(p.amount), 0)::BIGINT
		FROM payments p JOIN invoices i ON p.invoice_id = i.id
		WHERE i.status NOT IN ('draft', 'cancelled')`).Scan(&d.Received)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.Receivable -= d.Received

	err = DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices
		WHERE status IN ('sent', 'partial') AND due_date < CURRENT_DATE`).Scan(&d.OverdueInvoices)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows, err := DB.QueryContext(ctx, paymentSelectQuery+" ORDER BY p.created_at DESC LIMIT 5")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		d.RecentPayments = append(d.RecentPayments, p)
	}

	writeJSON(w, http.StatusOK, d)
}
