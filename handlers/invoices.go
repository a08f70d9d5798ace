package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/satheeshds/lexbill/models"
	"github.com/satheeshds/lexbill/pricing"
)

var (
	errInvoiceNotFound = errors.New("invoice not found")
	errInvoiceNotDraft = errors.New("invoice is not a draft")
	errEmptyInvoice    = errors.New("invoice has no lines")
)

// draftError marks a request whose lines could not be priced as submitted.
type draftError struct{ err error }

func (e draftError) Error() string { return e.err.Error() }
func (e draftError) Unwrap() error { return e.err }

const invoiceSelectQuery = `SELECT i.id, i.client_id, i.dossier_ref, i.invoice_number,
		to_char(i.issue_date, 'YYYY-MM-DD'), to_char(i.due_date, 'YYYY-MM-DD'),
		i.status, i.jurisdiction, i.discount_kind, i.discount_value, i.discount_reason,
		i.subtotal_excl_tax, i.vat_rate, i.vat_amount, i.total_incl_tax, i.discount_amount,
		i.attorney_advanced_amount, i.client_payable_amount, i.notes, i.created_at, i.updated_at,
		c.name,
		COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.invoice_id = i.id), 0)::BIGINT
		FROM invoices i
		LEFT JOIN clients c ON i.client_id = c.id`

const invoiceLineSelectQuery = `SELECT id, position, type, description, quantity, original_unit_price, unit_price,
		line_total, vat_applicable, price_overridden, override_reason, paid_by_attorney
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`

func scanInvoice(scanner interface{ Scan(...any) error }) (models.Invoice, error) {
	var inv models.Invoice
	err := scanner.Scan(&inv.ID, &inv.ClientID, &inv.DossierRef, &inv.InvoiceNumber,
		&inv.IssueDate, &inv.DueDate,
		&inv.Status, &inv.Jurisdiction, &inv.DiscountKind, &inv.DiscountValue, &inv.DiscountReason,
		&inv.SubtotalExclTax, &inv.VATRate, &inv.VATAmount, &inv.TotalInclTax, &inv.DiscountAmount,
		&inv.AttorneyAdvancedAmount, &inv.ClientPayableAmount, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
		&inv.ClientName, &inv.Paid)
	if err == nil {
		inv.Outstanding = inv.ClientPayableAmount - inv.Paid
	}
	return inv, err
}

func loadInvoiceLines(ctx context.Context, q queryer, invoiceID int) ([]models.InvoiceLine, error) {
	rows, err := q.QueryContext(ctx, invoiceLineSelectQuery, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.InvoiceLine
	for rows.Next() {
		var l models.InvoiceLine
		if err := rows.Scan(&l.ID, &l.Position, &l.Type, &l.Description, &l.Quantity, &l.OriginalUnitPrice,
			&l.UnitPrice, &l.LineTotal, &l.VATApplicable, &l.PriceOverridden, &l.OverrideReason, &l.PaidByAttorney); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getInvoiceByID(ctx context.Context, id int) (models.Invoice, error) {
	inv, err := scanInvoice(DB.QueryRowContext(ctx, invoiceSelectQuery+" WHERE i.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inv, errInvoiceNotFound
		}
		return inv, err
	}
	inv.Lines, err = loadInvoiceLines(ctx, DB, id)
	return inv, err
}

// priceInput prices a validated input against its jurisdiction's catalog.
func priceInput(ctx context.Context, input *models.InvoiceInput) (pricing.InvoiceComputation, error) {
	engine, err := engineFor(ctx, input.Jurisdiction)
	if err != nil {
		return pricing.InvoiceComputation{}, fmt.Errorf("loading tariffs: %w", err)
	}
	draft, err := input.BuildDraft(engine)
	if err != nil {
		return pricing.InvoiceComputation{}, draftError{err}
	}
	return draft.Compute(), nil
}

func decodeInvoiceInput(w http.ResponseWriter, r *http.Request) (*models.InvoiceInput, bool) {
	var input models.InvoiceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	if msg := input.Validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return &input, true
}

func writePricingError(w http.ResponseWriter, err error) {
	var de draftError
	if errors.As(err, &de) {
		writeError(w, http.StatusBadRequest, de.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// ListInvoices lists all invoices
// @Summary      List invoices
// @Description  Get a list of invoices with totals and payment status. Lines are not included.
// @Tags         invoices
// @Produce      json
// @Param        status       query     string  false  "Filter by status"
// @Param        client_id    query     int     false  "Filter by client"
// @Param        from         query     string  false  "Issued on or after (YYYY-MM-DD)"
// @Param        to           query     string  false  "Issued on or before (YYYY-MM-DD)"
// @Param        search       query     string  false  "Search by invoice number, dossier, notes, or client name"
// @Success      200          {object}  Response{data=[]models.Invoice}
// @Router       /invoices [get]
// @Security     BasicAuth
func ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := listInvoices(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func listInvoices(r *http.Request) ([]models.Invoice, error) {
	query := invoiceSelectQuery
	var conditions []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		add("i.status = ?", s)
	}
	if cid := q.Get("client_id"); cid != "" {
		add("i.client_id = ?::BIGINT", cid)
	}
	if from := q.Get("from"); from != "" {
		add("i.issue_date >= ?::DATE", from)
	}
	if to := q.Get("to"); to != "" {
		add("i.issue_date <= ?::DATE", to)
	}
	if search := q.Get("search"); search != "" {
		add("(i.invoice_number ILIKE ? OR i.dossier_ref ILIKE ? OR i.notes ILIKE ? OR c.name ILIKE ?)", "%"+search+"%")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY i.created_at DESC"

	rows, err := DB.QueryContext(r.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ListClientInvoices lists the invoices of a client
// @Summary      List client invoices
// @Description  Get the invoices addressed to a client. Accepts the same filters as the invoice list.
// @Tags         clients
// @Produce      json
// @Param        id      path      int     true   "Client ID"
// @Param        status  query     string  false  "Filter by status"
// @Success      200     {object}  Response{data=[]models.Invoice}
// @Router       /clients/{id}/invoices [get]
// @Security     BasicAuth
func ListClientInvoices(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	q.Set("client_id", strconv.Itoa(id))
	r.URL.RawQuery = q.Encode()
	ListInvoices(w, r)
}

// GetInvoice retrieves a single invoice by ID
// @Summary      Get invoice
// @Description  Get an invoice with its priced lines and payment status.
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=models.Invoice}
// @Failure      404  {object}  Response{error=string}
// @Router       /invoices/{id} [get]
// @Security     BasicAuth
func GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := getInvoiceByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, errInvoiceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// ComputeResult is the preview of a draft invoice.
type ComputeResult struct {
	Computation pricing.InvoiceComputation `json:"computation"`
	Submission  models.InvoiceSubmission   `json:"submission"`
}

// ComputeInvoice prices a draft without saving it
// @Summary      Preview invoice
// @Description  Price the lines of a draft, apply the discount and compute VAT and client-payable totals. Nothing is stored.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        invoice  body      models.InvoiceInput  true  "Draft invoice"
// @Success      200      {object}  Response{data=ComputeResult}
// @Failure      400      {object}  Response{error=string}
// @Router       /invoices/compute [post]
// @Security     BasicAuth
func ComputeInvoice(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeInvoiceInput(w, r)
	if !ok {
		return
	}
	c, err := priceInput(r.Context(), input)
	if err != nil {
		writePricingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ComputeResult{Computation: c, Submission: models.NewInvoiceSubmission(c)})
}

// CreateInvoice creates a new draft invoice
// @Summary      Create invoice
// @Description  Price a draft invoice and store it with its lines and totals.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        invoice  body      models.InvoiceInput  true  "Invoice contents"
// @Success      201      {object}  Response{data=models.Invoice}
// @Failure      400      {object}  Response{error=string}
// @Router       /invoices [post]
// @Security     BasicAuth
func CreateInvoice(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeInvoiceInput(w, r)
	if !ok {
		return
	}
	c, err := priceInput(r.Context(), input)
	if err != nil {
		writePricingError(w, err)
		return
	}

	inv := invoiceFromInput(input, c)
	id, err := insertInvoice(r.Context(), inv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("invoice created", "id", id, "lines", len(inv.Lines), "client_payable", inv.ClientPayableAmount.String())

	created, err := getInvoiceByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to re-fetch created invoice: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateInvoice replaces a draft invoice
// @Summary      Update invoice
// @Description  Replace the details, lines and discount of a draft invoice and recompute its totals. Lines sent without an id keep the id of the stored line at the same position.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path      int                  true  "Invoice ID"
// @Param        invoice  body      models.InvoiceInput  true  "Updated invoice contents"
// @Success      200      {object}  Response{data=models.Invoice}
// @Failure      400      {object}  Response{error=string}
// @Failure      404      {object}  Response{error=string}
// @Failure      409      {object}  Response{error=string}
// @Router       /invoices/{id} [put]
// @Security     BasicAuth
func UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input, ok := decodeInvoiceInput(w, r)
	if !ok {
		return
	}
	stored, err := storedLineIDs(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	input.KeepLineIDs(stored)
	c, err := priceInput(r.Context(), input)
	if err != nil {
		writePricingError(w, err)
		return
	}

	inv := invoiceFromInput(input, c)
	inv.ID = id
	if err := replaceDraft(r.Context(), inv); err != nil {
		switch {
		case errors.Is(err, errInvoiceNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, errInvoiceNotDraft):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	updated, err := getInvoiceByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to re-fetch updated invoice: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// IssueInvoice sends a draft invoice
// @Summary      Issue invoice
// @Description  Move a draft invoice to sent. Its lines and totals are frozen from then on.
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=models.Invoice}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /invoices/{id}/issue [post]
// @Security     BasicAuth
func IssueInvoice(w http.ResponseWriter, r *http.Request) {
	transition(w, r, func(inv models.Invoice) (string, error) {
		if inv.Status != models.StatusDraft {
			return "", errInvoiceNotDraft
		}
		if len(inv.Lines) == 0 {
			return "", errEmptyInvoice
		}
		return models.StatusSent, nil
	})
}

// CancelInvoice cancels an invoice
// @Summary      Cancel invoice
// @Description  Cancel an invoice that has not received any payment.
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=models.Invoice}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /invoices/{id}/cancel [post]
// @Security     BasicAuth
func CancelInvoice(w http.ResponseWriter, r *http.Request) {
	transition(w, r, func(inv models.Invoice) (string, error) {
		if inv.Paid > 0 {
			return "", errors.New("invoice has payments, remove them first")
		}
		if inv.Status == models.StatusCancelled {
			return "", errors.New("invoice is already cancelled")
		}
		return models.StatusCancelled, nil
	})
}

func transition(w http.ResponseWriter, r *http.Request, next func(models.Invoice) (string, error)) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := getInvoiceByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, errInvoiceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	status, err := next(inv)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if _, err := DB.ExecContext(r.Context(), `UPDATE invoices SET status = $1,
		issue_date = CASE WHEN $1 = 'sent' THEN COALESCE(issue_date, CURRENT_DATE) ELSE issue_date END,
		updated_at = now() WHERE id = $2`, status, id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("invoice status changed", "id", id, "from", inv.Status, "to", status)

	updated, err := getInvoiceByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to re-fetch invoice: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteInvoice deletes an invoice
// @Summary      Delete invoice
// @Description  Remove a draft or cancelled invoice with its lines.
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=map[string]string}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /invoices/{id} [delete]
// @Security     BasicAuth
func DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status string
	err = DB.QueryRowContext(r.Context(), "SELECT status FROM invoices WHERE id = $1", id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, errInvoiceNotFound.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if status != models.StatusDraft && status != models.StatusCancelled {
		writeError(w, http.StatusConflict, "only draft or cancelled invoices can be deleted")
		return
	}

	if _, err := DB.ExecContext(r.Context(), "DELETE FROM invoices WHERE id = $1", id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func invoiceFromInput(input *models.InvoiceInput, c pricing.InvoiceComputation) models.Invoice {
	inv := models.Invoice{
		ClientID:      input.ClientID,
		DossierRef:    input.DossierRef,
		InvoiceNumber: input.InvoiceNumber,
		IssueDate:     input.IssueDate,
		DueDate:       input.DueDate,
		Status:        models.StatusDraft,
		Jurisdiction:  input.Jurisdiction,
		Notes:         input.Notes,
	}
	if d := input.Discount; d != nil {
		inv.DiscountKind = lo.ToPtr(string(d.Kind))
		inv.DiscountValue = lo.ToPtr(d.Value.String())
		if d.Reason != "" {
			inv.DiscountReason = lo.ToPtr(d.Reason)
		}
	}
	inv.ApplyComputation(c)
	return inv
}

func insertInvoice(ctx context.Context, inv models.Invoice) (int, error) {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	var id int
	err = tx.QueryRowContext(ctx, `INSERT INTO invoices (client_id, dossier_ref, invoice_number, issue_date, due_date,
		status, jurisdiction, discount_kind, discount_value, discount_reason,
		subtotal_excl_tax, vat_rate, vat_amount, total_incl_tax, discount_amount,
		attorney_advanced_amount, client_payable_amount, notes)
		VALUES ($1, $2, $3, $4::DATE, $5::DATE, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`,
		inv.ClientID, inv.DossierRef, inv.InvoiceNumber, inv.IssueDate, inv.DueDate,
		inv.Status, inv.Jurisdiction, inv.DiscountKind, inv.DiscountValue, inv.DiscountReason,
		inv.SubtotalExclTax, inv.VATRate, inv.VATAmount, inv.TotalInclTax, inv.DiscountAmount,
		inv.AttorneyAdvancedAmount, inv.ClientPayableAmount, inv.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting invoice: %w", err)
	}
	if err := insertLines(ctx, tx, id, inv.Lines); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func replaceDraft(ctx context.Context, inv models.Invoice) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var status string
	err = tx.QueryRowContext(ctx, "SELECT status FROM invoices WHERE id = $1 FOR UPDATE", inv.ID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errInvoiceNotFound
		}
		return err
	}
	if status != models.StatusDraft {
		return errInvoiceNotDraft
	}

	_, err = tx.ExecContext(ctx, `UPDATE invoices SET client_id = $1, dossier_ref = $2, invoice_number = $3,
		issue_date = $4::DATE, due_date = $5::DATE, jurisdiction = $6,
		discount_kind = $7, discount_value = $8, discount_reason = $9,
		subtotal_excl_tax = $10, vat_rate = $11, vat_amount = $12, total_incl_tax = $13, discount_amount = $14,
		attorney_advanced_amount = $15, client_payable_amount = $16, notes = $17, updated_at = now()
		WHERE id = $18`,
		inv.ClientID, inv.DossierRef, inv.InvoiceNumber, inv.IssueDate, inv.DueDate, inv.Jurisdiction,
		inv.DiscountKind, inv.DiscountValue, inv.DiscountReason,
		inv.SubtotalExclTax, inv.VATRate, inv.VATAmount, inv.TotalInclTax, inv.DiscountAmount,
		inv.AttorneyAdvancedAmount, inv.ClientPayableAmount, inv.Notes, inv.ID)
	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM invoice_lines WHERE invoice_id = $1", inv.ID); err != nil {
		return fmt.Errorf("clearing lines: %w", err)
	}
	if err := insertLines(ctx, tx, inv.ID, inv.Lines); err != nil {
		return err
	}
	return tx.Commit()
}

func storedLineIDs(ctx context.Context, invoiceID int) ([]uuid.UUID, error) {
	rows, err := DB.QueryContext(ctx, "SELECT id FROM invoice_lines WHERE invoice_id = $1 ORDER BY position", invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertLines(ctx context.Context, tx *sql.Tx, invoiceID int, lines []models.InvoiceLine) error {
	for _, l := range lines {
		_, err := tx.ExecContext(ctx, `INSERT INTO invoice_lines (id, invoice_id, position, type, description, quantity,
			original_unit_price, unit_price, line_total, vat_applicable, price_overridden, override_reason, paid_by_attorney)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			l.ID, invoiceID, l.Position, l.Type, l.Description, l.Quantity,
			l.OriginalUnitPrice, l.UnitPrice, l.LineTotal, l.VATApplicable, l.PriceOverridden, l.OverrideReason, l.PaidByAttorney)
		if err != nil {
			return fmt.Errorf("inserting line %d: %w", l.Position, err)
		}
	}
	return nil
}
