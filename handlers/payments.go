package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/satheeshds/lexbill/models"
)

const paymentSelectQuery = `SELECT p.id, p.invoice_id, p.amount, to_char(p.payment_date, 'YYYY-MM-DD'),
	p.method, p.reference, p.created_at, i.invoice_number
	FROM payments p
	LEFT JOIN invoices i ON p.invoice_id = i.id`

func scanPayment(scanner interface{ Scan(...any) error }) (models.Payment, error) {
	var p models.Payment
	err := scanner.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate,
		&p.Method, &p.Reference, &p.CreatedAt, &p.InvoiceNumber)
	return p, err
}

// ListPayments lists the payments of an invoice
// @Summary      List invoice payments
// @Description  Get all payments received against an invoice.
// @Tags         payments
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=[]models.Payment}
// @Router       /invoices/{id}/payments [get]
// @Security     BasicAuth
func ListPayments(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := DB.QueryContext(r.Context(), paymentSelectQuery+" WHERE p.invoice_id = $1 ORDER BY p.payment_date, p.id", invoiceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		payments = append(payments, p)
	}
	writeJSON(w, http.StatusOK, payments)
}

// CreatePayment records a payment against an invoice
// @Summary      Record payment
// @Description  Record money received from the client. The amount cannot exceed what the client still owes; the invoice status follows.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id       path      int                  true  "Invoice ID"
// @Param        payment  body      models.PaymentInput  true  "Payment details"
// @Success      201      {object}  Response{data=models.Payment}
// @Failure      400      {object}  Response{error=string}
// @Failure      404      {object}  Response{error=string}
// @Failure      409      {object}  Response{error=string}
// @Router       /invoices/{id}/payments [post]
// @Security     BasicAuth
func CreatePayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var input models.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := input.Validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback() //nolint:errcheck

	var status string
	var payable, paid models.Money
	err = tx.QueryRowContext(ctx, `SELECT status, client_payable_amount,
		COALESCE((SELECT SUM(amount) FROM payments WHERE invoice_id = $1), 0)::BIGINT
		FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID).Scan(&status, &payable, &paid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, errInvoiceNotFound.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if status == models.StatusDraft || status == models.StatusCancelled {
		writeError(w, http.StatusConflict, fmt.Sprintf("cannot record a payment on a %s invoice", status))
		return
	}
	if outstanding := payable - paid; input.Amount > outstanding {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invoice only has %s outstanding (requested %s)", outstanding, input.Amount))
		return
	}

	var id int
	err = tx.QueryRowContext(ctx, `INSERT INTO payments (invoice_id, amount, payment_date, method, reference)
		VALUES ($1, $2, COALESCE($3::DATE, CURRENT_DATE), $4, $5) RETURNING id`,
		invoiceID, input.Amount, input.PaymentDate, input.Method, input.Reference).Scan(&id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := updatePaymentStatus(ctx, tx, invoiceID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("payment recorded", "invoice_id", invoiceID, "payment_id", id, "amount", input.Amount.String())

	p, err := scanPayment(DB.QueryRowContext(ctx, paymentSelectQuery+" WHERE p.id = $1", id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to re-fetch payment: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// DeletePayment removes a payment from an invoice
// @Summary      Delete payment
// @Description  Remove a recorded payment. The invoice status is recomputed.
// @Tags         payments
// @Produce      json
// @Param        id         path      int  true  "Invoice ID"
// @Param        paymentId  path      int  true  "Payment ID"
// @Success      200        {object}  Response{data=map[string]string}
// @Failure      404        {object}  Response{error=string}
// @Router       /invoices/{id}/payments/{paymentId} [delete]
// @Security     BasicAuth
func DeletePayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	paymentID, err := urlID(r, "paymentId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE id = $1 AND invoice_id = $2", paymentID, invoiceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}
	if err := updatePaymentStatus(ctx, tx, invoiceID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// updatePaymentStatus moves an issued invoice between sent, partial and paid
// according to the payments recorded against it.
func updatePaymentStatus(ctx context.Context, tx *sql.Tx, invoiceID int) error {
	var status string
	var payable, paid models.Money
	err := tx.QueryRowContext(ctx, `SELECT status, client_payable_amount,
		COALESCE((SELECT SUM(amount) FROM payments WHERE invoice_id = $1), 0)::BIGINT
		FROM invoices WHERE id = $1`, invoiceID).Scan(&status, &payable, &paid)
	if err != nil {
		return fmt.Errorf("reading invoice balance: %w", err)
	}
	if status == models.StatusDraft || status == models.StatusCancelled {
		return nil
	}

	next := models.PaymentStatus(payable, paid)
	if next == status {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "UPDATE invoices SET status = $1, updated_at = now() WHERE id = $2", next, invoiceID); err != nil {
		return fmt.Errorf("updating invoice status: %w", err)
	}
	slog.Debug("invoice status follows payments", "invoice_id", invoiceID, "from", status, "to", next)
	return nil
}
