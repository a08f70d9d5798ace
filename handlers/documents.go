package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/satheeshds/lexbill/models"
	"github.com/satheeshds/lexbill/render"
	"github.com/satheeshds/lexbill/reports"
)

// InvoicePDF renders an invoice as PDF
// @Summary      Download invoice PDF
// @Description  Render an invoice with its lines and totals as an A4 PDF.
// @Tags         invoices
// @Produce      application/pdf
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {file}    file
// @Failure      404  {object}  Response{error=string}
// @Router       /invoices/{id}/pdf [get]
// @Security     BasicAuth
func InvoicePDF(w http.ResponseWriter, r *http.Request) {
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

	var client *models.Client
	if inv.ClientID != nil {
		c, err := scanClient(DB.QueryRowContext(r.Context(), clientSelectQuery+" WHERE c.id = $1", *inv.ClientID))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "loading client: "+err.Error())
			return
		}
		client = &c
	}

	var buf bytes.Buffer
	if err := render.InvoicePDF(&buf, inv, client); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%d.pdf", id))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// ExportInvoices exports invoice totals
// @Summary      Export invoices
// @Description  Export one row of totals per invoice as Parquet or CSV. Accepts the same filters as the invoice list.
// @Tags         invoices
// @Produce      application/octet-stream
// @Param        format  query     string  false  "parquet (default) or csv"
// @Param        status  query     string  false  "Filter by status"
// @Param        from    query     string  false  "Issued on or after (YYYY-MM-DD)"
// @Param        to      query     string  false  "Issued on or before (YYYY-MM-DD)"
// @Success      200     {file}    file
// @Failure      400     {object}  Response{error=string}
// @Router       /invoices/export [get]
// @Security     BasicAuth
func ExportInvoices(w http.ResponseWriter, r *http.Request) {
	format, err := reports.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	invoices, err := listInvoices(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := reports.Export(r.Context(), invoices, format, &buf); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("invoices exported", "format", format, "rows", len(invoices), "bytes", buf.Len(), "took", time.Since(start))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoices.%s", format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}
