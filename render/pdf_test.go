package render

import (
	"bytes"
	"testing"

	"github.com/samber/lo"
	"github.com/satheeshds/lexbill/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoicePDF(t *testing.T) {
	inv := models.Invoice{
		ID:                     7,
		InvoiceNumber:          "2026-0042",
		IssueDate:              lo.ToPtr("2026-10-17"),
		Status:                 models.StatusSent,
		SubtotalExclTax:        73000,
		VATRate:                20,
		VATAmount:              10600,
		TotalInclTax:           83600,
		AttorneyAdvancedAmount: 45000,
		ClientPayableAmount:    38600,
		Notes:                  lo.ToPtr("Règlement à réception."),
		Lines: []models.InvoiceLine{
			{Description: "Assignation", Quantity: 1, UnitPrice: 45000, LineTotal: 45000, VATApplicable: true, PaidByAttorney: true},
			{Description: "Huissier", Quantity: 1, UnitPrice: 20000, LineTotal: 20000},
		},
	}
	client := &models.Client{Name: "Société Dupont", Address: lo.ToPtr("12 rue de la Paix\n75002 Paris")}

	var buf bytes.Buffer
	require.NoError(t, InvoicePDF(&buf, inv, client))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	full := buf.Len()

	buf.Reset()
	require.NoError(t, InvoicePDF(&buf, models.Invoice{ID: 1, Status: models.StatusDraft}, nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, full, buf.Len())
}

func TestInvoiceTitle(t *testing.T) {
	assert.Equal(t, "Invoice 2026-0042", invoiceTitle(models.Invoice{InvoiceNumber: "2026-0042"}))
	assert.Equal(t, "Invoice #3", invoiceTitle(models.Invoice{ID: 3}))
	assert.Equal(t, "12.50 €", euros(1250))
}
