// Package render lays out persisted invoices as printable documents.
package render

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/satheeshds/lexbill/models"
)

var lineColumns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 78, "L"},
	{"Qty", 14, "R"},
	{"Unit price", 28, "R"},
	{"Total", 28, "R"},
	{"VAT", 14, "C"},
	{"Advanced", 18, "C"},
}

// InvoicePDF writes an A4 rendering of inv to w. client may be nil when the
// invoice is not addressed to a stored client.
func InvoicePDF(w io.Writer, inv models.Invoice, client *models.Client) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(invoiceTitle(inv), true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(invoiceTitle(inv)), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	if inv.IssueDate != nil {
		pdf.CellFormat(0, 6, "Issued: "+*inv.IssueDate, "", 1, "L", false, 0, "")
	}
	if inv.DueDate != nil {
		pdf.CellFormat(0, 6, "Due: "+*inv.DueDate, "", 1, "L", false, 0, "")
	}
	if inv.DossierRef != nil {
		pdf.CellFormat(0, 6, tr("Dossier: "+*inv.DossierRef), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Status: "+inv.Status, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if client != nil {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 6, "Bill to", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(client.Name), "", 1, "L", false, 0, "")
		if client.Address != nil {
			pdf.MultiCell(0, 5, tr(*client.Address), "", "L", false)
		}
		if client.Email != nil {
			pdf.CellFormat(0, 6, *client.Email, "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range lineColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, l := range inv.Lines {
		cells := []string{
			tr(l.Description),
			fmt.Sprintf("%d", l.Quantity),
			tr(euros(l.UnitPrice)),
			tr(euros(l.LineTotal)),
			yesNo(l.VATApplicable),
			yesNo(l.PaidByAttorney),
		}
		for i, c := range lineColumns {
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	totals := []struct {
		label  string
		amount models.Money
		bold   bool
	}{
		{"Total excl. VAT", inv.SubtotalExclTax, false},
		{"Discount", inv.DiscountAmount, false},
		{fmt.Sprintf("VAT %d%%", inv.VATRate), inv.VATAmount, false},
		{"Total incl. VAT", inv.TotalInclTax, true},
		{"Advanced by attorney", inv.AttorneyAdvancedAmount, false},
		{"Due by client", inv.ClientPayableAmount, true},
	}
	for _, t := range totals {
		if t.label == "Discount" && t.amount == 0 {
			continue
		}
		style := ""
		if t.bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(134, 6, tr(t.label), "", 0, "R", false, 0, "")
		pdf.CellFormat(46, 6, tr(euros(t.amount)), "", 1, "R", false, 0, "")
	}

	if inv.Notes != nil && *inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(*inv.Notes), "", "L", false)
	}

	return pdf.Output(w)
}

func invoiceTitle(inv models.Invoice) string {
	if inv.InvoiceNumber != "" {
		return "Invoice " + inv.InvoiceNumber
	}
	return fmt.Sprintf("Invoice #%d", inv.ID)
}

func euros(m models.Money) string {
	return m.String() + " €"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
