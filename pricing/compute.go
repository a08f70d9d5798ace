package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// VATRate is the flat rate applied to every VAT-applicable line.
var VATRate = decimal.RequireFromString("0.20")

// VATPercent is VATRate expressed as a whole percentage.
const VATPercent = 20

// InvoiceComputation is derived from lines and an optional discount and is
// never stored as such.
type InvoiceComputation struct {
	Lines                  []BillingLine   `json:"lines"`
	SubtotalExclTax        decimal.Decimal `json:"subtotal_excl_tax"`
	DiscountAmount         decimal.Decimal `json:"discount_amount"`
	VATAmount              decimal.Decimal `json:"vat_amount"`
	TotalInclTax           decimal.Decimal `json:"total_incl_tax"`
	AttorneyAdvancedAmount decimal.Decimal `json:"attorney_advanced_amount"`
	ClientPayableAmount    decimal.Decimal `json:"client_payable_amount"`
}

// ComputeInvoice prices a set of lines. The discount, when given, is
// apportioned first; every total is then taken over the discounted lines.
// No rounding happens here.
func ComputeInvoice(lines []BillingLine, discount *Discount) InvoiceComputation {
	working := lines
	if discount != nil {
		working = ApplyDiscount(lines, *discount)
	}
	c := totals(working)
	c.DiscountAmount = Subtotal(lines).Sub(c.SubtotalExclTax)
	return c
}

// RoundedToCents returns c as it is stored and submitted. Each unit price is
// rounded to the cent and its line total rederived from it, so a line total
// stays unit price times quantity. The totals are then taken over those
// lines, with VAT rounded once on the whole base. The discount is whatever
// separates the rounded gross subtotal from the rounded net one.
func (c InvoiceComputation) RoundedToCents() InvoiceComputation {
	lines := lo.Map(c.Lines, func(l BillingLine, _ int) BillingLine {
		l.OriginalUnitPrice = l.OriginalUnitPrice.Round(2)
		l.UnitPrice = l.UnitPrice.Round(2)
		l.LineTotal = lineTotal(l.UnitPrice, l.Quantity)
		return l
	})
	r := totals(lines)
	r.VATAmount = r.VATAmount.Round(2)
	r = withVAT(r)
	if !c.DiscountAmount.IsZero() {
		gross := c.SubtotalExclTax.Add(c.DiscountAmount).Round(2)
		r.DiscountAmount = gross.Sub(r.SubtotalExclTax)
	}
	return r
}

func totals(lines []BillingLine) InvoiceComputation {
	subtotal := Subtotal(lines)
	vatBase := sumWhere(lines, func(l BillingLine) bool { return l.VATApplicable })
	return withVAT(InvoiceComputation{
		Lines:                  lines,
		SubtotalExclTax:        subtotal,
		DiscountAmount:         decimal.Zero,
		VATAmount:              vatBase.Mul(VATRate),
		AttorneyAdvancedAmount: sumWhere(lines, func(l BillingLine) bool { return l.PaidByAttorney }),
	})
}

func withVAT(c InvoiceComputation) InvoiceComputation {
	c.TotalInclTax = c.SubtotalExclTax.Add(c.VATAmount)
	c.ClientPayableAmount = c.TotalInclTax.Sub(c.AttorneyAdvancedAmount)
	return c
}

// Subtotal sums the line totals.
func Subtotal(lines []BillingLine) decimal.Decimal {
	return sumWhere(lines, func(BillingLine) bool { return true })
}

func sumWhere(lines []BillingLine, keep func(BillingLine) bool) decimal.Decimal {
	return lo.Reduce(lines, func(acc decimal.Decimal, l BillingLine, _ int) decimal.Decimal {
		if !keep(l) {
			return acc
		}
		return acc.Add(l.LineTotal)
	}, decimal.Zero)
}
