package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is read.
type DiscountKind string

const (
	DiscountPercentage  DiscountKind = "percentage"
	DiscountFixedAmount DiscountKind = "fixed"
)

// Discount applies to a whole invoice draft at computation time. It is never
// stored on the lines themselves.
type Discount struct {
	Kind   DiscountKind    `json:"kind"`
	Value  decimal.Decimal `json:"value"`
	Reason string          `json:"reason,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Amount resolves the absolute discount for a given subtotal.
func (d Discount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	if d.Kind == DiscountPercentage {
		return subtotal.Mul(d.Value).Div(hundred)
	}
	return d.Value
}

// Label is the override reason written on lines the discount touched when
// the caller gave none.
func (d Discount) Label() string {
	if d.Kind == DiscountPercentage {
		return fmt.Sprintf("Discount %s%%", d.Value.String())
	}
	return fmt.Sprintf("Discount %s€", d.Value.String())
}

// ApplyDiscount spreads the discount over every line in proportion to its
// share of the subtotal. Lines already carrying an override reason keep it.
//
// With a zero subtotal (no lines, or only zero-priced ones) or a zero
// discount the input is returned unchanged.
func ApplyDiscount(lines []BillingLine, d Discount) []BillingLine {
	subtotal := Subtotal(lines)
	if subtotal.IsZero() {
		return lines
	}
	amount := d.Amount(subtotal)
	if amount.IsZero() {
		return lines
	}

	reason := d.Reason
	if reason == "" {
		reason = d.Label()
	}

	out := make([]BillingLine, len(lines))
	for i, line := range lines {
		lineDiscount := amount.Mul(line.LineTotal).Div(subtotal)
		discounted := line.LineTotal.Sub(lineDiscount)

		line.UnitPrice = discounted.Div(decimal.NewFromInt(int64(line.Quantity)))
		line.LineTotal = lineTotal(line.UnitPrice, line.Quantity)
		line.PriceOverridden = true
		if line.OverrideReason == "" {
			line.OverrideReason = reason
		}
		out[i] = line
	}
	return out
}
