package pricing

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestApplyDiscount_Percentage(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	lines := []BillingLine{
		e.NewServiceLine("Consultation", dec("600"), 1),
		e.NewServiceLine("Rédaction", dec("400"), 1),
	}

	out := ApplyDiscount(lines, Discount{Kind: DiscountPercentage, Value: dec("10")})

	require.Len(t, out, 2)
	assertDecimal(t, "540", out[0].LineTotal)
	assertDecimal(t, "360", out[1].LineTotal)
	assertDecimal(t, "900", Subtotal(out))
	for i, l := range out {
		assert.True(t, l.PriceOverridden)
		assert.Equal(t, "Discount 10%", l.OverrideReason)
		assert.Equal(t, lines[i].ID, l.ID)
		assertDecimal(t, lines[i].OriginalUnitPrice.String(), l.OriginalUnitPrice)
	}
	// input untouched
	assertDecimal(t, "600", lines[0].LineTotal)
	assert.False(t, lines[0].PriceOverridden)
}

func TestApplyDiscount_FixedAmountAndReasons(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	kept := OverridePrice(e.NewServiceLine("Courrier", dec("50"), 2), dec("50"), "geste commercial")
	lines := []BillingLine{
		e.NewProcedureLine("Assignation", 1),
		kept,
	}

	out := ApplyDiscount(lines, Discount{Kind: DiscountFixedAmount, Value: dec("55")})
	assert.Equal(t, "Discount 55€", out[0].OverrideReason)
	assert.Equal(t, "geste commercial", out[1].OverrideReason)
	assertDecimal(t, "495", Subtotal(out))
	// 450/550 of 55 = 45, 100/550 of 55 = 10
	assertDecimal(t, "405", out[0].LineTotal)
	assertDecimal(t, "90", out[1].LineTotal)
	assertDecimal(t, "45", out[1].UnitPrice)

	out = ApplyDiscount(lines, Discount{Kind: DiscountFixedAmount, Value: dec("55"), Reason: "remise dossier"})
	assert.Equal(t, "remise dossier", out[0].OverrideReason)
	assert.Equal(t, "geste commercial", out[1].OverrideReason)
}

func TestApplyDiscount_Conservation(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	lines := []BillingLine{
		e.NewProcedureLine("Appel", 3),
		e.NewServiceLine("Vacation", dec("133.33"), 7),
		e.NewThirdPartyFeeLine("Expert", dec("1210.17")),
		e.NewServiceLine("Courrier", dec("0.01"), 9),
	}
	before := Subtotal(lines)

	for _, d := range []Discount{
		{Kind: DiscountPercentage, Value: dec("12.5")},
		{Kind: DiscountPercentage, Value: dec("33.333")},
		{Kind: DiscountFixedAmount, Value: dec("777.77")},
	} {
		out := ApplyDiscount(lines, d)
		want := before.Sub(d.Amount(before))
		diff := Subtotal(out).Sub(want).Abs()
		assert.True(t, diff.LessThan(dec("0.000001")), "discount %s drifted by %s", d.Label(), diff)
		for _, l := range out {
			assert.True(t, l.LineTotal.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))))
		}
	}
}

func TestApplyDiscount_ZeroSubtotal(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	d := Discount{Kind: DiscountFixedAmount, Value: dec("50")}

	empty := []BillingLine{}
	assert.Equal(t, empty, ApplyDiscount(empty, d))

	zero := []BillingLine{
		e.NewServiceLine("Offert", dec("0"), 2),
		e.NewThirdPartyFeeLine("Gratuit", dec("0")),
	}
	out := ApplyDiscount(zero, d)
	assert.Equal(t, zero, out)
	assert.False(t, out[0].PriceOverridden)
}

func TestComputeInvoice_VATAndNetting(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	proc := e.NewProcedureLine("Assignation", 1)
	fee := e.NewThirdPartyFeeLine("Huissier", dec("200"))

	c := ComputeInvoice([]BillingLine{proc, fee}, nil)
	assertDecimal(t, "650", c.SubtotalExclTax)
	assertDecimal(t, "90", c.VATAmount)
	assertDecimal(t, "740", c.TotalInclTax)
	assertDecimal(t, "0", c.AttorneyAdvancedAmount)
	assertDecimal(t, "740", c.ClientPayableAmount)
	assertDecimal(t, "0", c.DiscountAmount)

	c = ComputeInvoice([]BillingLine{MarkPaidByAttorney(proc, true), fee}, nil)
	assertDecimal(t, "450", c.AttorneyAdvancedAmount)
	assertDecimal(t, "290", c.ClientPayableAmount)
	assert.True(t, c.ClientPayableAmount.Equal(c.TotalInclTax.Sub(c.AttorneyAdvancedAmount)))
}

func TestComputeInvoice_FeesNeverBearVAT(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	fee := OverridePrice(e.NewThirdPartyFeeLine("Greffe", dec("100")), dec("150"), "tarif majoré")
	lines := []BillingLine{e.NewServiceLine("Consultation", dec("100"), 1), fee}

	c := ComputeInvoice(lines, &Discount{Kind: DiscountPercentage, Value: dec("20")})

	// only the consultation (80 after discount) is taxed
	assertDecimal(t, "16", c.VATAmount)
	assertDecimal(t, "200", c.SubtotalExclTax)
	assertDecimal(t, "50", c.DiscountAmount)
	assertDecimal(t, "216", c.TotalInclTax)
}

func TestComputeInvoice_DiscountedAdvance(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	lines := []BillingLine{
		e.NewServiceLine("Consultation", dec("600"), 1),
		MarkPaidByAttorney(e.NewThirdPartyFeeLine("Expert", dec("400")), true),
	}

	c := ComputeInvoice(lines, &Discount{Kind: DiscountPercentage, Value: dec("10")})

	assertDecimal(t, "900", c.SubtotalExclTax)
	assertDecimal(t, "100", c.DiscountAmount)
	assertDecimal(t, "108", c.VATAmount)
	assertDecimal(t, "1008", c.TotalInclTax)
	assertDecimal(t, "360", c.AttorneyAdvancedAmount)
	assertDecimal(t, "648", c.ClientPayableAmount)
}

func TestComputeInvoice_Empty(t *testing.T) {
	c := ComputeInvoice(nil, &Discount{Kind: DiscountPercentage, Value: dec("10")})
	assert.True(t, c.TotalInclTax.IsZero())
	assert.True(t, c.ClientPayableAmount.IsZero())
	assert.Empty(t, c.Lines)
}

func TestRoundedToCents_KeepsLineTotals(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	lines := []BillingLine{
		e.NewServiceLine("Consultation", dec("100"), 3),
		MarkPaidByAttorney(e.NewServiceLine("Déplacement", dec("50"), 1), true),
	}
	c := ComputeInvoice(lines, &Discount{Kind: DiscountPercentage, Value: dec("33.333")})
	assertDecimal(t, "66.667", c.Lines[0].UnitPrice)

	r := c.RoundedToCents()
	require.Len(t, r.Lines, 2)
	assertDecimal(t, "66.67", r.Lines[0].UnitPrice)
	assertDecimal(t, "200.01", r.Lines[0].LineTotal)
	assertDecimal(t, "33.33", r.Lines[1].LineTotal)
	for _, l := range r.Lines {
		assertDecimal(t, l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).String(), l.LineTotal)
	}
	assertDecimal(t, "100", r.Lines[0].OriginalUnitPrice)

	assertDecimal(t, "233.34", r.SubtotalExclTax)
	assertDecimal(t, "116.66", r.DiscountAmount)
	assertDecimal(t, "46.67", r.VATAmount)
	assertDecimal(t, "280.01", r.TotalInclTax)
	assertDecimal(t, "33.33", r.AttorneyAdvancedAmount)
	assertDecimal(t, "246.68", r.ClientPayableAmount)

	// the unrounded computation is left alone
	assertDecimal(t, "66.667", c.Lines[0].UnitPrice)
}

func TestRoundedToCents_NoDiscount(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	c := ComputeInvoice([]BillingLine{e.NewServiceLine("Copies", dec("0.125"), 4)}, nil)

	r := c.RoundedToCents()
	assertDecimal(t, "0.13", r.Lines[0].UnitPrice)
	assertDecimal(t, "0.52", r.SubtotalExclTax)
	assert.True(t, r.DiscountAmount.IsZero())
	assertDecimal(t, "0.1", r.VATAmount)
}
