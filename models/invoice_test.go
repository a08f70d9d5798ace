package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/satheeshds/lexbill/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeInput(t *testing.T, body string) InvoiceInput {
	t.Helper()
	var in InvoiceInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestMoneyFromDecimal(t *testing.T) {
	cases := map[string]Money{
		"450":      45000,
		"33.3333":  3333,
		"0.005":    1,
		"12.345":   1235,
		"-12.345":  -1235,
		"99.99499": 9999,
	}
	for in, want := range cases {
		assert.Equal(t, want, MoneyFromDecimal(decimal.RequireFromString(in)), in)
	}
	assert.Equal(t, "740.00", Money(74000).String())
	assert.True(t, Money(1999).Decimal().Equal(decimal.RequireFromString("19.99")))
}

func TestMoney_JSON(t *testing.T) {
	raw, err := json.Marshal(Payment{Amount: 28600})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":286.00`)

	var p PaymentInput
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 286}`), &p))
	assert.Equal(t, Money(28600), p.Amount)
	require.NoError(t, json.Unmarshal([]byte(`{"amount": "19.995"}`), &p))
	assert.Equal(t, Money(2000), p.Amount)

	var tariff TariffInput
	require.NoError(t, json.Unmarshal([]byte(`{"price": 900.5}`), &tariff))
	assert.Equal(t, Money(90050), tariff.Price)
	assert.Error(t, json.Unmarshal([]byte(`{"price": "neuf cents"}`), &tariff))

	line := decodeInput(t, `{"lines": [{"type": "frais", "description": "Greffe", "unit_price": 286}]}`).Lines[0]
	assert.Equal(t, Money(28600), MoneyFromDecimal(*line.UnitPrice))
}

func TestLineInput_Validate(t *testing.T) {
	price := decimal.NewFromInt(10)
	neg := decimal.NewFromInt(-1)
	zero, two := 0, 2

	cases := []struct {
		name string
		in   LineInput
		want string
	}{
		{"unknown type", LineInput{Type: "honoraires"}, "type must be one of: procedure, service, frais"},
		{"procedure without type", LineInput{Type: pricing.KindProcedure}, "procedure_type is required for procedure lines"},
		{"zero quantity", LineInput{Type: pricing.KindProcedure, ProcedureType: "Appel", Quantity: &zero}, "quantity must be at least 1"},
		{"negative price", LineInput{Type: pricing.KindGeneralService, Description: "x", UnitPrice: &neg}, "unit_price must be non-negative"},
		{"negative override", LineInput{Type: pricing.KindProcedure, ProcedureType: "Appel", OverridePrice: &neg}, "override_price must be non-negative"},
		{"service without price", LineInput{Type: pricing.KindGeneralService, Description: "x"}, "service lines need a catalog service or a unit_price"},
		{"fee without amount", LineInput{Type: pricing.KindThirdPartyFee, Description: "Greffe"}, "unit_price is required for third-party fees"},
		{"fee quantity", LineInput{Type: pricing.KindThirdPartyFee, Description: "Greffe", UnitPrice: &price, Quantity: &two}, "third-party fees have a quantity of 1"},
		{"procedure with unit price", LineInput{Type: pricing.KindProcedure, ProcedureType: "Appel", UnitPrice: &price}, "procedure lines are priced from the catalog, use override_price"},
		{"catalog service with unit price", LineInput{Type: pricing.KindGeneralService, Service: "Courrier", UnitPrice: &price}, "catalog services are priced from the catalog, use override_price"},
		{"ok procedure override", LineInput{Type: pricing.KindProcedure, ProcedureType: "Appel", OverridePrice: &price}, ""},
		{"ok procedure", LineInput{Type: pricing.KindProcedure, ProcedureType: "Appel"}, ""},
		{"ok catalog service", LineInput{Type: pricing.KindGeneralService, Service: "Courrier"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Validate())
		})
	}
}

func TestDiscountInput_Validate(t *testing.T) {
	d := DiscountInput{Kind: pricing.DiscountPercentage, Value: decimal.NewFromInt(101)}
	assert.NotEmpty(t, d.Validate())
	d.Value = decimal.NewFromInt(100)
	assert.Empty(t, d.Validate())

	d = DiscountInput{Kind: pricing.DiscountFixedAmount, Value: decimal.NewFromInt(-5)}
	assert.NotEmpty(t, d.Validate())

	d = DiscountInput{Kind: "bogof", Value: decimal.NewFromInt(5)}
	assert.Equal(t, "discount kind must be one of: percentage, fixed", d.Validate())
}

func TestInvoiceInput_BuildDraft(t *testing.T) {
	id := uuid.New()
	in := decodeInput(t, `{
		"lines": [
			{"id": "`+id.String()+`", "type": "procedure", "procedure_type": "Assignation", "paid_by_attorney": true},
			{"type": "frais", "description": "Huissier", "unit_price": 200},
			{"type": "service", "service": "Courrier", "quantity": 2, "override_price": "40", "override_reason": "forfait"}
		]
	}`)
	require.Empty(t, in.Validate())
	assert.Equal(t, DefaultJurisdiction, in.Jurisdiction)

	draft, err := in.BuildDraft(pricing.NewEngine(pricing.DefaultCatalog()))
	require.NoError(t, err)
	require.Equal(t, 3, draft.Len())

	first, ok := draft.Get(id)
	require.True(t, ok)
	assert.True(t, first.PaidByAttorney)

	lines := draft.Lines()
	assert.Equal(t, "Courrier", lines[2].Description)
	assert.True(t, lines[2].PriceOverridden)
	assert.Equal(t, "forfait", lines[2].OverrideReason)
	assert.True(t, lines[2].OriginalUnitPrice.Equal(decimal.NewFromInt(50)))

	c := draft.Compute()
	assert.True(t, c.SubtotalExclTax.Equal(decimal.NewFromInt(730)))
	assert.True(t, c.VATAmount.Equal(decimal.NewFromInt(106)))
	assert.True(t, c.ClientPayableAmount.Equal(decimal.NewFromInt(386)))
}

func TestInvoiceInput_BuildDraftErrors(t *testing.T) {
	e := pricing.NewEngine(pricing.DefaultCatalog())

	in := decodeInput(t, `{"lines": [{"type": "service", "service": "Astrologie"}]}`)
	require.Empty(t, in.Validate())
	_, err := in.BuildDraft(e)
	assert.ErrorIs(t, err, ErrUnknownService)

	in = decodeInput(t, `{
		"lines": [{"type": "service", "description": "Consultation", "unit_price": 100}],
		"discount": {"kind": "fixed", "value": 150}
	}`)
	require.Empty(t, in.Validate())
	_, err = in.BuildDraft(e)
	assert.ErrorIs(t, err, ErrDiscountExceedsSubtotal)

	id := uuid.New().String()
	in = decodeInput(t, `{"lines": [
		{"id": "`+id+`", "type": "procedure", "procedure_type": "Appel"},
		{"id": "`+id+`", "type": "procedure", "procedure_type": "Appel"}
	]}`)
	require.Empty(t, in.Validate())
	_, err = in.BuildDraft(e)
	assert.ErrorIs(t, err, pricing.ErrDuplicateLine)

	in = decodeInput(t, `{"lines": [{"type": "procedure", "procedure_type": "Appel", "unit_price": 10}]}`)
	assert.Equal(t, "lines[0]: procedure lines are priced from the catalog, use override_price", in.Validate())

	in = decodeInput(t, `{"issue_date": "17/10/2026"}`)
	assert.Equal(t, "dates must be YYYY-MM-DD", in.Validate())

	in = decodeInput(t, `{"lines": [{"type": "procedure"}]}`)
	assert.Equal(t, "lines[0]: procedure_type is required for procedure lines", in.Validate())
}

func TestInvoiceInput_DiscountOnEmptyDraft(t *testing.T) {
	in := decodeInput(t, `{"lines": [], "discount": {"kind": "fixed", "value": 50}}`)
	require.Empty(t, in.Validate())

	draft, err := in.BuildDraft(pricing.NewEngine(pricing.DefaultCatalog()))
	require.NoError(t, err)
	assert.Equal(t, 0, draft.Len())
	require.NotNil(t, draft.Discount())

	c := draft.Compute()
	assert.True(t, c.SubtotalExclTax.IsZero())
	assert.True(t, c.DiscountAmount.IsZero())
	assert.True(t, c.ClientPayableAmount.IsZero())

	in = decodeInput(t, `{
		"lines": [{"type": "service", "description": "Consultation offerte", "unit_price": 0}],
		"discount": {"kind": "fixed", "value": 50}
	}`)
	require.Empty(t, in.Validate())
	draft, err = in.BuildDraft(pricing.NewEngine(pricing.DefaultCatalog()))
	require.NoError(t, err)
	line := draft.Compute().Lines[0]
	assert.True(t, line.LineTotal.IsZero())
	assert.False(t, line.PriceOverridden)
}

func TestInvoiceInput_KeepLineIDs(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	in := decodeInput(t, `{"lines": [
		{"type": "procedure", "procedure_type": "Appel"},
		{"id": "`+a.String()+`", "type": "procedure", "procedure_type": "Appel"},
		{"type": "procedure", "procedure_type": "Appel"},
		{"type": "procedure", "procedure_type": "Appel"}
	]}`)
	require.Empty(t, in.Validate())

	in.KeepLineIDs([]uuid.UUID{a, b, c})
	// a is named by line 1, so line 0 gets none
	assert.Nil(t, in.Lines[0].ID)
	assert.Equal(t, a, *in.Lines[1].ID)
	assert.Equal(t, c, *in.Lines[2].ID)
	assert.Nil(t, in.Lines[3].ID)

	draft, err := in.BuildDraft(pricing.NewEngine(pricing.DefaultCatalog()))
	require.NoError(t, err)
	assert.Equal(t, 4, draft.Len())
	_, ok := draft.Get(c)
	assert.True(t, ok)
}

func TestNewInvoiceSubmission(t *testing.T) {
	in := decodeInput(t, `{
		"lines": [
			{"type": "service", "description": "Consultation", "unit_price": 600},
			{"type": "frais", "description": "Expert", "unit_price": 400, "paid_by_attorney": true}
		],
		"discount": {"kind": "percentage", "value": 10}
	}`)
	require.Empty(t, in.Validate())
	draft, err := in.BuildDraft(pricing.NewEngine(pricing.DefaultCatalog()))
	require.NoError(t, err)

	sub := NewInvoiceSubmission(draft.Compute())
	assert.Equal(t, 900.0, sub.MontantHT)
	assert.Equal(t, 20, sub.TauxTVA)
	assert.Equal(t, 100.0, sub.Reduction)
	assert.Equal(t, 360.0, sub.Details.MontantAvanceAvocat)
	require.Len(t, sub.Details.Lignes, 2)
	assert.Equal(t, SubmissionLine{
		Type: "service", Description: "Consultation", Quantite: 1,
		PrixUnitaire: 540, PrixTotal: 540, TVAApplicable: true,
	}, sub.Details.Lignes[0])
	assert.False(t, sub.Details.Lignes[1].TVAApplicable)

	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"montant_ht": 900, "taux_tva": 20, "reduction": 100,
		"details": {
			"lignes": [
				{"type": "service", "description": "Consultation", "quantite": 1, "prix_unitaire": 540, "prix_total": 540, "tva_applicable": true},
				{"type": "frais", "description": "Expert", "quantite": 1, "prix_unitaire": 360, "prix_total": 360, "tva_applicable": false}
			],
			"montant_avance_avocat": 360
		}
	}`, string(raw))
}

func TestInvoice_ApplyComputation(t *testing.T) {
	e := pricing.NewEngine(pricing.DefaultCatalog())
	lines := []pricing.BillingLine{
		e.NewServiceLine("Vacation", decimal.RequireFromString("100"), 3),
		e.NewThirdPartyFeeLine("Greffe", decimal.RequireFromString("35.50")),
	}
	c := pricing.ComputeInvoice(lines, &pricing.Discount{Kind: pricing.DiscountFixedAmount, Value: decimal.NewFromInt(10)})

	var inv Invoice
	inv.ApplyComputation(c)

	assert.Equal(t, Money(32550), inv.SubtotalExclTax)
	assert.Equal(t, Money(1000), inv.DiscountAmount)
	assert.Equal(t, 20, inv.VATRate)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, 1, inv.Lines[1].Position)
	assert.Equal(t, Money(10000), inv.Lines[0].OriginalUnitPrice)
	assert.True(t, inv.Lines[0].PriceOverridden)
	require.NotNil(t, inv.Lines[0].OverrideReason)
	assert.Equal(t, "Discount 10€", *inv.Lines[0].OverrideReason)
}

func TestRoundingMatchesAcrossInvoiceAndSubmission(t *testing.T) {
	e := pricing.NewEngine(pricing.DefaultCatalog())
	lines := []pricing.BillingLine{
		e.NewServiceLine("Consultation", decimal.NewFromInt(100), 3),
		e.NewServiceLine("Déplacement", decimal.NewFromInt(50), 1),
	}
	c := pricing.ComputeInvoice(lines, &pricing.Discount{Kind: pricing.DiscountPercentage, Value: decimal.RequireFromString("33.333")})

	var inv Invoice
	inv.ApplyComputation(c)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, Money(6667), inv.Lines[0].UnitPrice)
	assert.Equal(t, Money(20001), inv.Lines[0].LineTotal)
	var sum Money
	for _, l := range inv.Lines {
		assert.Equal(t, l.UnitPrice*Money(l.Quantity), l.LineTotal)
		sum += l.LineTotal
	}
	assert.Equal(t, sum, inv.SubtotalExclTax)
	assert.Equal(t, Money(23334), inv.SubtotalExclTax)
	assert.Equal(t, Money(11666), inv.DiscountAmount)
	assert.Equal(t, Money(4667), inv.VATAmount)
	assert.Equal(t, inv.SubtotalExclTax+inv.VATAmount, inv.TotalInclTax)

	sub := NewInvoiceSubmission(c)
	assert.Equal(t, 66.67, sub.Details.Lignes[0].PrixUnitaire)
	assert.Equal(t, 200.01, sub.Details.Lignes[0].PrixTotal)
	assert.Equal(t, 233.34, sub.MontantHT)
	assert.Equal(t, 116.66, sub.Reduction)
}

func TestPaymentStatus(t *testing.T) {
	assert.Equal(t, StatusSent, PaymentStatus(1000, 0))
	assert.Equal(t, StatusPartial, PaymentStatus(1000, 400))
	assert.Equal(t, StatusPaid, PaymentStatus(1000, 1000))
	assert.Equal(t, StatusPaid, PaymentStatus(0, 10))
}
