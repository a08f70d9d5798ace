package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/satheeshds/lexbill/pricing"
	"github.com/shopspring/decimal"
)

const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// DefaultJurisdiction names the tariff set used when an invoice gives none.
const DefaultJurisdiction = "default"

var (
	ErrUnknownService          = errors.New("service is not in the catalog")
	ErrDiscountExceedsSubtotal = errors.New("discount exceeds the invoice subtotal")
)

// Invoice is a persisted invoice with its computed totals.
type Invoice struct {
	ID                     int       `json:"id"`
	ClientID               *int      `json:"client_id"`
	DossierRef             *string   `json:"dossier_ref"`
	InvoiceNumber          string    `json:"invoice_number"`
	IssueDate              *string   `json:"issue_date"`
	DueDate                *string   `json:"due_date"`
	Status                 string    `json:"status"`
	Jurisdiction           string    `json:"jurisdiction"`
	DiscountKind           *string   `json:"discount_kind"`
	DiscountValue          *string   `json:"discount_value"`
	DiscountReason         *string   `json:"discount_reason"`
	SubtotalExclTax        Money     `json:"subtotal_excl_tax"`
	VATRate                int       `json:"vat_rate"`
	VATAmount              Money     `json:"vat_amount"`
	TotalInclTax           Money     `json:"total_incl_tax"`
	DiscountAmount         Money     `json:"discount_amount"`
	AttorneyAdvancedAmount Money     `json:"attorney_advanced_amount"`
	ClientPayableAmount    Money     `json:"client_payable_amount"`
	Notes                  *string   `json:"notes"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
	// Computed fields
	ClientName  *string       `json:"client_name,omitempty"`
	Paid        Money         `json:"paid"`
	Outstanding Money         `json:"outstanding"`
	Lines       []InvoiceLine `json:"lines,omitempty"`
}

// InvoiceLine is the stored snapshot of one priced line.
type InvoiceLine struct {
	ID                uuid.UUID `json:"id"`
	Position          int       `json:"position"`
	Type              string    `json:"type"`
	Description       string    `json:"description"`
	Quantity          int       `json:"quantity"`
	OriginalUnitPrice Money     `json:"original_unit_price"`
	UnitPrice         Money     `json:"unit_price"`
	LineTotal         Money     `json:"line_total"`
	VATApplicable     bool      `json:"vat_applicable"`
	PriceOverridden   bool      `json:"price_overridden"`
	OverrideReason    *string   `json:"override_reason"`
	PaidByAttorney    bool      `json:"paid_by_attorney"`
}

// ApplyComputation copies the totals and lines of c, rounded to the cent,
// onto inv.
func (inv *Invoice) ApplyComputation(c pricing.InvoiceComputation) {
	c = c.RoundedToCents()
	inv.SubtotalExclTax = MoneyFromDecimal(c.SubtotalExclTax)
	inv.VATRate = pricing.VATPercent
	inv.VATAmount = MoneyFromDecimal(c.VATAmount)
	inv.TotalInclTax = MoneyFromDecimal(c.TotalInclTax)
	inv.DiscountAmount = MoneyFromDecimal(c.DiscountAmount)
	inv.AttorneyAdvancedAmount = MoneyFromDecimal(c.AttorneyAdvancedAmount)
	inv.ClientPayableAmount = MoneyFromDecimal(c.ClientPayableAmount)
	inv.Lines = lo.Map(c.Lines, func(l pricing.BillingLine, i int) InvoiceLine {
		var reason *string
		if l.OverrideReason != "" {
			reason = lo.ToPtr(l.OverrideReason)
		}
		return InvoiceLine{
			ID:                l.ID,
			Position:          i,
			Type:              string(l.Kind),
			Description:       l.Description,
			Quantity:          l.Quantity,
			OriginalUnitPrice: MoneyFromDecimal(l.OriginalUnitPrice),
			UnitPrice:         MoneyFromDecimal(l.UnitPrice),
			LineTotal:         MoneyFromDecimal(l.LineTotal),
			VATApplicable:     l.VATApplicable,
			PriceOverridden:   l.PriceOverridden,
			OverrideReason:    reason,
			PaidByAttorney:    l.PaidByAttorney,
		}
	})
}

// LineInput describes one requested billing line.
type LineInput struct {
	ID             *uuid.UUID       `json:"id"`
	Type           pricing.Kind     `json:"type"`
	Description    string           `json:"description"`
	ProcedureType  string           `json:"procedure_type"`
	Service        string           `json:"service"`
	Quantity       *int             `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	OverridePrice  *decimal.Decimal `json:"override_price"`
	OverrideReason string           `json:"override_reason"`
	PaidByAttorney bool             `json:"paid_by_attorney"`
}

func (l *LineInput) Validate() string {
	if !l.Type.Valid() {
		return "type must be one of: procedure, service, frais"
	}
	if l.Quantity == nil {
		l.Quantity = lo.ToPtr(1)
	} else if *l.Quantity < 1 {
		return "quantity must be at least 1"
	}
	if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
		return "unit_price must be non-negative"
	}
	if l.OverridePrice != nil && l.OverridePrice.IsNegative() {
		return "override_price must be non-negative"
	}

	switch l.Type {
	case pricing.KindProcedure:
		if l.ProcedureType == "" {
			return "procedure_type is required for procedure lines"
		}
		if l.UnitPrice != nil {
			return "procedure lines are priced from the catalog, use override_price"
		}
	case pricing.KindGeneralService:
		if l.Service != "" && l.UnitPrice != nil {
			return "catalog services are priced from the catalog, use override_price"
		}
		if l.Service == "" && l.UnitPrice == nil {
			return "service lines need a catalog service or a unit_price"
		}
		if l.Service == "" && l.Description == "" {
			return "description is required"
		}
	case pricing.KindThirdPartyFee:
		if l.UnitPrice == nil {
			return "unit_price is required for third-party fees"
		}
		if l.Description == "" {
			return "description is required"
		}
		if *l.Quantity != 1 {
			return "third-party fees have a quantity of 1"
		}
	}
	return ""
}

// ToLine builds the billing line. Validate must have passed.
func (l *LineInput) ToLine(e *pricing.Engine) (pricing.BillingLine, error) {
	qty := lo.FromPtrOr(l.Quantity, 1)

	var line pricing.BillingLine
	switch l.Type {
	case pricing.KindProcedure:
		line = e.NewProcedureLine(l.ProcedureType, qty)
		if l.Description != "" {
			line.Description = l.Description
		}
	case pricing.KindGeneralService:
		if l.Service != "" {
			var ok bool
			line, ok = e.NewCatalogServiceLine(l.Service, qty)
			if !ok {
				return pricing.BillingLine{}, fmt.Errorf("%w: %q", ErrUnknownService, l.Service)
			}
			if l.Description != "" {
				line.Description = l.Description
			}
		} else {
			line = e.NewServiceLine(l.Description, *l.UnitPrice, qty)
		}
	case pricing.KindThirdPartyFee:
		line = e.NewThirdPartyFeeLine(l.Description, *l.UnitPrice)
	default:
		return pricing.BillingLine{}, fmt.Errorf("unknown line type %q", l.Type)
	}

	if l.ID != nil {
		line.ID = *l.ID
	}
	if l.OverridePrice != nil {
		line = pricing.OverridePrice(line, *l.OverridePrice, l.OverrideReason)
	}
	return pricing.MarkPaidByAttorney(line, l.PaidByAttorney), nil
}

// DiscountInput is the requested invoice-level discount.
type DiscountInput struct {
	Kind   pricing.DiscountKind `json:"kind"`
	Value  decimal.Decimal      `json:"value"`
	Reason string               `json:"reason"`
}

func (d *DiscountInput) Validate() string {
	switch d.Kind {
	case pricing.DiscountPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(decimal.NewFromInt(100)) {
			return "percentage discount must be between 0 and 100"
		}
	case pricing.DiscountFixedAmount:
		if d.Value.IsNegative() {
			return "fixed discount must be non-negative"
		}
	default:
		return "discount kind must be one of: percentage, fixed"
	}
	return ""
}

// ToDiscount returns the engine descriptor.
func (d *DiscountInput) ToDiscount() pricing.Discount {
	return pricing.Discount{Kind: d.Kind, Value: d.Value, Reason: d.Reason}
}

// InvoiceInput is used for previewing, creating and updating invoices.
type InvoiceInput struct {
	ClientID      *int           `json:"client_id"`
	DossierRef    *string        `json:"dossier_ref"`
	InvoiceNumber string         `json:"invoice_number"`
	IssueDate     *string        `json:"issue_date"`
	DueDate       *string        `json:"due_date"`
	Jurisdiction  string         `json:"jurisdiction"`
	Lines         []LineInput    `json:"lines"`
	Discount      *DiscountInput `json:"discount"`
	Notes         *string        `json:"notes"`
}

func (i *InvoiceInput) Validate() string {
	if i.Jurisdiction == "" {
		i.Jurisdiction = DefaultJurisdiction
	}
	for _, d := range []*string{i.IssueDate, i.DueDate} {
		if d == nil {
			continue
		}
		if _, err := time.Parse("2006-01-02", *d); err != nil {
			return "dates must be YYYY-MM-DD"
		}
	}
	for idx := range i.Lines {
		if msg := i.Lines[idx].Validate(); msg != "" {
			return fmt.Sprintf("lines[%d]: %s", idx, msg)
		}
	}
	if i.Discount != nil {
		if msg := i.Discount.Validate(); msg != "" {
			return msg
		}
	}
	return ""
}

// KeepLineIDs gives each line sent without an id the id of the stored line
// at the same position. An id the input names explicitly is never handed to
// another line.
func (i *InvoiceInput) KeepLineIDs(stored []uuid.UUID) {
	claimed := make(map[uuid.UUID]bool, len(i.Lines))
	for _, l := range i.Lines {
		if l.ID != nil {
			claimed[*l.ID] = true
		}
	}
	for idx := range i.Lines {
		if i.Lines[idx].ID != nil || idx >= len(stored) || claimed[stored[idx]] {
			continue
		}
		i.Lines[idx].ID = lo.ToPtr(stored[idx])
	}
}

// BuildDraft turns a validated input into a priced draft. A fixed discount
// larger than a positive subtotal is refused rather than producing negative
// lines. On an empty subtotal the discount is kept and has no effect.
func (i *InvoiceInput) BuildDraft(e *pricing.Engine) (*pricing.Draft, error) {
	draft := pricing.NewDraft()
	for idx := range i.Lines {
		line, err := i.Lines[idx].ToLine(e)
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", idx, err)
		}
		if err := draft.Add(line); err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", idx, err)
		}
	}
	if i.Discount != nil {
		d := i.Discount.ToDiscount()
		subtotal := pricing.Subtotal(draft.Lines())
		if subtotal.IsPositive() && d.Amount(subtotal).GreaterThan(subtotal) {
			return nil, ErrDiscountExceedsSubtotal
		}
		draft.SetDiscount(&d)
	}
	return draft, nil
}

// InvoiceSubmission is the flattened snapshot handed to the invoicing
// backend. Amounts are rounded to the cent.
type InvoiceSubmission struct {
	MontantHT float64           `json:"montant_ht"`
	TauxTVA   int               `json:"taux_tva"`
	Reduction float64           `json:"reduction"`
	Details   SubmissionDetails `json:"details"`
}

type SubmissionDetails struct {
	Lignes              []SubmissionLine `json:"lignes"`
	MontantAvanceAvocat float64          `json:"montant_avance_avocat"`
}

type SubmissionLine struct {
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	Quantite      int     `json:"quantite"`
	PrixUnitaire  float64 `json:"prix_unitaire"`
	PrixTotal     float64 `json:"prix_total"`
	TVAApplicable bool    `json:"tva_applicable"`
}

// NewInvoiceSubmission flattens a computation. It rounds the same way
// ApplyComputation does, so a submission matches the stored invoice.
func NewInvoiceSubmission(c pricing.InvoiceComputation) InvoiceSubmission {
	c = c.RoundedToCents()
	return InvoiceSubmission{
		MontantHT: roundCents(c.SubtotalExclTax),
		TauxTVA:   pricing.VATPercent,
		Reduction: roundCents(c.DiscountAmount),
		Details: SubmissionDetails{
			Lignes: lo.Map(c.Lines, func(l pricing.BillingLine, _ int) SubmissionLine {
				return SubmissionLine{
					Type:          string(l.Kind),
					Description:   l.Description,
					Quantite:      l.Quantity,
					PrixUnitaire:  roundCents(l.UnitPrice),
					PrixTotal:     roundCents(l.LineTotal),
					TVAApplicable: l.VATApplicable,
				}
			}),
			MontantAvanceAvocat: roundCents(c.AttorneyAdvancedAmount),
		},
	}
}

func roundCents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
