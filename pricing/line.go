package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind tags a billing line.
type Kind string

const (
	KindProcedure      Kind = "procedure"
	KindGeneralService Kind = "service"
	KindThirdPartyFee  Kind = "frais"
)

// Valid reports whether k is one of the known line kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindProcedure, KindGeneralService, KindThirdPartyFee:
		return true
	}
	return false
}

// BillingLine is one invoice line item.
//
// LineTotal always equals UnitPrice * Quantity. OriginalUnitPrice is the
// price the line was created with and is never modified afterwards.
type BillingLine struct {
	ID                uuid.UUID       `json:"id"`
	Kind              Kind            `json:"type"`
	Description       string          `json:"description"`
	Quantity          int             `json:"quantity"`
	OriginalUnitPrice decimal.Decimal `json:"original_unit_price"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	VATApplicable     bool            `json:"vat_applicable"`
	PriceOverridden   bool            `json:"price_overridden"`
	OverrideReason    string          `json:"override_reason,omitempty"`
	PaidByAttorney    bool            `json:"paid_by_attorney"`
}

// Engine creates lines priced from a catalog.
type Engine struct {
	catalog Catalog
	newID   func() uuid.UUID
}

// NewEngine returns an engine pricing procedures and services from catalog.
func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog, newID: uuid.New}
}

// Catalog returns the catalog the engine prices from.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// NewProcedureLine prices a procedure from the catalog. Unknown procedure
// types are charged the catalog fallback.
func (e *Engine) NewProcedureLine(procedureType string, quantity int) BillingLine {
	return e.newLine(KindProcedure, procedureType, e.catalog.PriceForProcedureType(procedureType), quantity, true)
}

// NewServiceLine creates a general-service line at a caller-supplied price.
func (e *Engine) NewServiceLine(description string, unitPrice decimal.Decimal, quantity int) BillingLine {
	return e.newLine(KindGeneralService, description, unitPrice, quantity, true)
}

// NewCatalogServiceLine creates a general-service line priced from the
// catalog. The boolean is false when the service is not in the catalog.
func (e *Engine) NewCatalogServiceLine(name string, quantity int) (BillingLine, bool) {
	price, ok := e.catalog.PriceForService(name)
	if !ok {
		return BillingLine{}, false
	}
	return e.newLine(KindGeneralService, name, price, quantity, true), true
}

// NewThirdPartyFeeLine creates a disbursement line. Disbursements are passed
// through at cost and never bear VAT.
func (e *Engine) NewThirdPartyFeeLine(description string, amount decimal.Decimal) BillingLine {
	return e.newLine(KindThirdPartyFee, description, amount, 1, false)
}

func (e *Engine) newLine(kind Kind, description string, unitPrice decimal.Decimal, quantity int, vat bool) BillingLine {
	quantity = clampQuantity(quantity)
	return BillingLine{
		ID:                e.newID(),
		Kind:              kind,
		Description:       description,
		Quantity:          quantity,
		OriginalUnitPrice: unitPrice,
		UnitPrice:         unitPrice,
		LineTotal:         lineTotal(unitPrice, quantity),
		VATApplicable:     vat,
	}
}

// OverridePrice returns a copy of line charged at newUnitPrice. An empty
// reason keeps whatever reason the line already had.
func OverridePrice(line BillingLine, newUnitPrice decimal.Decimal, reason string) BillingLine {
	line.UnitPrice = newUnitPrice
	line.LineTotal = lineTotal(newUnitPrice, line.Quantity)
	line.PriceOverridden = true
	if reason != "" {
		line.OverrideReason = reason
	}
	return line
}

// MarkPaidByAttorney returns a copy of line with the advance flag set.
func MarkPaidByAttorney(line BillingLine, paid bool) BillingLine {
	line.PaidByAttorney = paid
	return line
}

// SetQuantity returns a copy of line with a new quantity and its total
// recomputed. Third-party fees always keep a quantity of one.
func SetQuantity(line BillingLine, quantity int) BillingLine {
	if line.Kind == KindThirdPartyFee {
		return line
	}
	line.Quantity = clampQuantity(quantity)
	line.LineTotal = lineTotal(line.UnitPrice, line.Quantity)
	return line
}

func lineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Callers are expected to reject non-positive quantities before they reach
// the engine; anything that slips through is treated as one.
func clampQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}
