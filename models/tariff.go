package models

import (
	"time"

	"github.com/satheeshds/lexbill/pricing"
	"github.com/shopspring/decimal"
)

// Tariff is one catalog price for a jurisdiction.
type Tariff struct {
	ID           int       `json:"id"`
	Jurisdiction string    `json:"jurisdiction"`
	Kind         string    `json:"kind"` // procedure, service
	Name         string    `json:"name"`
	Price        Money     `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TariffInput is used for creating/updating tariffs.
type TariffInput struct {
	Jurisdiction string `json:"jurisdiction"`
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	Price        Money  `json:"price"`
}

func (t *TariffInput) Validate() string {
	if t.Name == "" {
		return "name is required"
	}
	if t.Price < 0 {
		return "price must be non-negative"
	}
	switch t.Kind {
	case "procedure", "service":
	default:
		return "kind must be one of: procedure, service"
	}
	if t.Jurisdiction == "" {
		t.Jurisdiction = DefaultJurisdiction
	}
	return ""
}

// CatalogFromTariffs turns stored tariffs into a catalog overlay.
func CatalogFromTariffs(tariffs []Tariff) pricing.Catalog {
	c := pricing.Catalog{
		Procedures: map[string]decimal.Decimal{},
		Services:   map[string]decimal.Decimal{},
	}
	for _, t := range tariffs {
		switch t.Kind {
		case "procedure":
			c.Procedures[t.Name] = t.Price.Decimal()
		case "service":
			c.Services[t.Name] = t.Price.Decimal()
		}
	}
	return c
}
