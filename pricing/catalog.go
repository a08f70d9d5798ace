package pricing

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultFallbackPrice is charged for a procedure type missing from the catalog.
var DefaultFallbackPrice = decimal.NewFromInt(300)

// Catalog holds the tariffs used to price new lines. A catalog is passed to
// the engine so that prices can differ per tenant or jurisdiction.
type Catalog struct {
	Procedures map[string]decimal.Decimal
	Services   map[string]decimal.Decimal
	Fallback   decimal.Decimal
}

// DefaultCatalog returns the built-in tariff tables.
func DefaultCatalog() Catalog {
	return Catalog{
		Procedures: map[string]decimal.Decimal{
			"Assignation":           decimal.NewFromInt(450),
			"Appel":                 decimal.NewFromInt(800),
			"Référé":                decimal.NewFromInt(600),
			"Requête":               decimal.NewFromInt(250),
			"Conclusions":           decimal.NewFromInt(350),
			"Plaidoirie":            decimal.NewFromInt(700),
			"Mise en état":          decimal.NewFromInt(150),
			"Constitution d'avocat": decimal.NewFromInt(200),
			"Pourvoi en cassation":  decimal.NewFromInt(1500),
		},
		Services: map[string]decimal.Decimal{
			"Consultation":     decimal.NewFromInt(150),
			"Rédaction d'acte": decimal.NewFromInt(250),
			"Courrier":         decimal.NewFromInt(50),
			"Déplacement":      decimal.NewFromInt(100),
			"Vacation horaire": decimal.NewFromInt(200),
		},
		Fallback: DefaultFallbackPrice,
	}
}

// LoadCatalog reads a YAML catalog file. Missing sections are left empty and
// a missing fallback defaults to DefaultFallbackPrice.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}

	var file struct {
		Fallback   *float64           `yaml:"fallback"`
		Procedures map[string]float64 `yaml:"procedures"`
		Services   map[string]float64 `yaml:"services"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	c := Catalog{
		Procedures: make(map[string]decimal.Decimal, len(file.Procedures)),
		Services:   make(map[string]decimal.Decimal, len(file.Services)),
		Fallback:   DefaultFallbackPrice,
	}
	if file.Fallback != nil {
		c.Fallback = decimal.NewFromFloat(*file.Fallback)
	}
	for name, price := range file.Procedures {
		c.Procedures[name] = decimal.NewFromFloat(price)
	}
	for name, price := range file.Services {
		c.Services[name] = decimal.NewFromFloat(price)
	}
	return c, nil
}

// PriceForProcedureType never fails: unknown names get the fallback tariff.
func (c Catalog) PriceForProcedureType(name string) decimal.Decimal {
	if price, ok := c.Procedures[name]; ok {
		return price
	}
	return c.Fallback
}

// PriceForService looks up a general-service tariff.
func (c Catalog) PriceForService(name string) (decimal.Decimal, bool) {
	price, ok := c.Services[name]
	return price, ok
}

// Merge returns a copy of c with every entry of other layered on top.
func (c Catalog) Merge(other Catalog) Catalog {
	out := Catalog{
		Procedures: make(map[string]decimal.Decimal, len(c.Procedures)+len(other.Procedures)),
		Services:   make(map[string]decimal.Decimal, len(c.Services)+len(other.Services)),
		Fallback:   c.Fallback,
	}
	for k, v := range c.Procedures {
		out.Procedures[k] = v
	}
	for k, v := range c.Services {
		out.Services[k] = v
	}
	for k, v := range other.Procedures {
		out.Procedures[k] = v
	}
	for k, v := range other.Services {
		out.Services[k] = v
	}
	if !other.Fallback.IsZero() {
		out.Fallback = other.Fallback
	}
	return out
}
