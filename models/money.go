package models

import "github.com/shopspring/decimal"

// Money is an amount stored in cents. The API reads and writes it in
// currency units, like every other amount it exposes; engine results are
// rounded into it only when persisted.
type Money int64

// MoneyFromDecimal rounds d half away from zero to the cent.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(2).Shift(2).IntPart())
}

// Decimal returns m in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes m as a number in currency units, e.g. 286.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON reads a number or numeric string in currency units and
// rounds it to the cent.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = MoneyFromDecimal(d)
	return nil
}
