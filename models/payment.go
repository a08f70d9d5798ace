package models

import "time"

// Payment is money received from the client against an invoice.
type Payment struct {
	ID          int       `json:"id"`
	InvoiceID   int       `json:"invoice_id"`
	Amount      Money     `json:"amount"`
	PaymentDate *string   `json:"payment_date"`
	Method      string    `json:"method"` // virement, cheque, especes, carte
	Reference   *string   `json:"reference"`
	CreatedAt   time.Time `json:"created_at"`
	// Computed fields
	InvoiceNumber *string `json:"invoice_number,omitempty"`
}

// PaymentInput is used for recording a payment.
type PaymentInput struct {
	Amount      Money   `json:"amount"`
	PaymentDate *string `json:"payment_date"`
	Method      string  `json:"method"`
	Reference   *string `json:"reference"`
}

func (p *PaymentInput) Validate() string {
	if p.Amount <= 0 {
		return "amount must be positive"
	}
	switch p.Method {
	case "virement", "cheque", "especes", "carte":
	case "":
		p.Method = "virement"
	default:
		return "method must be one of: virement, cheque, especes, carte"
	}
	if p.PaymentDate != nil {
		if _, err := time.Parse("2006-01-02", *p.PaymentDate); err != nil {
			return "payment_date must be YYYY-MM-DD"
		}
	}
	return ""
}

// PaymentStatus derives the status of an issued invoice from what the client
// owes and what has been received so far.
func PaymentStatus(payable, paid Money) string {
	switch {
	case paid <= 0:
		return StatusSent
	case paid < payable:
		return StatusPartial
	default:
		return StatusPaid
	}
}
