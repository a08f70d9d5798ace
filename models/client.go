package models

import (
	"net/mail"
	"time"
)

// Client is a party invoices are addressed to.
type Client struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"` // individual, company
	Email         *string   `json:"email"`
	Phone         *string   `json:"phone"`
	Address       *string   `json:"address"`
	TotalInvoiced Money     `json:"total_invoiced"` // Computed: client payable over issued invoices
	TotalPaid     Money     `json:"total_paid"`     // Computed: sum of payments
	Balance       Money     `json:"balance"`        // Computed: invoiced - paid
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ClientInput is used for creating/updating clients.
type ClientInput struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (c *ClientInput) Validate() string {
	if c.Name == "" {
		return "name is required"
	}
	switch c.Type {
	case "individual", "company":
	case "":
		c.Type = "individual"
	default:
		return "type must be one of: individual, company"
	}
	if c.Email != nil && *c.Email != "" {
		if _, err := mail.ParseAddress(*c.Email); err != nil {
			return "email is not a valid address"
		}
	}
	return ""
}
