package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/apperr"
)

// Payment represents money received from a customer against their balance.
type Payment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string `json:"id"`

	// CustomerID is the customer who paid.
	CustomerID string `json:"customerId"`

	// CustomerName is the customer's name when the payment was recorded.
	CustomerName string `json:"customerName"`

	// Amount is the payment amount. Always positive.
	Amount decimal.Decimal `json:"amount"`

	// Date is when the money was received.
	Date time.Time `json:"date"`

	// CreatedAt is when the payment was first saved.
	CreatedAt time.Time `json:"createdAt"`

	// LastModified is set when a sync merge last rewrote the record.
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// Validate checks the payment's input shape.
func (p *Payment) Validate() error {
	if p.CustomerID == "" {
		return apperr.Validationf("payment must reference a customer")
	}
	if !p.Amount.IsPositive() {
		return apperr.Validationf("payment amount must be greater than zero, got %s", p.Amount.String())
	}
	if p.Date.IsZero() {
		return apperr.Validationf("payment date is required")
	}
	return nil
}
