package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/apperr"
)

// Bill represents a dated charge to one customer.
// It stores the line items together with the derived grand total.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string `json:"id"`

	// CustomerID references the Customer that owes this bill.
	CustomerID string `json:"customerId"`

	// CustomerName is the customer's name when the bill was entered.
	// It is a historical snapshot, not a live reference.
	CustomerName string `json:"customerName"`

	// Date is the billing date; it decides the statement month.
	Date time.Time `json:"date"`

	// Particulars is a free-form description of the bill.
	Particulars string `json:"particulars"`

	// Items are the individual line items on the bill.
	Items []LineItem `json:"items"`

	// GrandTotal is the sum of all line item totals.
	// Stored for convenience but always equal to Σ Items[].Total.
	GrandTotal decimal.Decimal `json:"grandTotal"`

	// CreatedAt is when the bill was first saved.
	CreatedAt time.Time `json:"createdAt"`

	// LastModified is set when a sync merge last rewrote the record.
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// LineItem represents a single line on a bill.
type LineItem struct {
	// ItemID optionally references the catalog Item the line was filled from.
	ItemID string `json:"itemId,omitempty"`

	// Name is the description printed on the bill (e.g., "Cement bag").
	Name string `json:"name"`

	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`

	// Total is Quantity × Rate.
	Total decimal.Decimal `json:"total"`
}

// Recalculate sets every line total to quantity × rate and the grand total
// to the sum of the lines.
func (b *Bill) Recalculate() {
	grand := decimal.Zero
	for i := range b.Items {
		b.Items[i].Total = b.Items[i].Quantity.Mul(b.Items[i].Rate)
		grand = grand.Add(b.Items[i].Total)
	}
	b.GrandTotal = grand
}

// TotalsConsistent reports whether the stored totals match the line items.
func (b *Bill) TotalsConsistent() bool {
	grand := decimal.Zero
	for _, item := range b.Items {
		if !item.Total.Equal(item.Quantity.Mul(item.Rate)) {
			return false
		}
		grand = grand.Add(item.Total)
	}
	return grand.Equal(b.GrandTotal)
}

// Validate checks the bill's input shape.
func (b *Bill) Validate() error {
	if b.CustomerID == "" {
		return apperr.Validationf("bill must reference a customer")
	}
	if b.Date.IsZero() {
		return apperr.Validationf("bill date is required")
	}
	if len(b.Items) == 0 {
		return apperr.Validationf("bill must have at least one item")
	}
	for i, item := range b.Items {
		if strings.TrimSpace(item.Name) == "" {
			return apperr.Validationf("item %d: name is required", i+1)
		}
		if !item.Quantity.IsPositive() {
			return apperr.Validationf("item %d (%s): quantity must be positive", i+1, item.Name)
		}
		if item.Rate.IsNegative() {
			return apperr.Validationf("item %d (%s): rate cannot be negative", i+1, item.Name)
		}
	}
	return nil
}
