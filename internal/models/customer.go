package models

import (
	"strings"
	"time"

	"github.com/mmynk/billbuddy/internal/apperr"
)

// Customer represents someone who is billed and pays.
// Only Name may change after creation.
type Customer struct {
	// ID is the unique identifier for the customer (UUID format).
	ID string `json:"id"`

	// Name is unique (case-sensitive) among active customers.
	Name string `json:"name"`

	// CreatedAt is when the customer was added.
	CreatedAt time.Time `json:"createdAt"`

	// LastModified is set when a sync merge last rewrote the record.
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// Validate checks the customer's input shape.
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validationf("customer name is required")
	}
	return nil
}
