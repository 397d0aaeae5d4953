package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billbuddy/internal/apperr"
)

// ItemType says whether a catalog item has a fixed price.
type ItemType string

const (
	// ItemFixed items always bill at Rate.
	ItemFixed ItemType = "fixed"
	// ItemVariable items are priced per bill.
	ItemVariable ItemType = "variable"
)

// Item is a catalog entry used to fill bill lines.
type Item struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Type ItemType `json:"type"`

	// Rate is set iff Type is ItemFixed.
	Rate *decimal.Decimal `json:"rate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// LastModified is set when a sync merge last rewrote the record.
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// Validate checks the item's input shape.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return apperr.Validationf("item name is required")
	}
	switch i.Type {
	case ItemFixed:
		if i.Rate == nil {
			return apperr.Validationf("fixed item %q requires a rate", i.Name)
		}
		if i.Rate.IsNegative() {
			return apperr.Validationf("item %q: rate cannot be negative", i.Name)
		}
	case ItemVariable:
		if i.Rate != nil {
			return apperr.Validationf("variable item %q cannot have a rate", i.Name)
		}
	default:
		return apperr.Validationf("item %q: unknown type %q", i.Name, i.Type)
	}
	return nil
}
