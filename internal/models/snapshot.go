package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a full export of all active collections.
// It is the payload of backups and of remote sync.
type Snapshot struct {
	Customers []Customer `json:"customers"`
	Bills     []Bill     `json:"bills"`
	Payments  []Payment  `json:"payments"`
	Items     []Item     `json:"items"`

	// LastSync is when the snapshot was last pushed to the remote store.
	LastSync *time.Time `json:"lastSync,omitempty"`
}

// MonthlyBalance is one month of a customer's statement.
// It is derived from Bills and Payments and never persisted.
type MonthlyBalance struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`

	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Bills          decimal.Decimal `json:"bills"`
	Payments       decimal.Decimal `json:"payments"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
}
