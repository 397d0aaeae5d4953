package models

import (
	"encoding/json"
	"time"
)

// EntityKind names a record collection.
type EntityKind string

const (
	KindCustomer EntityKind = "customer"
	KindBill     EntityKind = "bill"
	KindPayment  EntityKind = "payment"
	KindItem     EntityKind = "item"
)

// Valid reports whether k is a known kind.
func (k EntityKind) Valid() bool {
	switch k {
	case KindCustomer, KindBill, KindPayment, KindItem:
		return true
	}
	return false
}

// RecycledItem is a soft-deleted record held by the recycle bin.
type RecycledItem struct {
	// ID is fresh for every deletion, so deleting, restoring and deleting the
	// same record again yields two distinct bin entries.
	ID string `json:"id"`

	// Type is customer, bill or payment.
	Type EntityKind `json:"type"`

	// EntityID is the ID of the record inside Payload.
	EntityID string `json:"entityId"`

	// Payload is the record exactly as it was in its collection.
	Payload json.RawMessage `json:"payload"`

	// DisplayName is what the bin shows for this entry (e.g., "Bill - Asha - 10 Jan").
	DisplayName string `json:"displayName"`

	DeletedAt time.Time `json:"deletedAt"`
}
