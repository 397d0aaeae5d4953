package models

import (
	"encoding/json"
	"time"
)

// OperationType is the kind of mutation carried by an Operation.
type OperationType string

const (
	OpSave   OperationType = "save"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
	OpSync   OperationType = "sync"
)

// Operation is a mutation waiting in the offline queue.
// It stays queued until the remote store accepts it or its retry budget runs out.
type Operation struct {
	ID     string          `json:"id"`
	Type   OperationType   `json:"type"`
	Entity EntityKind      `json:"entity"`
	Data   json.RawMessage `json:"data,omitempty"`

	// Timestamp is when the mutation happened locally.
	Timestamp time.Time `json:"timestamp"`

	// Retries counts failed deliveries. It never decreases.
	Retries int `json:"retries"`

	// Error is the message of the last failed delivery.
	Error string `json:"error,omitempty"`
}

// EntityID extracts the "id" field from Data, if any.
func (o *Operation) EntityID() string {
	if len(o.Data) == 0 {
		return ""
	}
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(o.Data, &probe); err != nil {
		return ""
	}
	return probe.ID
}
