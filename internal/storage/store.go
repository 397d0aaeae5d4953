// Package storage provides abstractions for the durable key space.
package storage

import "context"

// Reserved keys observed by the ledger core.
const (
	KeyCustomers     = "customers"
	KeyBills         = "bills"
	KeyPayments      = "payments"
	KeyItems         = "items"
	KeyRecycleBin    = "recycle_bin"
	KeyOfflineQueue  = "offline_queue"
	KeySchemaVersion = "app_schema_version"
	KeyLastSync      = "last_sync"
)

// Write is one key mutation inside an atomic Apply.
type Write struct {
	Key   string
	Value string

	// Delete removes Key instead of setting it.
	Delete bool
}

// Set returns a Write that stores value under key.
func Set(key, value string) Write {
	return Write{Key: key, Value: value}
}

// Remove returns a Write that deletes key.
func Remove(key string) Write {
	return Write{Key: key, Delete: true}
}

// KV defines string-keyed, string-valued durable storage.
// This abstraction allows swapping storage backends (SQLite, memory)
// without changing the record, bin, queue or migration code.
type KV interface {
	// Get returns the value stored under key.
	// The boolean is false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// ListKeys returns every stored key in ascending order.
	ListKeys(ctx context.Context) ([]string, error)

	// Apply commits all writes or none of them.
	Apply(ctx context.Context, writes ...Write) error

	// Close releases any resources held by the store.
	Close() error
}
