// Package models defines the core domain models for Bill Buddy.
//
// # Source records
//
// The following records are persisted and are the only source of truth:
//   - Customer: a person or business that is billed
//   - Bill: a dated list of line items charged to one customer
//   - Payment: money received from one customer
//   - Item: a catalog entry used to fill bill line items
//
// # Bookkeeping records
//
//   - RecycledItem: a soft-deleted Customer, Bill or Payment awaiting restore or eviction
//   - Operation: a mutation waiting in the offline queue for delivery to the remote store
//
// # Derived values
//
// MonthlyBalance is never persisted. It is recomputed from Bills and Payments
// on every read by the ledger package.
//
// # Design Principles
//
// 1. **Money is decimal**: every amount is a decimal.Decimal, encoded as a JSON string
// 2. **IDs, not pointers**: relationships are ID strings (Bill.CustomerID)
// 3. **Snapshots, not joins**: Bill.CustomerName and Payment.CustomerName record the
// name at the time of entry and are never rewritten when a customer is renamed,
// so historical statements do not change retroactively
package models
